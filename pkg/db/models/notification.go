package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// Notification is a tenant-scoped event record surfaced in the dashboard feed.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	UserID    *uuid.UUID             `gorm:"column:user_id;type:uuid"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
