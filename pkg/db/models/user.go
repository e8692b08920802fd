package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// User is a member of a tenant. Seat assignments point at users.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`
	Email     string     `gorm:"column:email;not null"`
	FullName  string     `gorm:"column:full_name;not null"`
	Role      enums.Role `gorm:"column:role;type:user_role;not null;default:'learner'"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
