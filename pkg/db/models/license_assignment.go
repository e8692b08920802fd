package models

import (
	"time"

	"github.com/google/uuid"
)

// LicenseAssignment grants one named user a seat on a seat license.
// Unique on (license_id, user_id); rows only exist for completed seat licenses.
type LicenseAssignment struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseID    uuid.UUID `gorm:"column:license_id;type:uuid;not null;uniqueIndex:idx_license_user"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_license_user"`
	AssignedByID uuid.UUID `gorm:"column:assigned_by_id;type:uuid;not null"`
	AssignedAt   time.Time `gorm:"column:assigned_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
