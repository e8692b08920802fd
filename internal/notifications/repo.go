package notifications

import (
	"context"

	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
)

// Repository persists tenant notification rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a notification repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification row.
func (r *Repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}
