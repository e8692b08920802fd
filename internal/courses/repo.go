package courses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
)

// Repository exposes course persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a course repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a course by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindPublishedByID loads a course only if it is currently published.
func (r *Repository) FindPublishedByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Where("id = ? AND published = ?", id, true).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}
