package tenants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/db/types"
)

// Repository exposes tenant persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tenant repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a tenant by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// UpdateDiscountTiers replaces the tenant's custom discount ladder. A nil
// ladder clears the override so platform defaults apply again.
func (r *Repository) UpdateDiscountTiers(ctx context.Context, id uuid.UUID, tiers types.DiscountTierList) error {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("discount_tiers", tiers).Error
}

// UpdateStripeCustomerID records the tenant's Stripe customer once created.
func (r *Repository) UpdateStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error
}
