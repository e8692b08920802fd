package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/courseloop/courseloop-backend/pkg/db/types"
)

// Tenant represents the canonical customer-organization model.
type Tenant struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name             string                 `gorm:"column:name;not null"`
	Slug             string                 `gorm:"column:slug;not null;unique"`
	BillingEmail     string                 `gorm:"column:billing_email;not null"`
	StripeCustomerID *string                `gorm:"column:stripe_customer_id"`
	DiscountTiers    types.DiscountTierList `gorm:"column:discount_tiers;type:jsonb"`
	Domains          pq.StringArray         `gorm:"column:domains;type:text[]"`
	OwnerID          uuid.UUID              `gorm:"column:owner_id;type:uuid;not null"`
	Suspended        bool                   `gorm:"column:suspended;not null;default:false"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCustomDiscountTiers reports whether the tenant overrides the platform ladder.
func (t *Tenant) HasCustomDiscountTiers() bool {
	return t != nil && len(t.DiscountTiers) > 0
}
