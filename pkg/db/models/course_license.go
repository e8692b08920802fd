package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// CourseLicense is a tenant's purchased right to a course, either a finite seat
// pool or unlimited access for the whole tenant.
//
// Invariants enforced by the licenses service:
//   - SeatsUsed never exceeds SeatsTotal for seat licenses.
//   - Unlimited licenses carry no assignments and nil seat counts.
//   - At most one completed, non-expired license exists per (tenant, course).
type CourseLicense struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	CourseID      uuid.UUID           `gorm:"column:course_id;type:uuid;not null;index"`
	PurchasedByID uuid.UUID           `gorm:"column:purchased_by_id;type:uuid;not null"`
	LicenseType   enums.LicenseType   `gorm:"column:license_type;type:license_type;not null"`
	SeatsTotal    *int                `gorm:"column:seats_total"`
	SeatsUsed     int                 `gorm:"column:seats_used;not null;default:0"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	Currency      enums.Currency      `gorm:"column:currency;type:currency;not null;default:'USD'"`
	Status        enums.LicenseStatus `gorm:"column:status;type:license_status;not null;default:'pending'"`

	StripeCheckoutSessionID string  `gorm:"column:stripe_checkout_session_id;not null;unique"`
	StripePaymentIntentID   *string `gorm:"column:stripe_payment_intent_id;index"`
	StripeInvoiceID         *string `gorm:"column:stripe_invoice_id"`

	// RenewalSessionID holds the checkout session of an in-flight renewal. It is
	// set when the renewal checkout is created and cleared when the renewal
	// payment confirms, which makes renewal confirmation idempotent.
	RenewalSessionID *string `gorm:"column:renewal_session_id;index"`

	PurchasedAt  *time.Time `gorm:"column:purchased_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	RenewedAt    *time.Time `gorm:"column:renewed_at"`
	RenewalCount int        `gorm:"column:renewal_count;not null;default:0"`

	RefundedAt     *time.Time `gorm:"column:refunded_at"`
	RefundReason   *string    `gorm:"column:refund_reason"`
	StripeRefundID *string    `gorm:"column:stripe_refund_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether the license term has lapsed relative to now.
// Expiry is computed on read; a background sweep also flips stale rows.
func (l *CourseLicense) IsExpired(now time.Time) bool {
	if l == nil {
		return true
	}
	if l.Status == enums.LicenseStatusExpired {
		return true
	}
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// IsActive reports whether the license currently grants access.
func (l *CourseLicense) IsActive(now time.Time) bool {
	if l == nil {
		return false
	}
	return l.Status == enums.LicenseStatusCompleted && !l.IsExpired(now)
}

// SeatsRemaining returns the free seats, or -1 for unlimited licenses.
func (l *CourseLicense) SeatsRemaining() int {
	if l == nil || l.LicenseType == enums.LicenseTypeUnlimited || l.SeatsTotal == nil {
		return -1
	}
	remaining := *l.SeatsTotal - l.SeatsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
