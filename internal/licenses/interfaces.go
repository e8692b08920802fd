package licenses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// Repository defines persistence operations for license and assignment tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, license *models.CourseLicense) (*models.CourseLicense, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CourseLicense, error)
	FindByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.CourseLicense, error)
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (*models.CourseLicense, error)
	FindByRenewalSessionID(ctx context.Context, sessionID string) (*models.CourseLicense, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CourseLicense, error)
	FindActiveByTenantCourse(ctx context.Context, tenantID, courseID uuid.UUID, now time.Time) (*models.CourseLicense, error)
	List(ctx context.Context, opts listQuery) ([]models.CourseLicense, error)

	UpdateIfStatus(ctx context.Context, id uuid.UUID, status enums.LicenseStatus, updates map[string]any) (int64, error)
	UpdateIfRenewalSession(ctx context.Context, id uuid.UUID, sessionID string, updates map[string]any) (int64, error)
	SetRenewalSession(ctx context.Context, id uuid.UUID, sessionID string) error

	ClaimSeat(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseSeat(ctx context.Context, id uuid.UUID) (bool, error)

	CreateAssignment(ctx context.Context, assignment *models.LicenseAssignment) (*models.LicenseAssignment, error)
	FindAssignment(ctx context.Context, licenseID, userID uuid.UUID) (*models.LicenseAssignment, error)
	DeleteAssignment(ctx context.Context, licenseID, userID uuid.UUID) (int64, error)
	DeleteAssignmentsByLicense(ctx context.Context, licenseID uuid.UUID) error
	ListAssignments(ctx context.Context, licenseID uuid.UUID) ([]models.LicenseAssignment, error)

	ListCompletedExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CourseLicense, error)
	ListCompletedExpiringBetween(ctx context.Context, from, to time.Time) ([]models.CourseLicense, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// notifier fans out license lifecycle events. Implementations are
// fire-and-forget; the ledger never fails a transition on notification errors.
type notifier interface {
	LicenseActivated(ctx context.Context, license *models.CourseLicense)
	LicenseRenewed(ctx context.Context, license *models.CourseLicense)
	LicenseRefunded(ctx context.Context, license *models.CourseLicense)
	LicensePaymentFailed(ctx context.Context, license *models.CourseLicense)
	SeatAssigned(ctx context.Context, license *models.CourseLicense, userID uuid.UUID)
	SeatUnassigned(ctx context.Context, license *models.CourseLicense, userID uuid.UUID)
}
