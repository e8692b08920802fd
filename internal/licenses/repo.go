package licenses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a license repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, license *models.CourseLicense) (*models.CourseLicense, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CourseLicense, error) {
	var license models.CourseLicense
	if err := r.db.WithContext(ctx).First(&license, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repository) FindByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.CourseLicense, error) {
	var license models.CourseLicense
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (*models.CourseLicense, error) {
	var license models.CourseLicense
	err := r.db.WithContext(ctx).
		Where("stripe_checkout_session_id = ?", sessionID).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repository) FindByRenewalSessionID(ctx context.Context, sessionID string) (*models.CourseLicense, error) {
	var license models.CourseLicense
	err := r.db.WithContext(ctx).
		Where("renewal_session_id = ?", sessionID).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CourseLicense, error) {
	var license models.CourseLicense
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", paymentIntentID).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// FindActiveByTenantCourse returns the completed, unexpired license for the
// tenant/course pair, if one exists.
func (r *repository) FindActiveByTenantCourse(ctx context.Context, tenantID, courseID uuid.UUID, now time.Time) (*models.CourseLicense, error) {
	var license models.CourseLicense
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND course_id = ? AND status = ?", tenantID, courseID, enums.LicenseStatusCompleted).
		Where("expires_at IS NULL OR expires_at > ?", now).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// List returns tenant-scoped licenses using cursor pagination.
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.CourseLicense, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CourseLicense{}).
		Where("tenant_id = ?", opts.tenantID)

	if opts.courseID != uuid.Nil {
		query = query.Where("course_id = ?", opts.courseID)
	}
	if opts.status != "" {
		query = query.Where("status = ?", opts.status)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.CourseLicense
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateIfStatus applies updates only while the row still holds the given
// status, returning the number of rows touched. A zero count means another
// writer transitioned the row first.
func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, status enums.LicenseStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CourseLicense{}).
		Where("id = ? AND status = ?", id, status).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// UpdateIfRenewalSession applies updates only while the pending renewal
// session marker still matches, which makes renewal confirmation idempotent.
// The status guard keeps a license refunded or failed after checkout from
// being resurrected by the renewal settlement.
func (r *repository) UpdateIfRenewalSession(ctx context.Context, id uuid.UUID, sessionID string, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CourseLicense{}).
		Where("id = ? AND renewal_session_id = ? AND status IN ?",
			id, sessionID, []enums.LicenseStatus{enums.LicenseStatusCompleted, enums.LicenseStatusExpired}).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) SetRenewalSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.CourseLicense{}).
		Where("id = ?", id).
		Update("renewal_session_id", sessionID).Error
}

// ClaimSeat increments seats_used only while capacity remains. The guard in
// the WHERE clause is what keeps concurrent assigns from overrunning the pool.
func (r *repository) ClaimSeat(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CourseLicense{}).
		Where("id = ? AND seats_total IS NOT NULL AND seats_used < seats_total", id).
		Update("seats_used", gorm.Expr("seats_used + 1"))
	return result.RowsAffected > 0, result.Error
}

// ReleaseSeat decrements seats_used, never below zero.
func (r *repository) ReleaseSeat(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CourseLicense{}).
		Where("id = ? AND seats_used > 0", id).
		Update("seats_used", gorm.Expr("seats_used - 1"))
	return result.RowsAffected > 0, result.Error
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.LicenseAssignment) (*models.LicenseAssignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindAssignment(ctx context.Context, licenseID, userID uuid.UUID) (*models.LicenseAssignment, error) {
	var assignment models.LicenseAssignment
	err := r.db.WithContext(ctx).
		Where("license_id = ? AND user_id = ?", licenseID, userID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) DeleteAssignment(ctx context.Context, licenseID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("license_id = ? AND user_id = ?", licenseID, userID).
		Delete(&models.LicenseAssignment{})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteAssignmentsByLicense(ctx context.Context, licenseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Delete(&models.LicenseAssignment{}).Error
}

func (r *repository) ListAssignments(ctx context.Context, licenseID uuid.UUID) ([]models.LicenseAssignment, error) {
	var assignments []models.LicenseAssignment
	err := r.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) ListCompletedExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CourseLicense, error) {
	var rows []models.CourseLicense
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", enums.LicenseStatusCompleted, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCompletedExpiringBetween(ctx context.Context, from, to time.Time) ([]models.CourseLicense, error) {
	var rows []models.CourseLicense
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at >= ? AND expires_at < ?", enums.LicenseStatusCompleted, from, to).
		Order("expires_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
