package licenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
	pkgpagination "github.com/courseloop/courseloop-backend/pkg/pagination"
)

// refundGateway issues the monetary refund with the payment provider.
type refundGateway interface {
	RefundPayment(ctx context.Context, paymentIntentID, reason string) (string, error)
}

// Service is the license ledger: every status transition and seat mutation
// goes through here so state is checked before each write.
type Service interface {
	ConfirmPayment(ctx context.Context, sessionID, paymentIntentID, invoiceID string) (*models.CourseLicense, error)
	FailPayment(ctx context.Context, licenseID uuid.UUID) error
	ConfirmRenewal(ctx context.Context, sessionID, paymentIntentID string) (*models.CourseLicense, error)
	Refund(ctx context.Context, tenantID, licenseID uuid.UUID, reason string) (*models.CourseLicense, error)
	ApplyExternalRefund(ctx context.Context, paymentIntentID, refundID string) (*models.CourseLicense, error)

	Assign(ctx context.Context, tenantID, licenseID, userID, assignedByID uuid.UUID) (*models.LicenseAssignment, error)
	Unassign(ctx context.Context, tenantID, licenseID, userID uuid.UUID) error
	HasAccess(ctx context.Context, tenantID, courseID, userID uuid.UUID) (bool, error)

	ListLicenses(ctx context.Context, params ListParams) (*ListResult, error)
	GetLicense(ctx context.Context, tenantID, licenseID uuid.UUID) (*Detail, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	gateway refundGateway
	notify  notifier
	term    time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewService builds the license ledger service.
func NewService(repo Repository, tx txRunner, gateway refundGateway, notify notifier, term time.Duration, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("refund gateway required")
	}
	if term <= 0 {
		return nil, fmt.Errorf("license term must be positive")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		gateway: gateway,
		notify:  notify,
		term:    term,
		log:     log,
		now:     time.Now,
	}, nil
}

// ConfirmPayment flips a pending license to completed when its checkout
// session settles. Unknown sessions and repeat deliveries are expected under
// at-least-once webhooks, so both no-op without error.
func (s *service) ConfirmPayment(ctx context.Context, sessionID, paymentIntentID, invoiceID string) (*models.CourseLicense, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}

	license, err := s.repo.FindByCheckoutSessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.warn(ctx, "payment confirmation for unknown checkout session", map[string]any{"session_id": sessionID})
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license by checkout session")
	}

	if license.Status == enums.LicenseStatusCompleted {
		return license, nil
	}
	if license.Status != enums.LicenseStatusPending {
		s.warn(ctx, "payment confirmation ignored for non-pending license", map[string]any{
			"license_id": license.ID.String(),
			"status":     license.Status.String(),
		})
		return nil, nil
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.term)
	updates := map[string]any{
		"status":       enums.LicenseStatusCompleted,
		"purchased_at": now,
		"expires_at":   expiresAt,
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}
	if invoiceID != "" {
		updates["stripe_invoice_id"] = invoiceID
	}

	rows, err := s.repo.UpdateIfStatus(ctx, license.ID, enums.LicenseStatusPending, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm license payment")
	}
	if rows == 0 {
		// Lost the race to a concurrent delivery of the same event.
		return s.repo.FindByCheckoutSessionID(ctx, sessionID)
	}

	license.Status = enums.LicenseStatusCompleted
	license.PurchasedAt = &now
	license.ExpiresAt = &expiresAt
	if paymentIntentID != "" {
		license.StripePaymentIntentID = &paymentIntentID
	}
	if invoiceID != "" {
		license.StripeInvoiceID = &invoiceID
	}

	if s.notify != nil {
		s.notify.LicenseActivated(ctx, license)
	}
	return license, nil
}

// FailPayment marks a pending license failed. Completed licenses are never
// regressed; a late failure event for a settled session is dropped.
func (s *service) FailPayment(ctx context.Context, licenseID uuid.UUID) error {
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id required")
	}

	rows, err := s.repo.UpdateIfStatus(ctx, licenseID, enums.LicenseStatusPending, map[string]any{
		"status": enums.LicenseStatusFailed,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail license payment")
	}
	if rows == 0 {
		return nil
	}

	if s.notify != nil {
		if license, err := s.repo.FindByID(ctx, licenseID); err == nil {
			s.notify.LicensePaymentFailed(ctx, license)
		}
	}
	return nil
}

// ConfirmRenewal extends the license term when the renewal checkout settles.
// The pending renewal session marker recorded at checkout time is the
// idempotency key: once cleared, redeliveries find nothing and no-op. A
// renewal never creates a second license row.
func (s *service) ConfirmRenewal(ctx context.Context, sessionID, paymentIntentID string) (*models.CourseLicense, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "renewal session id required")
	}

	license, err := s.repo.FindByRenewalSessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license by renewal session")
	}

	now := s.now().UTC()
	base := now
	if license.ExpiresAt != nil && license.ExpiresAt.After(now) {
		base = license.ExpiresAt.UTC()
	}
	expiresAt := base.Add(s.term)

	updates := map[string]any{
		"status":             enums.LicenseStatusCompleted,
		"expires_at":         expiresAt,
		"renewed_at":         now,
		"renewal_count":      gorm.Expr("renewal_count + 1"),
		"renewal_session_id": nil,
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}

	rows, err := s.repo.UpdateIfRenewalSession(ctx, license.ID, sessionID, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm license renewal")
	}
	if rows == 0 {
		return nil, nil
	}

	license.Status = enums.LicenseStatusCompleted
	license.ExpiresAt = &expiresAt
	license.RenewedAt = &now
	license.RenewalCount++
	license.RenewalSessionID = nil

	if s.notify != nil {
		s.notify.LicenseRenewed(ctx, license)
	}
	return license, nil
}

// Refund reverses a completed purchase: the gateway refund is issued first,
// then the row flips to refunded and the whole seat pool is released in one
// transaction.
func (s *service) Refund(ctx context.Context, tenantID, licenseID uuid.UUID, reason string) (*models.CourseLicense, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id required")
	}

	license, err := s.repo.FindByTenantAndID(ctx, tenantID, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	if license.Status != enums.LicenseStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed licenses can be refunded").
			WithDetails(map[string]any{"status": license.Status.String()})
	}
	if license.StripePaymentIntentID == nil || *license.StripePaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "license has no recorded payment to refund")
	}

	refundID, err := s.gateway.RefundPayment(ctx, *license.StripePaymentIntentID, reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue gateway refund")
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.UpdateIfStatus(ctx, license.ID, enums.LicenseStatusCompleted, map[string]any{
			"status":           enums.LicenseStatusRefunded,
			"refunded_at":      now,
			"refund_reason":    reason,
			"stripe_refund_id": refundID,
			"seats_used":       0,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark license refunded")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "license state changed during refund")
		}
		if err := repo.DeleteAssignmentsByLicense(ctx, license.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release seat assignments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	license.Status = enums.LicenseStatusRefunded
	license.RefundedAt = &now
	license.RefundReason = &reason
	license.StripeRefundID = &refundID
	license.SeatsUsed = 0

	if s.notify != nil {
		s.notify.LicenseRefunded(ctx, license)
	}
	return license, nil
}

// ApplyExternalRefund records a refund issued outside this API, for example
// from the Stripe dashboard. The charge.refunded webhook resolves the license
// through its payment intent; unknown intents and repeat deliveries no-op.
func (s *service) ApplyExternalRefund(ctx context.Context, paymentIntentID, refundID string) (*models.CourseLicense, error) {
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	license, err := s.repo.FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license by payment intent")
	}
	if license.Status != enums.LicenseStatusCompleted {
		return nil, nil
	}

	now := s.now().UTC()
	reason := "refunded via stripe"
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.UpdateIfStatus(ctx, license.ID, enums.LicenseStatusCompleted, map[string]any{
			"status":           enums.LicenseStatusRefunded,
			"refunded_at":      now,
			"refund_reason":    reason,
			"stripe_refund_id": refundID,
			"seats_used":       0,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark license refunded")
		}
		if rows == 0 {
			return nil
		}
		return repo.DeleteAssignmentsByLicense(ctx, license.ID)
	})
	if err != nil {
		return nil, err
	}

	license.Status = enums.LicenseStatusRefunded
	license.RefundedAt = &now
	license.RefundReason = &reason
	license.StripeRefundID = &refundID
	license.SeatsUsed = 0

	if s.notify != nil {
		s.notify.LicenseRefunded(ctx, license)
	}
	return license, nil
}

// Assign grants one seat to a user. The assignment row and the seat counter
// move in a single transaction, with a conditional increment so two
// concurrent assigns can never overrun seats_total.
func (s *service) Assign(ctx context.Context, tenantID, licenseID, userID, assignedByID uuid.UUID) (*models.LicenseAssignment, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if assignedByID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assigning user id required")
	}

	var (
		assignment *models.LicenseAssignment
		license    *models.CourseLicense
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindByTenantAndID(ctx, tenantID, licenseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
		}
		license = row

		now := s.now().UTC()
		if !license.IsActive(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "license is not active").
				WithDetails(map[string]any{"status": license.Status.String()})
		}
		if license.LicenseType == enums.LicenseTypeUnlimited {
			return pkgerrors.New(pkgerrors.CodeValidation, "unlimited licenses do not use seat assignments")
		}

		if _, err := repo.FindAssignment(ctx, license.ID, userID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already holds a seat on this license")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup assignment")
		}

		claimed, err := repo.ClaimSeat(ctx, license.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim seat")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeNoSeats, "no seats available on this license").
				WithDetails(map[string]any{"seats_total": license.SeatsTotal, "seats_used": license.SeatsUsed})
		}

		// The unique (license_id, user_id) index backstops the pre-check above
		// against a concurrent assign of the same user.
		created, err := repo.CreateAssignment(ctx, &models.LicenseAssignment{
			LicenseID:    license.ID,
			UserID:       userID,
			AssignedByID: assignedByID,
			AssignedAt:   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
		}
		assignment = created
		license.SeatsUsed++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		s.notify.SeatAssigned(ctx, license, userID)
	}
	return assignment, nil
}

// Unassign releases a user's seat back into the pool.
func (s *service) Unassign(ctx context.Context, tenantID, licenseID, userID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var license *models.CourseLicense
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindByTenantAndID(ctx, tenantID, licenseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
		}
		license = row

		rows, err := repo.DeleteAssignment(ctx, license.ID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete assignment")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}

		if _, err := repo.ReleaseSeat(ctx, license.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release seat")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.notify != nil {
		s.notify.SeatUnassigned(ctx, license, userID)
	}
	return nil
}

// HasAccess reports whether the user can open the course under the tenant's
// license: an active unlimited license covers everyone, a seat license covers
// assigned users only.
func (s *service) HasAccess(ctx context.Context, tenantID, courseID, userID uuid.UUID) (bool, error) {
	if tenantID == uuid.Nil || courseID == uuid.Nil || userID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "tenant, course and user ids required")
	}

	license, err := s.repo.FindActiveByTenantCourse(ctx, tenantID, courseID, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active license")
	}

	if license.LicenseType == enums.LicenseTypeUnlimited {
		return true, nil
	}

	if _, err := s.repo.FindAssignment(ctx, license.ID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup assignment")
	}
	return true, nil
}

func (s *service) ListLicenses(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		tenantID: params.TenantID,
		courseID: params.CourseID,
		limit:    pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Status != "" {
		status, err := enums.ParseLicenseStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.status = status
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) GetLicense(ctx context.Context, tenantID, licenseID uuid.UUID) (*Detail, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id required")
	}

	license, err := s.repo.FindByTenantAndID(ctx, tenantID, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	assignments, err := s.repo.ListAssignments(ctx, license.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}

	detail := &Detail{
		ListItem:    toListItem(*license),
		Assignments: make([]AssignmentItem, len(assignments)),
	}
	for i, row := range assignments {
		detail.Assignments[i] = toAssignmentItem(row)
	}
	return detail, nil
}

func (s *service) warn(ctx context.Context, msg string, fields map[string]any) {
	if s.log == nil {
		return
	}
	s.log.Warn(s.log.WithFields(ctx, fields), msg)
}
