package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/internal/pricing"
	"github.com/courseloop/courseloop-backend/pkg/config"
	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/db/types"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
)

type coursesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type tenantsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type licensesRepository interface {
	Create(ctx context.Context, license *models.CourseLicense) (*models.CourseLicense, error)
	FindByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.CourseLicense, error)
	FindActiveByTenantCourse(ctx context.Context, tenantID, courseID uuid.UUID, now time.Time) (*models.CourseLicense, error)
	SetRenewalSession(ctx context.Context, id uuid.UUID, sessionID string) error
}

// Result is what a checkout creation returns to the caller: where to send the
// buyer, which license row tracks the purchase, and the quoted breakdown.
type Result struct {
	SessionID   string        `json:"session_id"`
	RedirectURL string        `json:"redirect_url"`
	LicenseID   uuid.UUID     `json:"license_id"`
	Quote       pricing.Quote `json:"quote"`
}

// CreateLicenseInput describes a new license purchase.
type CreateLicenseInput struct {
	TenantID      uuid.UUID
	CourseID      uuid.UUID
	PurchasedByID uuid.UUID
	LicenseType   enums.LicenseType
	Seats         *int
}

// Service orchestrates license purchases and renewals against Stripe.
type Service interface {
	CreateLicenseCheckout(ctx context.Context, input CreateLicenseInput) (*Result, error)
	CreateRenewalCheckout(ctx context.Context, tenantID, licenseID uuid.UUID) (*Result, error)
	QuoteLicense(ctx context.Context, tenantID, courseID uuid.UUID, licenseType enums.LicenseType, seats *int) (*pricing.Quote, error)
}

type service struct {
	courses      coursesRepository
	tenants      tenantsRepository
	licenses     licensesRepository
	gateway      Gateway
	calculator   *pricing.Calculator
	defaultTiers []types.DiscountTier
	urls         config.CheckoutConfig
	now          func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(
	courses coursesRepository,
	tenants tenantsRepository,
	licenses licensesRepository,
	gateway Gateway,
	calculator *pricing.Calculator,
	defaultTiers []types.DiscountTier,
	urls config.CheckoutConfig,
) (Service, error) {
	if courses == nil {
		return nil, fmt.Errorf("course repository required")
	}
	if tenants == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if urls.SuccessURL == "" || urls.CancelURL == "" {
		return nil, fmt.Errorf("checkout redirect urls required")
	}
	return &service{
		courses:      courses,
		tenants:      tenants,
		licenses:     licenses,
		gateway:      gateway,
		calculator:   calculator,
		defaultTiers: defaultTiers,
		urls:         urls,
		now:          time.Now,
	}, nil
}

// CreateLicenseCheckout prices the purchase, opens a Stripe session and
// inserts the PENDING license row keyed by the session id. The webhook flips
// it to COMPLETED once payment settles.
func (s *service) CreateLicenseCheckout(ctx context.Context, input CreateLicenseInput) (*Result, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.CourseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	if input.PurchasedByID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchaser id required")
	}
	if !input.LicenseType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid license type")
	}
	if input.Seats != nil && *input.Seats < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seats must be at least 1")
	}

	course, tenant, err := s.loadPurchasables(ctx, input.TenantID, input.CourseID)
	if err != nil {
		return nil, err
	}

	if _, err := s.licenses.FindActiveByTenantCourse(ctx, input.TenantID, input.CourseID, s.now().UTC()); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "tenant already holds an active license for this course")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active license")
	}

	quote, err := s.quote(course, input.LicenseType, input.Seats, tenant.DiscountTiers)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, tenant)
	if err != nil {
		return nil, err
	}

	licenseID := uuid.New()
	metadata := map[string]string{
		MetadataKeyFlow:        enums.CheckoutFlowB2BLicense.String(),
		MetadataKeyTenantID:    tenant.ID.String(),
		MetadataKeyCourseID:    course.ID.String(),
		MetadataKeyLicenseID:   licenseID.String(),
		MetadataKeyLicenseType: input.LicenseType.String(),
	}
	if quote.Seats != nil {
		metadata[MetadataKeySeats] = strconv.Itoa(*quote.Seats)
	}

	created, err := s.gateway.CreateCheckoutSession(ctx, SessionInput{
		CustomerID:        customerID,
		AmountCents:       quote.TotalCents(),
		Currency:          string(course.Currency),
		ProductName:       fmt.Sprintf("%s (%s license)", course.Title, input.LicenseType),
		SuccessURL:        s.urls.SuccessURL,
		CancelURL:         s.urls.CancelURL,
		Metadata:          metadata,
		PaymentIntentMeta: metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	license := &models.CourseLicense{
		ID:                      licenseID,
		TenantID:                tenant.ID,
		CourseID:                course.ID,
		PurchasedByID:           input.PurchasedByID,
		LicenseType:             input.LicenseType,
		SeatsTotal:              quote.Seats,
		AmountCents:             quote.TotalCents(),
		Currency:                course.Currency,
		Status:                  enums.LicenseStatusPending,
		StripeCheckoutSessionID: created.ID,
	}
	if _, err := s.licenses.Create(ctx, license); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pending license")
	}

	return &Result{
		SessionID:   created.ID,
		RedirectURL: created.URL,
		LicenseID:   licenseID,
		Quote:       quote,
	}, nil
}

// CreateRenewalCheckout re-quotes the existing license at current prices and
// opens a renewal session. The only ledger mutation is recording the pending
// renewal session marker; everything else happens at webhook time.
func (s *service) CreateRenewalCheckout(ctx context.Context, tenantID, licenseID uuid.UUID) (*Result, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id required")
	}

	license, err := s.licenses.FindByTenantAndID(ctx, tenantID, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	if license.Status != enums.LicenseStatusCompleted && license.Status != enums.LicenseStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed or expired licenses can be renewed").
			WithDetails(map[string]any{"status": license.Status.String()})
	}

	course, tenant, err := s.loadPurchasables(ctx, tenantID, license.CourseID)
	if err != nil {
		return nil, err
	}

	quote, err := s.quote(course, license.LicenseType, license.SeatsTotal, tenant.DiscountTiers)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, tenant)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetadataKeyFlow:      enums.CheckoutFlowB2BLicenseRenewal.String(),
		MetadataKeyTenantID:  tenant.ID.String(),
		MetadataKeyCourseID:  course.ID.String(),
		MetadataKeyLicenseID: license.ID.String(),
	}

	created, err := s.gateway.CreateCheckoutSession(ctx, SessionInput{
		CustomerID:        customerID,
		AmountCents:       quote.TotalCents(),
		Currency:          string(course.Currency),
		ProductName:       fmt.Sprintf("%s (license renewal)", course.Title),
		SuccessURL:        s.urls.SuccessURL,
		CancelURL:         s.urls.CancelURL,
		Metadata:          metadata,
		PaymentIntentMeta: metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create renewal session")
	}

	if err := s.licenses.SetRenewalSession(ctx, license.ID, created.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record renewal session")
	}

	return &Result{
		SessionID:   created.ID,
		RedirectURL: created.URL,
		LicenseID:   license.ID,
		Quote:       quote,
	}, nil
}

// QuoteLicense prices a prospective purchase without touching Stripe or the
// ledger.
func (s *service) QuoteLicense(ctx context.Context, tenantID, courseID uuid.UUID, licenseType enums.LicenseType, seats *int) (*pricing.Quote, error) {
	if tenantID == uuid.Nil || courseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and course ids required")
	}
	if !licenseType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid license type")
	}
	if seats != nil && *seats < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seats must be at least 1")
	}

	course, tenant, err := s.loadPurchasables(ctx, tenantID, courseID)
	if err != nil {
		return nil, err
	}

	quote, err := s.quote(course, licenseType, seats, tenant.DiscountTiers)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *service) loadPurchasables(ctx context.Context, tenantID, courseID uuid.UUID) (*models.Course, *models.Tenant, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup course")
	}
	if !course.Published {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "course is not published")
	}
	if course.IsFree() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "free courses do not require a license")
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	if tenant.Suspended {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant is suspended")
	}
	return course, tenant, nil
}

func (s *service) quote(course *models.Course, licenseType enums.LicenseType, seats *int, custom types.DiscountTierList) (pricing.Quote, error) {
	tiers := pricing.EffectiveTiers(custom, s.defaultTiers)
	price := decimal.New(course.PriceCents, -2)

	quote, err := s.calculator.Quote(price, licenseType, seats, tiers)
	if err != nil {
		return pricing.Quote{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price license")
	}
	return quote, nil
}

// ensureCustomer returns the tenant's Stripe customer, creating and persisting
// it on first use.
func (s *service) ensureCustomer(ctx context.Context, tenant *models.Tenant) (string, error) {
	if tenant.StripeCustomerID != nil && *tenant.StripeCustomerID != "" {
		return *tenant.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, CustomerInput{
		Email:    tenant.BillingEmail,
		Name:     tenant.Name,
		TenantID: tenant.ID.String(),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	if err := s.tenants.UpdateStripeCustomerID(ctx, tenant.ID, customerID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stripe customer id")
	}
	tenant.StripeCustomerID = &customerID
	return customerID, nil
}
