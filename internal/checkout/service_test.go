package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/config"
	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/db/types"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"

	"github.com/courseloop/courseloop-backend/internal/pricing"
)

type stubCourses struct {
	courses map[uuid.UUID]*models.Course
}

func (s *stubCourses) FindByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	course, ok := s.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return course, nil
}

type stubTenants struct {
	tenants    map[uuid.UUID]*models.Tenant
	persistedC string
}

func (s *stubTenants) FindByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

func (s *stubTenants) UpdateStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	s.persistedC = customerID
	if tenant, ok := s.tenants[id]; ok {
		tenant.StripeCustomerID = &customerID
	}
	return nil
}

type stubLicenses struct {
	created        []*models.CourseLicense
	active         *models.CourseLicense
	existing       map[uuid.UUID]*models.CourseLicense
	renewalSession string
}

func (s *stubLicenses) Create(_ context.Context, license *models.CourseLicense) (*models.CourseLicense, error) {
	s.created = append(s.created, license)
	return license, nil
}

func (s *stubLicenses) FindByTenantAndID(_ context.Context, tenantID, id uuid.UUID) (*models.CourseLicense, error) {
	license, ok := s.existing[id]
	if !ok || license.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return license, nil
}

func (s *stubLicenses) FindActiveByTenantCourse(_ context.Context, tenantID, courseID uuid.UUID, _ time.Time) (*models.CourseLicense, error) {
	if s.active != nil && s.active.TenantID == tenantID && s.active.CourseID == courseID {
		return s.active, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenses) SetRenewalSession(_ context.Context, _ uuid.UUID, sessionID string) error {
	s.renewalSession = sessionID
	return nil
}

type fakeGateway struct {
	customers   int
	sessions    []SessionInput
	refunds     int
	sessionsOut []*Session
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _ CustomerInput) (string, error) {
	g.customers++
	return "cus_test_1", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, input SessionInput) (*Session, error) {
	g.sessions = append(g.sessions, input)
	created := &Session{ID: "cs_test_" + uuid.NewString()[:8], URL: "https://checkout.stripe.test/s"}
	g.sessionsOut = append(g.sessionsOut, created)
	return created, nil
}

func (g *fakeGateway) RefundPayment(_ context.Context, _, _ string) (string, error) {
	g.refunds++
	return "re_test", nil
}

type checkoutFixture struct {
	courses  *stubCourses
	tenants  *stubTenants
	licenses *stubLicenses
	gateway  *fakeGateway
	svc      Service
	tenant   *models.Tenant
	course   *models.Course
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	tenant := &models.Tenant{
		ID:           uuid.New(),
		Name:         "Acme Learning",
		Slug:         "acme",
		BillingEmail: "billing@acme.test",
	}
	course := &models.Course{
		ID:         uuid.New(),
		Title:      "Go for Platform Teams",
		Slug:       "go-platform",
		PriceCents: 10000,
		Currency:   enums.CurrencyUSD,
		Published:  true,
	}

	f := &checkoutFixture{
		courses:  &stubCourses{courses: map[uuid.UUID]*models.Course{course.ID: course}},
		tenants:  &stubTenants{tenants: map[uuid.UUID]*models.Tenant{tenant.ID: tenant}},
		licenses: &stubLicenses{existing: map[uuid.UUID]*models.CourseLicense{}},
		gateway:  &fakeGateway{},
		tenant:   tenant,
		course:   course,
	}

	calc, err := pricing.NewCalculator(10)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	defaults := []types.DiscountTier{
		{MinSeats: 10, DiscountPercent: 10},
		{MinSeats: 20, DiscountPercent: 20},
		{MinSeats: 50, DiscountPercent: 30},
	}
	svc, err := NewService(f.courses, f.tenants, f.licenses, f.gateway, calc, defaults, config.CheckoutConfig{
		SuccessURL: "https://app.courseloop.test/billing/success",
		CancelURL:  "https://app.courseloop.test/billing/cancel",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func seatsPtr(v int) *int { return &v }

func TestCreateLicenseCheckoutInsertsPendingRow(t *testing.T) {
	f := newCheckoutFixture(t)

	result, err := f.svc.CreateLicenseCheckout(context.Background(), CreateLicenseInput{
		TenantID:      f.tenant.ID,
		CourseID:      f.course.ID,
		PurchasedByID: uuid.New(),
		LicenseType:   enums.LicenseTypeSeats,
		Seats:         seatsPtr(10),
	})
	if err != nil {
		t.Fatalf("CreateLicenseCheckout: %v", err)
	}

	if len(f.licenses.created) != 1 {
		t.Fatalf("expected one pending row, got %d", len(f.licenses.created))
	}
	row := f.licenses.created[0]
	if row.Status != enums.LicenseStatusPending {
		t.Fatalf("row status = %s, want pending", row.Status)
	}
	if row.StripeCheckoutSessionID != result.SessionID {
		t.Fatal("pending row must be keyed by the session id")
	}
	if row.SeatsTotal == nil || *row.SeatsTotal != 10 {
		t.Fatalf("seats_total = %v, want 10", row.SeatsTotal)
	}
	// 100.00 at 10 seats hits the 10% tier: 90.00/seat, 900.00 total.
	if row.AmountCents != 90000 {
		t.Fatalf("amount_cents = %d, want 90000", row.AmountCents)
	}

	if len(f.gateway.sessions) != 1 {
		t.Fatalf("expected one stripe session, got %d", len(f.gateway.sessions))
	}
	session := f.gateway.sessions[0]
	if session.AmountCents != 90000 {
		t.Fatalf("session amount = %d, want 90000", session.AmountCents)
	}
	if session.Metadata[MetadataKeyFlow] != enums.CheckoutFlowB2BLicense.String() {
		t.Fatalf("flow metadata = %q", session.Metadata[MetadataKeyFlow])
	}
	if session.Metadata[MetadataKeyLicenseID] != result.LicenseID.String() {
		t.Fatal("license id must ride along in session metadata")
	}
	if session.PaymentIntentMeta[MetadataKeyLicenseID] != result.LicenseID.String() {
		t.Fatal("license id must ride along in payment intent metadata")
	}
}

func TestCreateLicenseCheckoutEnsuresCustomerOnce(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	input := CreateLicenseInput{
		TenantID:      f.tenant.ID,
		CourseID:      f.course.ID,
		PurchasedByID: uuid.New(),
		LicenseType:   enums.LicenseTypeSeats,
		Seats:         seatsPtr(5),
	}
	if _, err := f.svc.CreateLicenseCheckout(ctx, input); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if f.gateway.customers != 1 || f.tenants.persistedC != "cus_test_1" {
		t.Fatalf("customer not created and persisted: calls=%d persisted=%q", f.gateway.customers, f.tenants.persistedC)
	}

	if _, err := f.svc.CreateLicenseCheckout(ctx, input); err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if f.gateway.customers != 1 {
		t.Fatalf("existing customer must be reused, created %d", f.gateway.customers)
	}
}

func TestCreateLicenseCheckoutRejectsDuplicateActiveLicense(t *testing.T) {
	f := newCheckoutFixture(t)
	f.licenses.active = &models.CourseLicense{
		TenantID: f.tenant.ID,
		CourseID: f.course.ID,
		Status:   enums.LicenseStatusCompleted,
	}

	_, err := f.svc.CreateLicenseCheckout(context.Background(), CreateLicenseInput{
		TenantID:      f.tenant.ID,
		CourseID:      f.course.ID,
		PurchasedByID: uuid.New(),
		LicenseType:   enums.LicenseTypeSeats,
		Seats:         seatsPtr(5),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.gateway.sessions) != 0 {
		t.Fatal("no stripe session may be opened for a duplicate purchase")
	}
}

func TestCreateLicenseCheckoutCourseGuards(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	base := CreateLicenseInput{
		TenantID:      f.tenant.ID,
		PurchasedByID: uuid.New(),
		LicenseType:   enums.LicenseTypeSeats,
	}

	t.Run("unknown course", func(t *testing.T) {
		input := base
		input.CourseID = uuid.New()
		_, err := f.svc.CreateLicenseCheckout(ctx, input)
		if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("unpublished course", func(t *testing.T) {
		f.course.Published = false
		defer func() { f.course.Published = true }()
		input := base
		input.CourseID = f.course.ID
		_, err := f.svc.CreateLicenseCheckout(ctx, input)
		if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("free course", func(t *testing.T) {
		f.course.PriceCents = 0
		defer func() { f.course.PriceCents = 10000 }()
		input := base
		input.CourseID = f.course.ID
		_, err := f.svc.CreateLicenseCheckout(ctx, input)
		if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("zero seats", func(t *testing.T) {
		input := base
		input.CourseID = f.course.ID
		input.Seats = seatsPtr(0)
		_, err := f.svc.CreateLicenseCheckout(ctx, input)
		if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("got %v", err)
		}
	})
}

func TestCreateLicenseCheckoutUnlimited(t *testing.T) {
	f := newCheckoutFixture(t)

	result, err := f.svc.CreateLicenseCheckout(context.Background(), CreateLicenseInput{
		TenantID:      f.tenant.ID,
		CourseID:      f.course.ID,
		PurchasedByID: uuid.New(),
		LicenseType:   enums.LicenseTypeUnlimited,
	})
	if err != nil {
		t.Fatalf("CreateLicenseCheckout: %v", err)
	}
	// 100.00 x 10 multiplier.
	if result.Quote.TotalCents() != 100000 {
		t.Fatalf("unlimited total = %d, want 100000", result.Quote.TotalCents())
	}
	row := f.licenses.created[0]
	if row.SeatsTotal != nil {
		t.Fatal("unlimited licenses carry no seat pool")
	}
}

func TestCreateRenewalCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	seats := 20
	pi := "pi_existing"
	license := &models.CourseLicense{
		ID:                      uuid.New(),
		TenantID:                f.tenant.ID,
		CourseID:                f.course.ID,
		LicenseType:             enums.LicenseTypeSeats,
		SeatsTotal:              &seats,
		SeatsUsed:               12,
		Status:                  enums.LicenseStatusCompleted,
		StripeCheckoutSessionID: "cs_original",
		StripePaymentIntentID:   &pi,
	}
	f.licenses.existing[license.ID] = license

	result, err := f.svc.CreateRenewalCheckout(ctx, f.tenant.ID, license.ID)
	if err != nil {
		t.Fatalf("CreateRenewalCheckout: %v", err)
	}

	// Re-quoted at current tiers: 20 seats hits 20%: 80.00/seat, 1600.00.
	if result.Quote.TotalCents() != 160000 {
		t.Fatalf("renewal total = %d, want 160000", result.Quote.TotalCents())
	}
	if f.licenses.renewalSession != result.SessionID {
		t.Fatal("renewal session marker must be recorded on the row")
	}
	if len(f.licenses.created) != 0 {
		t.Fatal("a renewal must never insert a second license row")
	}
	session := f.gateway.sessions[0]
	if session.Metadata[MetadataKeyFlow] != enums.CheckoutFlowB2BLicenseRenewal.String() {
		t.Fatalf("flow metadata = %q", session.Metadata[MetadataKeyFlow])
	}
	if license.SeatsUsed != 12 || license.Status != enums.LicenseStatusCompleted {
		t.Fatal("renewal checkout must not otherwise mutate the license")
	}
}

func TestCreateRenewalCheckoutRequiresRenewableState(t *testing.T) {
	f := newCheckoutFixture(t)

	license := &models.CourseLicense{
		ID:       uuid.New(),
		TenantID: f.tenant.ID,
		CourseID: f.course.ID,
		Status:   enums.LicenseStatusPending,
	}
	f.licenses.existing[license.ID] = license

	_, err := f.svc.CreateRenewalCheckout(context.Background(), f.tenant.ID, license.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestQuoteLicenseUsesTenantTiers(t *testing.T) {
	f := newCheckoutFixture(t)
	f.tenant.DiscountTiers = types.DiscountTierList{{MinSeats: 5, DiscountPercent: 50}}

	quote, err := f.svc.QuoteLicense(context.Background(), f.tenant.ID, f.course.ID, enums.LicenseTypeSeats, seatsPtr(5))
	if err != nil {
		t.Fatalf("QuoteLicense: %v", err)
	}
	if quote.TotalCents() != 25000 {
		t.Fatalf("custom-tier total = %d, want 25000", quote.TotalCents())
	}
}
