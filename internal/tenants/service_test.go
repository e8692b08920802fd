package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/db/types"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
)

type stubTenantRepo struct {
	tenants map[uuid.UUID]*models.Tenant

	updatedID    uuid.UUID
	updatedTiers types.DiscountTierList
	updateErr    error
}

func (s *stubTenantRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tenant
	return &copied, nil
}

func (s *stubTenantRepo) UpdateDiscountTiers(_ context.Context, id uuid.UUID, tiers types.DiscountTierList) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedID = id
	s.updatedTiers = tiers
	if tenant, ok := s.tenants[id]; ok {
		tenant.DiscountTiers = tiers
	}
	return nil
}

func platformDefaults() []types.DiscountTier {
	return []types.DiscountTier{
		{MinSeats: 10, DiscountPercent: 10},
		{MinSeats: 20, DiscountPercent: 20},
		{MinSeats: 50, DiscountPercent: 30},
	}
}

func newTestService(t *testing.T, repo *stubTenantRepo) Service {
	t.Helper()
	svc, err := NewService(repo, platformDefaults(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedTenant(repo *stubTenantRepo) *models.Tenant {
	tenant := &models.Tenant{ID: uuid.New(), Name: "Acme Learning", Slug: "acme"}
	repo.tenants[tenant.ID] = tenant
	return tenant
}

func TestSetDiscountTiersValidatesInput(t *testing.T) {
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{}}
	tenant := seedTenant(repo)
	svc := newTestService(t, repo)

	cases := []struct {
		name  string
		tiers []types.DiscountTier
	}{
		{name: "empty ladder", tiers: nil},
		{name: "zero threshold", tiers: []types.DiscountTier{{MinSeats: 0, DiscountPercent: 10}}},
		{name: "percent above 100", tiers: []types.DiscountTier{{MinSeats: 10, DiscountPercent: 120}}},
		{name: "negative percent", tiers: []types.DiscountTier{{MinSeats: 10, DiscountPercent: -5}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SetDiscountTiers(context.Background(), tenant.ID, tc.tiers)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %s", pkgerrors.As(err).Code())
			}
		})
	}
	if repo.updatedID != uuid.Nil {
		t.Fatal("invalid ladders must never be persisted")
	}
}

func TestSetAndResetDiscountTiersRoundTrip(t *testing.T) {
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{}}
	tenant := seedTenant(repo)
	svc := newTestService(t, repo)

	custom := []types.DiscountTier{{MinSeats: 5, DiscountPercent: 7.5}}

	updated, err := svc.SetDiscountTiers(context.Background(), tenant.ID, custom)
	if err != nil {
		t.Fatalf("SetDiscountTiers: %v", err)
	}
	if len(updated.DiscountTiers) != 1 || updated.DiscountTiers[0].MinSeats != 5 {
		t.Fatalf("unexpected tiers on tenant: %+v", updated.DiscountTiers)
	}

	effective, err := svc.EffectiveTiers(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("EffectiveTiers: %v", err)
	}
	if len(effective) != 1 || effective[0].DiscountPercent != 7.5 {
		t.Fatalf("custom ladder should win, got %+v", effective)
	}

	if _, err := svc.ResetDiscountTiers(context.Background(), tenant.ID); err != nil {
		t.Fatalf("ResetDiscountTiers: %v", err)
	}
	if repo.updatedTiers != nil {
		t.Fatalf("reset should persist a nil ladder, got %+v", repo.updatedTiers)
	}

	effective, err = svc.EffectiveTiers(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("EffectiveTiers after reset: %v", err)
	}
	if len(effective) != 3 || effective[2].DiscountPercent != 30 {
		t.Fatalf("defaults should apply after reset, got %+v", effective)
	}
}

func TestSetDiscountTiersUnknownTenant(t *testing.T) {
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{}}
	svc := newTestService(t, repo)

	_, err := svc.SetDiscountTiers(context.Background(), uuid.New(), platformDefaults())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %s", pkgerrors.As(err).Code())
	}
}
