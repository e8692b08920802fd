package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/internal/pricing"
	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/db/types"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

type tenantsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateDiscountTiers(ctx context.Context, id uuid.UUID, tiers types.DiscountTierList) error
}

// Service exposes tenant lookup and discount-ladder administration.
type Service interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	SetDiscountTiers(ctx context.Context, id uuid.UUID, tiers []types.DiscountTier) (*models.Tenant, error)
	ResetDiscountTiers(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	EffectiveTiers(ctx context.Context, id uuid.UUID) ([]types.DiscountTier, error)
}

type service struct {
	repo         tenantsRepository
	defaultTiers []types.DiscountTier
	log          *logger.Logger
}

// NewService builds a tenant service with the platform default ladder.
func NewService(repo tenantsRepository, defaultTiers []types.DiscountTier, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if err := pricing.ValidateTiers(defaultTiers); err != nil {
		return nil, fmt.Errorf("invalid default tiers: %w", err)
	}
	return &service{repo: repo, defaultTiers: defaultTiers, log: log}, nil
}

func (s *service) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	return tenant, nil
}

func (s *service) SetDiscountTiers(ctx context.Context, id uuid.UUID, tiers []types.DiscountTier) (*models.Tenant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if len(tiers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one tier is required")
	}
	if err := pricing.ValidateTiers(tiers); err != nil {
		return nil, err
	}
	if pricing.HasDuplicateThresholds(tiers) && s.log != nil {
		logCtx := s.log.WithTenantID(ctx, id.String())
		s.log.Warn(logCtx, "discount ladder has duplicate min_seats thresholds, greater percent wins")
	}

	tenant, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDiscountTiers(ctx, id, types.DiscountTierList(tiers)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount tiers")
	}
	tenant.DiscountTiers = types.DiscountTierList(tiers)
	return tenant, nil
}

func (s *service) ResetDiscountTiers(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDiscountTiers(ctx, id, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset discount tiers")
	}
	tenant.DiscountTiers = nil
	return tenant, nil
}

// EffectiveTiers resolves the ladder used to price this tenant's purchases.
func (s *service) EffectiveTiers(ctx context.Context, id uuid.UUID) ([]types.DiscountTier, error) {
	tenant, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	return pricing.EffectiveTiers(tenant.DiscountTiers, s.defaultTiers), nil
}
