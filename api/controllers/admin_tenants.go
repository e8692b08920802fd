package controllers

import (
	"net/http"

	"github.com/courseloop/courseloop-backend/api/responses"
	"github.com/courseloop/courseloop-backend/api/validators"
	"github.com/courseloop/courseloop-backend/internal/tenants"
	"github.com/courseloop/courseloop-backend/pkg/db/types"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

type discountTierPayload struct {
	MinSeats        int     `json:"min_seats" validate:"min=1"`
	DiscountPercent float64 `json:"discount_percent" validate:"min=0,max=100"`
}

type discountTiersRequest struct {
	Tiers []discountTierPayload `json:"tiers" validate:"required,min=1,dive"`
}

// AdminSetDiscountTiers replaces a tenant's volume discount ladder.
func AdminSetDiscountTiers(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant service unavailable"))
			return
		}

		tenantID, err := uuidParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req discountTiersRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tiers := make([]types.DiscountTier, 0, len(req.Tiers))
		for _, tier := range req.Tiers {
			tiers = append(tiers, types.DiscountTier{
				MinSeats:        tier.MinSeats,
				DiscountPercent: tier.DiscountPercent,
			})
		}

		tenant, err := svc.SetDiscountTiers(r.Context(), tenantID, tiers)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenant)
	}
}

// AdminResetDiscountTiers clears the override so platform defaults apply.
func AdminResetDiscountTiers(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant service unavailable"))
			return
		}

		tenantID, err := uuidParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenant, err := svc.ResetDiscountTiers(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenant)
	}
}

// AdminEffectiveTiers returns the ladder a tenant's quotes will use.
func AdminEffectiveTiers(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant service unavailable"))
			return
		}

		tenantID, err := uuidParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tiers, err := svc.EffectiveTiers(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tiers": tiers})
	}
}
