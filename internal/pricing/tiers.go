package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/courseloop/courseloop-backend/pkg/db/types"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
)

// ResolveDiscount returns the discount percent for the given seat count.
// The tier with the largest min_seats threshold still satisfied by seatCount
// wins; when two tiers share that threshold the greater percent applies.
// An empty ladder, or a seat count below every threshold, yields zero.
func ResolveDiscount(tiers []types.DiscountTier, seatCount int) decimal.Decimal {
	best := decimal.Zero
	bestThreshold := 0
	for _, tier := range tiers {
		if tier.MinSeats <= 0 || tier.MinSeats > seatCount {
			continue
		}
		percent := decimal.NewFromFloat(tier.DiscountPercent)
		switch {
		case tier.MinSeats > bestThreshold:
			bestThreshold = tier.MinSeats
			best = percent
		case tier.MinSeats == bestThreshold && percent.GreaterThan(best):
			best = percent
		}
	}
	return best
}

// EffectiveTiers returns the tenant's custom ladder when one is configured,
// falling back to the injected platform defaults.
func EffectiveTiers(custom, defaults []types.DiscountTier) []types.DiscountTier {
	if len(custom) > 0 {
		return custom
	}
	return defaults
}

// ValidateTiers checks every tier's bounds. Duplicate thresholds are legal
// (resolution picks the greater percent) but callers should surface
// HasDuplicateThresholds as a warning.
func ValidateTiers(tiers []types.DiscountTier) error {
	for i, tier := range tiers {
		if tier.MinSeats < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier min_seats must be at least 1").
				WithDetails(map[string]any{"index": i, "min_seats": tier.MinSeats})
		}
		if tier.DiscountPercent < 0 || tier.DiscountPercent > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier discount_percent must be between 0 and 100").
				WithDetails(map[string]any{"index": i, "discount_percent": tier.DiscountPercent})
		}
	}
	return nil
}

// HasDuplicateThresholds reports whether two tiers share a min_seats value.
func HasDuplicateThresholds(tiers []types.DiscountTier) bool {
	seen := make(map[int]struct{}, len(tiers))
	for _, tier := range tiers {
		if _, ok := seen[tier.MinSeats]; ok {
			return true
		}
		seen[tier.MinSeats] = struct{}{}
	}
	return false
}

// ParseTierSpec decodes the configured default ladder, formatted as
// comma-separated "minSeats:discountPercent" pairs, e.g. "10:10,20:20,50:30".
func ParseTierSpec(spec string) ([]types.DiscountTier, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	tiers := make([]types.DiscountTier, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid tier %q (want minSeats:discountPercent)", part)
		}
		minSeats, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid tier min seats %q: %w", fields[0], err)
		}
		percent, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier percent %q: %w", fields[1], err)
		}
		tiers = append(tiers, types.DiscountTier{MinSeats: minSeats, DiscountPercent: percent})
	}
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}
