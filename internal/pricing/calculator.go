package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/courseloop/courseloop-backend/pkg/db/types"
	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// Quote is the derived price breakdown for a prospective license purchase.
// It is never persisted; the checkout flow snapshots TotalPrice into the
// license row as cents at purchase time.
type Quote struct {
	CoursePrice     decimal.Decimal      `json:"course_price"`
	LicenseType     enums.LicenseType    `json:"license_type"`
	Seats           *int                 `json:"seats"`
	PricePerSeat    decimal.Decimal      `json:"price_per_seat"`
	TotalPrice      decimal.Decimal      `json:"total_price"`
	DiscountPercent decimal.Decimal      `json:"discount_percent"`
	Savings         decimal.Decimal      `json:"savings"`
	Tiers           []types.DiscountTier `json:"tiers"`
}

// TotalCents converts the quoted total into integer cents for the gateway.
func (q Quote) TotalCents() int64 {
	return q.TotalPrice.Mul(decimal.NewFromInt(100)).IntPart()
}

// Calculator computes license quotes. It holds only configuration; Quote is a
// pure function of its inputs.
type Calculator struct {
	unlimitedMultiplier decimal.Decimal
}

// NewCalculator builds a calculator with the configured unlimited-license
// price multiplier (platform default 10x the course price).
func NewCalculator(unlimitedMultiplier int) (*Calculator, error) {
	if unlimitedMultiplier < 1 {
		return nil, fmt.Errorf("unlimited multiplier must be at least 1, got %d", unlimitedMultiplier)
	}
	return &Calculator{unlimitedMultiplier: decimal.NewFromInt(int64(unlimitedMultiplier))}, nil
}

// Quote prices a license of the given type against the effective tier ladder.
//
// Seat licenses default to one seat when seats is nil; callers validate that
// an explicit seat count is positive before reaching the calculator. Rounding
// is half-up to two decimal places applied stepwise: the per-seat price is
// rounded before it is multiplied by the seat count. Existing quotes depend on
// that ordering, so it must not be "simplified" into a single final rounding.
func (c *Calculator) Quote(coursePrice decimal.Decimal, licenseType enums.LicenseType, seats *int, tiers []types.DiscountTier) (Quote, error) {
	if coursePrice.IsNegative() {
		return Quote{}, fmt.Errorf("course price must not be negative")
	}
	if !licenseType.IsValid() {
		return Quote{}, fmt.Errorf("invalid license type %q", licenseType)
	}

	if licenseType == enums.LicenseTypeUnlimited {
		return Quote{
			CoursePrice:     coursePrice,
			LicenseType:     licenseType,
			Seats:           nil,
			PricePerSeat:    decimal.Zero,
			TotalPrice:      round2(coursePrice.Mul(c.unlimitedMultiplier)),
			DiscountPercent: decimal.Zero,
			Savings:         decimal.Zero,
			Tiers:           tiers,
		}, nil
	}

	effectiveSeats := 1
	if seats != nil {
		effectiveSeats = *seats
	}
	seatCount := decimal.NewFromInt(int64(effectiveSeats))

	discount := ResolveDiscount(tiers, effectiveSeats)
	hundred := decimal.NewFromInt(100)

	pricePerSeat := round2(coursePrice.Mul(hundred.Sub(discount)).Div(hundred))
	totalPrice := round2(pricePerSeat.Mul(seatCount))
	savings := round2(coursePrice.Mul(seatCount).Sub(totalPrice))

	return Quote{
		CoursePrice:     coursePrice,
		LicenseType:     licenseType,
		Seats:           &effectiveSeats,
		PricePerSeat:    pricePerSeat,
		TotalPrice:      totalPrice,
		DiscountPercent: discount,
		Savings:         savings,
		Tiers:           tiers,
	}, nil
}

// round2 rounds half-up to two decimal places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
