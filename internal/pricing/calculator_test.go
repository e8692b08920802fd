package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/courseloop-backend/pkg/db/types"
	"github.com/courseloop/courseloop-backend/pkg/enums"
)

func defaultLadder() []types.DiscountTier {
	return []types.DiscountTier{
		{MinSeats: 10, DiscountPercent: 10},
		{MinSeats: 20, DiscountPercent: 20},
		{MinSeats: 50, DiscountPercent: 30},
	}
}

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(10)
	require.NoError(t, err)
	return calc
}

func intPtr(v int) *int { return &v }

func TestQuoteSeatsDefaultsToOne(t *testing.T) {
	calc := newCalculator(t)

	quote, err := calc.Quote(decimal.NewFromInt(100), enums.LicenseTypeSeats, nil, defaultLadder())
	require.NoError(t, err)

	require.NotNil(t, quote.Seats)
	require.Equal(t, 1, *quote.Seats)
	require.True(t, quote.TotalPrice.Equal(decimal.NewFromInt(100)), "total %s", quote.TotalPrice)
	require.True(t, quote.DiscountPercent.IsZero())
	require.True(t, quote.Savings.IsZero())
}

func TestQuoteSeatsTierBoundaries(t *testing.T) {
	calc := newCalculator(t)
	price := decimal.NewFromInt(100)

	cases := []struct {
		name     string
		seats    int
		perSeat  string
		total    string
		discount string
		savings  string
	}{
		{name: "below first tier", seats: 9, perSeat: "100", total: "900", discount: "0", savings: "0"},
		{name: "first tier boundary", seats: 10, perSeat: "90", total: "900", discount: "10", savings: "100"},
		{name: "between tiers", seats: 19, perSeat: "90", total: "1710", discount: "10", savings: "190"},
		{name: "second tier boundary", seats: 20, perSeat: "80", total: "1600", discount: "20", savings: "400"},
		{name: "top tier", seats: 50, perSeat: "70", total: "3500", discount: "30", savings: "1500"},
		{name: "above top tier", seats: 120, perSeat: "70", total: "8400", discount: "30", savings: "3600"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := calc.Quote(price, enums.LicenseTypeSeats, intPtr(tc.seats), defaultLadder())
			require.NoError(t, err)

			require.True(t, quote.PricePerSeat.Equal(decimal.RequireFromString(tc.perSeat)), "per seat %s", quote.PricePerSeat)
			require.True(t, quote.TotalPrice.Equal(decimal.RequireFromString(tc.total)), "total %s", quote.TotalPrice)
			require.True(t, quote.DiscountPercent.Equal(decimal.RequireFromString(tc.discount)), "discount %s", quote.DiscountPercent)
			require.True(t, quote.Savings.Equal(decimal.RequireFromString(tc.savings)), "savings %s", quote.Savings)
		})
	}
}

func TestQuoteUnlimited(t *testing.T) {
	calc := newCalculator(t)

	quote, err := calc.Quote(decimal.NewFromInt(100), enums.LicenseTypeUnlimited, intPtr(25), defaultLadder())
	require.NoError(t, err)

	require.Nil(t, quote.Seats, "unlimited quotes carry no seat count")
	require.True(t, quote.TotalPrice.Equal(decimal.NewFromInt(1000)), "total %s", quote.TotalPrice)
	require.True(t, quote.DiscountPercent.IsZero())
	require.True(t, quote.Savings.IsZero())
}

func TestQuoteEmptyLadderNeverDiscounts(t *testing.T) {
	calc := newCalculator(t)

	for _, seats := range []int{1, 10, 50, 500} {
		quote, err := calc.Quote(decimal.NewFromInt(100), enums.LicenseTypeSeats, intPtr(seats), nil)
		require.NoError(t, err)
		require.True(t, quote.DiscountPercent.IsZero(), "seats=%d discount %s", seats, quote.DiscountPercent)
		require.True(t, quote.TotalPrice.Equal(decimal.NewFromInt(int64(100*seats))))
	}
}

// The per-seat price is rounded before multiplication. For 10.99 at 7.5% the
// stepwise result is 10.17*7 = 71.19 while a single final rounding would give
// 71.16; billing history depends on the former.
func TestQuoteRoundsPerSeatBeforeMultiplying(t *testing.T) {
	calc := newCalculator(t)
	ladder := []types.DiscountTier{{MinSeats: 5, DiscountPercent: 7.5}}

	quote, err := calc.Quote(decimal.RequireFromString("10.99"), enums.LicenseTypeSeats, intPtr(7), ladder)
	require.NoError(t, err)

	require.True(t, quote.PricePerSeat.Equal(decimal.RequireFromString("10.17")), "per seat %s", quote.PricePerSeat)
	require.True(t, quote.TotalPrice.Equal(decimal.RequireFromString("71.19")), "total %s", quote.TotalPrice)
	require.True(t, quote.Savings.Equal(decimal.RequireFromString("5.74")), "savings %s", quote.Savings)
}

func TestQuoteDeterministic(t *testing.T) {
	calc := newCalculator(t)

	first, err := calc.Quote(decimal.RequireFromString("249.99"), enums.LicenseTypeSeats, intPtr(23), defaultLadder())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := calc.Quote(decimal.RequireFromString("249.99"), enums.LicenseTypeSeats, intPtr(23), defaultLadder())
		require.NoError(t, err)
		require.True(t, first.TotalPrice.Equal(again.TotalPrice))
		require.True(t, first.PricePerSeat.Equal(again.PricePerSeat))
		require.True(t, first.Savings.Equal(again.Savings))
	}
}

func TestQuoteDiscountMonotonicInSeatCount(t *testing.T) {
	calc := newCalculator(t)

	previous := decimal.Zero
	for seats := 1; seats <= 120; seats++ {
		quote, err := calc.Quote(decimal.NewFromInt(80), enums.LicenseTypeSeats, intPtr(seats), defaultLadder())
		require.NoError(t, err)
		require.False(t, quote.DiscountPercent.LessThan(previous),
			"discount regressed at %d seats: %s < %s", seats, quote.DiscountPercent, previous)
		previous = quote.DiscountPercent
	}
}

func TestQuoteRejectsNegativePrice(t *testing.T) {
	calc := newCalculator(t)

	_, err := calc.Quote(decimal.NewFromInt(-1), enums.LicenseTypeSeats, nil, nil)
	require.Error(t, err)
}

func TestQuoteTotalCents(t *testing.T) {
	calc := newCalculator(t)

	quote, err := calc.Quote(decimal.RequireFromString("10.99"), enums.LicenseTypeSeats, intPtr(3), nil)
	require.NoError(t, err)
	require.Equal(t, int64(3297), quote.TotalCents())
}
