package shipping_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-souk/internal/shipping"
)

type stubRates struct {
	prices map[string]int64
	err    error
}

func (s stubRates) Find(_ context.Context, origin, dest string, _ int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	price, ok := s.prices[origin+"->"+dest]
	if !ok {
		return 0, shipping.ErrNoRate
	}
	return price, nil
}

func TestQuoteFallbackScenario(t *testing.T) {
	t.Parallel()

	// One non-stackable basket: 500g real, 20x20x20cm, 35.00 from MA to FR.
	// Billable weight = max(500, 8000/5000*1000) = 1600g.
	// Fallback MA->FR: 2500 + 1.6*400 = 3140. Tax = round(6640/6) = 1107.
	engine := &shipping.Engine{
		Rates:         stubRates{},
		Policy:        shipping.Policy{FragileSurcharge: 300, DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{{
		ItemID:      "panier-A",
		Qty:         1,
		Origin:      "MA",
		WeightGrams: 500,
		Dims:        shipping.Dimensions{Length: 20, Width: 20, Height: 20},
		Tier:        shipping.TierStandard,
		UnitPrice:   3500,
	}}

	quote, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.NoError(t, err)
	require.Equal(t, int64(3140), quote.Shipping)
	require.Equal(t, int64(1107), quote.Tax)
	require.Equal(t, int64(6640), quote.GrandTotal)
	require.Len(t, quote.Groups, 1)
	require.Equal(t, int64(1600), quote.Groups[0].BillableGrams)
}

func TestQuoteFreeShippingOverride(t *testing.T) {
	t.Parallel()

	engine := &shipping.Engine{
		Rates:         stubRates{},
		Policy:        shipping.Policy{DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{{
		ItemID:      "panier-A",
		Qty:         1,
		Origin:      "MA",
		WeightGrams: 500,
		Dims:        shipping.Dimensions{Length: 20, Width: 20, Height: 20},
		UnitPrice:   3500,
	}}

	quote, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{
		FreeShippingThreshold: 3500,
		ThresholdActive:       true,
	})
	require.NoError(t, err)
	require.True(t, quote.FreeShipping)
	require.Zero(t, quote.Shipping)
	require.Equal(t, int64(3500), quote.GrandTotal)
}

func TestQuotePrefersRateTable(t *testing.T) {
	t.Parallel()

	engine := &shipping.Engine{
		Rates:         stubRates{prices: map[string]int64{"MA->FR": 2990}},
		Policy:        shipping.Policy{DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{{ItemID: "panier-A", Qty: 1, WeightGrams: 500, UnitPrice: 3500}}

	quote, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.NoError(t, err)
	require.Equal(t, int64(2990), quote.Shipping)
}

func TestQuotePartitionsByOrigin(t *testing.T) {
	t.Parallel()

	engine := &shipping.Engine{
		Rates:         stubRates{prices: map[string]int64{"MA->FR": 2000, "FR->FR": 500}},
		Policy:        shipping.Policy{FragileSurcharge: 300, DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{
		{ItemID: "tajine", Qty: 1, Origin: "MA", WeightGrams: 1000, UnitPrice: 4000, Tier: shipping.TierFragile},
		{ItemID: "savon", Qty: 2, Origin: "FR", WeightGrams: 100, UnitPrice: 600},
	}

	quote, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.NoError(t, err)
	require.Len(t, quote.Groups, 2)
	// 2000 + 300 fragile surcharge + 500 = 2800
	require.Equal(t, int64(2800), quote.Shipping)
	require.Equal(t, int64(5200), quote.Subtotal)
	// Sorted origins keep group order deterministic.
	require.Equal(t, "FR", quote.Groups[0].Origin)
	require.Equal(t, "MA", quote.Groups[1].Origin)
}

func TestQuoteDefaultsMissingOrigin(t *testing.T) {
	t.Parallel()

	engine := &shipping.Engine{
		Rates:         stubRates{prices: map[string]int64{"MA->FR": 2000}},
		Policy:        shipping.Policy{DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{{ItemID: "panier-A", Qty: 1, UnitPrice: 3500}}

	quote, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.NoError(t, err)
	require.Len(t, quote.Groups, 1)
	require.Equal(t, "MA", quote.Groups[0].Origin)
}

func TestQuotePropagatesRateStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("connection refused")
	engine := &shipping.Engine{
		Rates:         stubRates{err: storeErr},
		Policy:        shipping.Policy{DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{{ItemID: "panier-A", Qty: 1, WeightGrams: 500, UnitPrice: 3500}}

	_, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.ErrorIs(t, err, storeErr)
}

func TestQuoteIdempotentForSameInput(t *testing.T) {
	t.Parallel()

	engine := &shipping.Engine{
		Rates:         stubRates{},
		Policy:        shipping.Policy{DomesticCountry: "FR"},
		DefaultOrigin: "MA",
	}
	lines := []shipping.Line{
		{ItemID: "a", Qty: 2, Origin: "MA", WeightGrams: 700, Dims: shipping.Dimensions{Length: 30, Width: 20, Height: 15}, Stackable: true, UnitPrice: 1250},
		{ItemID: "b", Qty: 1, Origin: "FR", WeightGrams: 2500, UnitPrice: 9900},
	}

	first, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.NoError(t, err)
	second, err := engine.Quote(context.Background(), lines, "FR", shipping.Rules{})
	require.NoError(t, err)
	require.Equal(t, first.GrandTotal, second.GrandTotal)
	require.Equal(t, first.Shipping, second.Shipping)
}
