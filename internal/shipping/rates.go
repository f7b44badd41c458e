package shipping

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRate is returned when the rate table has no row for the requested
// lane and weight. It is the only condition under which FallbackRate applies;
// datastore failures are reported separately so callers can retry instead of
// silently falling back.
var ErrNoRate = errors.New("shipping: no rate configured for lane")

// RateStore resolves a base cost in minor units for one shipment.
type RateStore interface {
	Find(ctx context.Context, origin, destCountry string, billableGrams int64) (int64, error)
}

// PGRateStore reads the shipping_rates table. Weight bands for a lane are
// expected to be contiguous and non-overlapping; should overlapping rows ever
// exist the lowest-priced match wins, keeping the lookup deterministic.
type PGRateStore struct {
	Pool *pgxpool.Pool
}

// Find returns the table price for the lane and billable weight, ErrNoRate
// when no band matches, or a wrapped datastore error.
func (s PGRateStore) Find(ctx context.Context, origin, destCountry string, billableGrams int64) (int64, error) {
	if s.Pool == nil {
		return 0, errors.New("shipping: rate store not configured")
	}
	const q = `
		SELECT price_minor
		FROM shipping_rates
		WHERE origin_warehouse = $1
		  AND destination_country = $2
		  AND min_weight_grams <= $3
		  AND (max_weight_grams IS NULL OR max_weight_grams >= $3)
		ORDER BY price_minor ASC, min_weight_grams ASC
		LIMIT 1`
	var price int64
	err := s.Pool.QueryRow(ctx, q, origin, destCountry, billableGrams).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoRate
	}
	if err != nil {
		return 0, fmt.Errorf("query shipping rate %s->%s: %w", origin, destCountry, err)
	}
	return price, nil
}

// Fallback lane formulas: a fixed base fee plus a per-kilogram marginal rate.
// These are permanent policy for lanes the rate table does not cover, not a
// placeholder.
const (
	crossBorderBaseMinor  = 2500
	crossBorderPerKgMinor = 400
	domesticBaseMinor     = 700
	domesticPerKgMinor    = 150
	genericBaseMinor      = 1500
	genericPerKgMinor     = 250
)

// FallbackRate prices a lane with no rate-table coverage. Three tiers:
// shipments leaving the primary overseas warehouse pay the cross-border
// tariff, shipments whose origin matches the destination country pay the
// domestic tariff, and every other lane pays a generic international tariff.
func FallbackRate(origin, destCountry, primaryWarehouse string, billableGrams int64) int64 {
	if billableGrams < 0 {
		billableGrams = 0
	}
	kg := float64(billableGrams) / 1000
	switch {
	case origin == primaryWarehouse && origin != destCountry:
		return crossBorderBaseMinor + int64(math.Round(kg*crossBorderPerKgMinor))
	case origin == destCountry:
		return domesticBaseMinor + int64(math.Round(kg*domesticPerKgMinor))
	default:
		return genericBaseMinor + int64(math.Round(kg*genericPerKgMinor))
	}
}
