package shipping

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-souk/internal/obs"
)

var billableWeightHist, _ = otel.Meter("shipping").Int64Histogram(
	"shipping.billable_weight_grams",
	metric.WithDescription("Billable weight per shipment group"),
)

// Engine runs the per-shipment pricing pipeline: partition by origin, pack,
// reconcile weight, resolve a rate and apply policy. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	Rates         RateStore
	Policy        Policy
	DefaultOrigin string
}

// Quote prices the provided resolved lines for one destination country.
// Rate-table misses fall back to the lane formula; datastore failures
// propagate so the caller can retry rather than mis-price.
func (e *Engine) Quote(ctx context.Context, lines []Line, destCountry string, rules Rules) (Quote, error) {
	if e == nil || e.Rates == nil {
		return Quote{}, errors.New("shipping engine not configured")
	}
	ctx, span := otel.Tracer("shipping.Engine").Start(ctx, "Engine.Quote")
	defer span.End()

	var subtotal int64
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		subtotal += int64(line.Qty) * line.UnitPrice
	}

	partitioned := Partition(lines, e.DefaultOrigin)
	groups := make([]Group, 0, len(partitioned))
	for _, origin := range SortedOrigins(partitioned) {
		group, err := e.priceGroup(ctx, origin, destCountry, partitioned[origin])
		if err != nil {
			span.RecordError(err)
			return Quote{}, err
		}
		groups = append(groups, group)
	}

	quote := e.Policy.Apply(groups, subtotal, destCountry, rules)
	span.SetAttributes(
		attribute.Int("shipping.groups", len(groups)),
		attribute.Int64("shipping.cost_minor", quote.Shipping),
		attribute.Bool("shipping.free", quote.FreeShipping),
	)
	return quote, nil
}

func (e *Engine) priceGroup(ctx context.Context, origin, destCountry string, lines []Line) (Group, error) {
	group := Group{Origin: origin, Lines: lines}
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		group.RealWeightGrams += int64(line.Qty) * line.WeightGrams
	}
	group.EffectiveVolume = EffectiveVolume(lines)
	group.BillableGrams = BillableWeightGrams(group.EffectiveVolume, group.RealWeightGrams)
	if billableWeightHist != nil {
		billableWeightHist.Record(ctx, group.BillableGrams, metric.WithAttributes(attribute.String("origin", origin)))
	}

	base, err := e.Rates.Find(ctx, origin, destCountry, group.BillableGrams)
	if errors.Is(err, ErrNoRate) {
		base = FallbackRate(origin, destCountry, e.DefaultOrigin, group.BillableGrams)
		if obs.RateFallbackTotal != nil {
			obs.RateFallbackTotal.WithLabelValues(origin).Inc()
		}
	} else if err != nil {
		return Group{}, err
	}
	group.BaseCost = base
	group.Surcharge = e.Policy.GroupSurcharge(lines)
	return group, nil
}
