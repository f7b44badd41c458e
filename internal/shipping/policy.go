package shipping

import "math"

// taxDivisor extracts the VAT already embedded in a 20% tax-inclusive price:
// total / 6.
const taxDivisor = 6.0

// Rules is the mutable part of the shipping policy, configured externally
// and read fresh on every quote.
type Rules struct {
	FreeShippingThreshold int64
	ThresholdActive       bool
}

// Policy applies business overrides on top of raw per-shipment costs.
type Policy struct {
	// FragileSurcharge is charged once per unit of every fragile-tier item,
	// covering protective packaging.
	FragileSurcharge int64
	// DomesticCountry is the destination for which embedded VAT is disclosed.
	DomesticCountry string
}

// GroupSurcharge sums the fragile-handling surcharge for one group.
func (p Policy) GroupSurcharge(lines []Line) int64 {
	var units int64
	for _, line := range lines {
		if line.Tier == TierFragile && line.Qty > 0 {
			units += int64(line.Qty)
		}
	}
	return units * p.FragileSurcharge
}

// Apply finalises a quote: it sums the group costs, zeroes the whole shipping
// cost when the product subtotal meets the free-shipping threshold (boundary
// inclusive), and computes the embedded VAT disclosure for domestic
// destinations. Tax is informational and never added on top of the total.
func (p Policy) Apply(groups []Group, subtotal int64, destCountry string, rules Rules) Quote {
	var shipping int64
	for _, g := range groups {
		shipping += g.Cost()
	}
	free := rules.ThresholdActive && subtotal >= rules.FreeShippingThreshold
	if free {
		shipping = 0
	}
	var tax int64
	if destCountry == p.DomesticCountry {
		tax = int64(math.Round(float64(subtotal+shipping) / taxDivisor))
	}
	return Quote{
		Subtotal:     subtotal,
		Shipping:     shipping,
		Tax:          tax,
		GrandTotal:   subtotal + shipping,
		FreeShipping: free,
		Groups:       groups,
	}
}
