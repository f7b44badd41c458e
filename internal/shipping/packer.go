package shipping

import "sort"

// nestedVolumeFactor is the share of its own volume a smaller stackable item
// occupies once nested inside the largest stackable item of the parcel.
const nestedVolumeFactor = 0.2

// EffectiveVolume estimates the packed volume of one shipment group in cubic
// centimetres.
//
// Non-stackable items always contribute their full volume per unit. Stackable
// items are sorted by descending per-unit volume: the largest contributes its
// full volume per unit, every other stackable item contributes only
// nestedVolumeFactor of its per-unit volume, modelling nesting inside the
// largest item's unused interior.
//
// Known simplification, preserved on purpose: multiple units of the same
// largest item are each charged full volume. Identical baskets do not nest
// into each other, and changing that would change customer-facing prices.
func EffectiveVolume(lines []Line) float64 {
	var total float64
	stackable := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		if line.Stackable {
			stackable = append(stackable, line)
			continue
		}
		total += line.Dims.Volume() * float64(line.Qty)
	}
	if len(stackable) == 0 {
		return total
	}
	sort.SliceStable(stackable, func(i, j int) bool {
		return stackable[i].Dims.Volume() > stackable[j].Dims.Volume()
	})
	total += stackable[0].Dims.Volume() * float64(stackable[0].Qty)
	for _, line := range stackable[1:] {
		total += line.Dims.Volume() * nestedVolumeFactor * float64(line.Qty)
	}
	return total
}
