package shipping

// HandlingTier classifies how a parcel must be prepared. Unknown values
// normalise to TierStandard at resolution time.
type HandlingTier string

const (
	TierStandard HandlingTier = "standard"
	TierFragile  HandlingTier = "fragile"
	TierOversize HandlingTier = "oversize"
)

// ParseHandlingTier maps a raw catalog value onto a known tier.
func ParseHandlingTier(value string) HandlingTier {
	switch HandlingTier(value) {
	case TierFragile:
		return TierFragile
	case TierOversize:
		return TierOversize
	default:
		return TierStandard
	}
}

// Dimensions describes outer packaging in centimetres.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// Volume returns the cubic-centimetre volume of a single unit.
func (d Dimensions) Volume() float64 {
	return d.Length * d.Width * d.Height
}

// Line is one cart line resolved against current catalog state. Lines are
// built fresh for every quote and never outlive it.
type Line struct {
	ItemID      string
	Qty         int
	Origin      string
	WeightGrams int64
	Dims        Dimensions
	Stackable   bool
	Tier        HandlingTier
	UnitPrice   int64
}

// Group is the set of lines sharing one origin warehouse, priced as one
// independent parcel.
type Group struct {
	Origin          string
	Lines           []Line
	RealWeightGrams int64
	EffectiveVolume float64
	BillableGrams   int64
	BaseCost        int64
	Surcharge       int64
}

// Cost returns the charged amount for the group before policy overrides.
func (g Group) Cost() int64 {
	return g.BaseCost + g.Surcharge
}

// Quote aggregates the computed pricing components for one checkout pass.
type Quote struct {
	Subtotal     int64
	Shipping     int64
	Tax          int64
	GrandTotal   int64
	FreeShipping bool
	Groups       []Group
}
