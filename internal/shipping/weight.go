package shipping

import "math"

// volumetricDivisor is the IATA divisor converting cubic centimetres into an
// equivalent chargeable weight: 5000 cm³ per kilogram.
const volumetricDivisor = 5000.0

// VolumetricWeightGrams converts an effective volume in cubic centimetres to
// grams using the IATA divisor.
func VolumetricWeightGrams(effectiveVolume float64) int64 {
	if effectiveVolume <= 0 {
		return 0
	}
	return int64(math.Round(effectiveVolume / volumetricDivisor * 1000))
}

// BillableWeightGrams returns the weight a shipment is charged at: the
// greater of its real weight and its volumetric weight, so light-but-bulky
// parcels are never under-priced.
func BillableWeightGrams(effectiveVolume float64, realWeightGrams int64) int64 {
	if realWeightGrams < 0 {
		realWeightGrams = 0
	}
	volumetric := VolumetricWeightGrams(effectiveVolume)
	if volumetric > realWeightGrams {
		return volumetric
	}
	return realWeightGrams
}
