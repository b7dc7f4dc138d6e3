package feature

// Params holds the tunable coefficients of the derived interaction
// features. The defaults reproduce the formulas documented in the feature
// catalog, but none of them are calibrated against real epidemiological
// data; they are modeling knobs, not physical constants, which is why they
// live in a struct instead of being hard-coded at the use sites.
type Params struct {
	// Temperature suitability ramp: 0 below Min, linear up over
	// [Min, PlateauLow], 1 over [PlateauLow, PlateauHigh], linear down
	// over [PlateauHigh, Max], 0 above Max. Degrees Celsius.
	TempSuitMin         float64
	TempSuitPlateauLow  float64
	TempSuitPlateauHigh float64
	TempSuitMax         float64

	// Breeding habitat index term weights and the precipitation
	// saturation scale (mm over 7 days).
	BreedingTempWeight   float64
	BreedingPrecipWeight float64
	BreedingNDVIWeight   float64
	BreedingPrecipScale  float64

	// Climate stress index weights and scales.
	StressTempWeight   float64
	StressPrecipWeight float64
	StressVegWeight    float64
	StressTempCenter   float64
	StressTempScale    float64
	StressPrecipScale  float64

	// Vector activity potential: Gaussian temperature response and
	// sigmoid humidity response.
	VectorTempCenter     float64
	VectorTempScale      float64
	VectorHumidityCenter float64
	VectorHumidityScale  float64

	// DrySpellThresholdMM defines a dry day for the longest-dry-spell
	// count.
	DrySpellThresholdMM float64
	// TrendWindowDays is the lookback for the vegetation trend slope and
	// the short/long precipitation accumulations (7 and 30 days are the
	// accumulation windows; this bounds the trend fit).
	TrendWindowDays int
	// VegetatedThreshold is the minimum historical NDVI for a pixel to
	// count as vegetated in the stress indicator.
	VegetatedThreshold float64
	// RiskPercentDivisor converts the risk surface from percent to a
	// fraction in the population-at-risk product.
	RiskPercentDivisor float64
	// PlaceholderQuality is the constant emitted as the data_quality_score
	// meta-feature. The quality manager computes the authoritative score
	// separately.
	PlaceholderQuality float64
}

// DefaultParams returns the documented default coefficients.
func DefaultParams() Params {
	return Params{
		TempSuitMin:         15,
		TempSuitPlateauLow:  25,
		TempSuitPlateauHigh: 30,
		TempSuitMax:         40,

		BreedingTempWeight:   0.4,
		BreedingPrecipWeight: 0.4,
		BreedingNDVIWeight:   0.2,
		BreedingPrecipScale:  50,

		StressTempWeight:   0.4,
		StressPrecipWeight: 0.4,
		StressVegWeight:    0.2,
		StressTempCenter:   27.5,
		StressTempScale:    15,
		StressPrecipScale:  25,

		VectorTempCenter:     27,
		VectorTempScale:      50,
		VectorHumidityCenter: 60,
		VectorHumidityScale:  10,

		DrySpellThresholdMM: 1.0,
		TrendWindowDays:     30,
		VegetatedThreshold:  0.1,
		RiskPercentDivisor:  100,
		PlaceholderQuality:  0.85,
	}
}
