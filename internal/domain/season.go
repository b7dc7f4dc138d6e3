package domain

import (
	"math"
	"time"
)

const (
	// seasonalPeriodDays is the period of the transmission seasonality
	// cycle.
	seasonalPeriodDays = 365.0
	// seasonalPhaseDays offsets the sinusoid so the transmission peak
	// falls after the rainy season. Day-of-year 120 sits exactly at the
	// sinusoid midpoint (factor 0.5).
	seasonalPhaseDays = 120.0
)

// SeasonalFactor returns the transmission seasonality multiplier for t.
// The value is always within [0, 1]. Annual risk surfaces broadcast across
// a time index are scaled by this factor, and the same value is emitted as
// the seasonal_index meta-feature.
//
// The phase and the sinusoidal form mimic a post-rainy-season transmission
// peak; they are modeling assumptions, not calibrated epidemiology.
func SeasonalFactor(t time.Time) float64 {
	doy := float64(t.YearDay())
	return 0.5 * (1 + math.Sin(2*math.Pi*(doy-seasonalPhaseDays)/seasonalPeriodDays))
}
