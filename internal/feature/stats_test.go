package feature

import (
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohealth/envfuse/internal/domain"
)

var onePixelGrid = domain.GridSpec{
	Bounds:  domain.Bounds{West: 0, South: 0, East: 1, North: 1},
	Width:   1,
	Height:  1,
	CellDeg: 1.0,
}

func day(d int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d-1)
}

func dailyTimes(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day(i + 1)
	}
	return out
}

// series builds a one-pixel time series block.
func series(t *testing.T, name string, values []float64) *domain.RasterBlock {
	t.Helper()
	data := sparse.ZerosDense(len(values), 1, 1)
	copy(data.Elements, values)
	block, err := domain.NewSeriesBlock(name, onePixelGrid, dailyTimes(len(values)), data)
	require.NoError(t, err)
	return block
}

func TestSeriesStats(t *testing.T) {
	block := series(t, domain.VarTemperature, []float64{20, math.NaN(), 26, 23})

	mean, min, max := seriesStats(block)

	assert.InDelta(t, 23.0, mean.Get(0, 0), 1e-9, "NaN samples are excluded from the mean")
	assert.Equal(t, 20.0, min.Get(0, 0))
	assert.Equal(t, 26.0, max.Get(0, 0))
}

func TestSeriesStatsAllMissing(t *testing.T) {
	block := series(t, domain.VarTemperature, []float64{math.NaN(), math.NaN()})

	mean, min, max := seriesStats(block)

	assert.True(t, math.IsNaN(mean.Get(0, 0)))
	assert.True(t, math.IsNaN(min.Get(0, 0)))
	assert.True(t, math.IsNaN(max.Get(0, 0)))
}

func TestWindowSum(t *testing.T) {
	values := []float64{100, 100, 100, 1, 2, 3, 4, 5, 6, 7}
	block := series(t, domain.VarPrecipitation, values)

	out := windowSum(block, block.Times, 7)

	// Only the trailing seven days (values 1..7) fall inside the window.
	assert.InDelta(t, 28.0, out.Get(0, 0), 1e-9)
}

func TestDrySpell(t *testing.T) {
	block := series(t, domain.VarPrecipitation, []float64{0, 0, 0, 5, 0, 0})

	out := drySpell(block, 1.0)

	assert.Equal(t, 3.0, out.Get(0, 0), "longest run of sub-threshold days")
}

func TestDrySpellMissingBreaksRun(t *testing.T) {
	block := series(t, domain.VarPrecipitation, []float64{0, 0, math.NaN(), 0, 0, 0})

	out := drySpell(block, 1.0)

	assert.Equal(t, 3.0, out.Get(0, 0), "a missing day never extends a dry run")
}

func TestTrendSlope(t *testing.T) {
	// A perfect daily ramp has slope 1 per day.
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i)
	}
	block := series(t, domain.VarNDVI, values)

	out := trendSlope(block, block.Times, 30)

	assert.InDelta(t, 1.0, out.Get(0, 0), 1e-9)
}

func TestTrendSlopeTooFewSamples(t *testing.T) {
	block := series(t, domain.VarNDVI, []float64{0.1, math.NaN(), 0.3, math.NaN(), math.NaN()})

	out := trendSlope(block, block.Times, 30)

	assert.Equal(t, 0.0, out.Get(0, 0), "fewer than three valid samples yields no trend")
}

func TestVegetationStress(t *testing.T) {
	block := series(t, domain.VarNDVI, []float64{0.8, 0.6, 0.4})

	out := vegetationStress(block, 0.1)

	assert.InDelta(t, 0.5, out.Get(0, 0), 1e-9, "current 0.4 against a historical max of 0.8")
}

func TestVegetationStressBarePixel(t *testing.T) {
	block := series(t, domain.VarNDVI, []float64{0.05, 0.02, 0.04})

	out := vegetationStress(block, 0.1)

	assert.Equal(t, 0.0, out.Get(0, 0), "bare ground is never stressed vegetation")
}
