package quality

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohealth/envfuse/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// grid16 is a 4x4 grid so series blocks can reach the paired-sample minimum
// with a modest number of steps.
var grid16 = domain.GridSpec{
	Bounds:  domain.Bounds{West: 0, South: 0, East: 1, North: 1},
	Width:   4,
	Height:  4,
	CellDeg: 0.25,
}

func seriesOf(t *testing.T, name string, steps int, fill func(i int) float64) *domain.RasterBlock {
	t.Helper()
	times := make([]time.Time, steps)
	for i := range times {
		times[i] = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	data := sparse.ZerosDense(steps, 4, 4)
	for i := range data.Elements {
		data.Elements[i] = fill(i)
	}
	block, err := domain.NewSeriesBlock(name, grid16, times, data)
	require.NoError(t, err)
	return block
}

func dataset(kind domain.SourceKind, blocks ...*domain.RasterBlock) *domain.SourceDataset {
	return &domain.SourceDataset{Kind: kind, Blocks: blocks}
}

func TestAssessCleanSource(t *testing.T) {
	datasets := map[domain.SourceKind]*domain.SourceDataset{
		domain.SourceClimate: dataset(domain.SourceClimate,
			seriesOf(t, domain.VarTemperature, 4, func(int) float64 { return 25 })),
	}

	report := New(discardLogger()).Assess(datasets, nil)

	assert.Equal(t, 1.0, report.PerSource[domain.SourceClimate])
	assert.Equal(t, 1.0, report.Completeness)
	assert.Equal(t, 1.0, report.Overall)
	assert.Equal(t, "high", report.Category)
	assert.True(t, report.ConsistencyPass)
	assert.Empty(t, report.Consistency, "no check has both sources present")
}

func TestAssessPenalizesViolationsAndMissing(t *testing.T) {
	// 64 pixels: 16 missing, 16 beyond the physical temperature range.
	block := seriesOf(t, domain.VarTemperature, 4, func(i int) float64 {
		switch {
		case i < 16:
			return math.NaN()
		case i < 32:
			return 500
		default:
			return 25
		}
	})
	datasets := map[domain.SourceKind]*domain.SourceDataset{
		domain.SourceClimate: dataset(domain.SourceClimate, block),
	}

	report := New(discardLogger()).Assess(datasets, nil)

	// (1 - 16/64) * (1 - 16/64) = 0.5625
	assert.InDelta(t, 0.5625, report.PerSource[domain.SourceClimate], 1e-9)
	assert.InDelta(t, 0.75, report.Completeness, 1e-9)
	assert.InDelta(t, 0.5625*0.75, report.Overall, 1e-9)
	assert.Equal(t, "low", report.Category)
}

func TestAssessHumidityUsesPercentRange(t *testing.T) {
	// 90 exceeds the climate strategy's temperature range but is a valid
	// relative humidity; the humidity block must be scored against the
	// percent range, not the temperature range.
	datasets := map[domain.SourceKind]*domain.SourceDataset{
		domain.SourceClimate: dataset(domain.SourceClimate,
			seriesOf(t, domain.VarHumidity, 4, func(int) float64 { return 90 })),
	}

	report := New(discardLogger()).Assess(datasets, nil)
	assert.Equal(t, 1.0, report.PerSource[domain.SourceClimate])

	// 150 percent humidity is a genuine violation.
	datasets[domain.SourceClimate] = dataset(domain.SourceClimate,
		seriesOf(t, domain.VarHumidity, 4, func(i int) float64 {
			if i < 16 {
				return 150
			}
			return 55
		}))

	report = New(discardLogger()).Assess(datasets, nil)
	assert.InDelta(t, 0.75, report.PerSource[domain.SourceClimate], 1e-9)
}

func TestAssessConsistencyPenalty(t *testing.T) {
	const steps = 8 // 128 pixels, above the paired-sample minimum

	// Perfectly anti-correlated temperature and NDVI: far outside the
	// expected [0.2, 0.8] interval.
	temp := seriesOf(t, domain.VarTemperature, steps, func(i int) float64 { return 20 + 0.01*float64(i%37) })
	ndvi := seriesOf(t, domain.VarNDVI, steps, func(i int) float64 { return 0.9 - 0.001*float64(i%37) })

	datasets := map[domain.SourceKind]*domain.SourceDataset{
		domain.SourceClimate:    dataset(domain.SourceClimate, temp),
		domain.SourceVegetation: dataset(domain.SourceVegetation, ndvi),
	}

	report := New(discardLogger()).Assess(datasets, nil)

	require.Contains(t, report.Consistency, "climate_vegetation")
	assert.False(t, report.Consistency["climate_vegetation"])
	assert.False(t, report.ConsistencyPass)
	assert.InDelta(t, 0.8, report.Overall, 1e-9, "clean sources with one failed check score the bare penalty")
	assert.NotEmpty(t, report.Flags)
}

func TestAssessSkipsUnderpoweredChecks(t *testing.T) {
	// Two steps give 32 paired samples, far below the minimum.
	temp := seriesOf(t, domain.VarTemperature, 2, func(i int) float64 { return 20 + float64(i) })
	ndvi := seriesOf(t, domain.VarNDVI, 2, func(i int) float64 { return 0.3 + 0.001*float64(i) })

	datasets := map[domain.SourceKind]*domain.SourceDataset{
		domain.SourceClimate:    dataset(domain.SourceClimate, temp),
		domain.SourceVegetation: dataset(domain.SourceVegetation, ndvi),
	}

	report := New(discardLogger()).Assess(datasets, nil)

	assert.NotContains(t, report.Consistency, "climate_vegetation")
	assert.True(t, report.ConsistencyPass)
}

func TestAssessEmptySet(t *testing.T) {
	report := New(discardLogger()).Assess(nil, []string{"source climate unavailable"})

	assert.Equal(t, 0.0, report.Overall)
	assert.Equal(t, 0.0, report.Completeness)
	assert.Equal(t, "low", report.Category)
	assert.Equal(t, []string{"source climate unavailable"}, report.Flags)
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, "high", categorize(0.8))
	assert.Equal(t, "high", categorize(0.95))
	assert.Equal(t, "medium", categorize(0.79))
	assert.Equal(t, "medium", categorize(0.6))
	assert.Equal(t, "low", categorize(0.59))
}
