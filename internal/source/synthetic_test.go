package source

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohealth/envfuse/internal/domain"
)

var testBounds = domain.Bounds{West: -4.9, South: 33.5, East: 5.9, North: 42.0}

func download(t *testing.T, client Client, days int) *domain.SourceDataset {
	t.Helper()
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	ds, err := client.Download(context.Background(), end.AddDate(0, 0, -days), end, testBounds)
	require.NoError(t, err)
	require.NotNil(t, ds)
	return ds
}

func TestSyntheticSetCoversEveryKind(t *testing.T) {
	clients := NewSyntheticSet(42)
	require.Len(t, clients, len(domain.Kinds()))

	seen := map[domain.SourceKind]bool{}
	for _, c := range clients {
		seen[c.Kind()] = true
	}
	for _, k := range domain.Kinds() {
		assert.True(t, seen[k], "missing client for %s", k)
	}
}

func TestSyntheticIsDeterministicPerSeed(t *testing.T) {
	for _, kind := range domain.Kinds() {
		a := download(t, NewSynthetic(kind, 42), 30)
		b := download(t, NewSynthetic(kind, 42), 30)
		require.Len(t, b.Blocks, len(a.Blocks), "kind %s", kind)
		for i, block := range a.Blocks {
			assert.Equal(t, block.Data.Elements, b.Blocks[i].Data.Elements,
				"kind %s block %s must reproduce exactly", kind, block.Name)
		}

		c := download(t, NewSynthetic(kind, 43), 30)
		assert.NotEqual(t, a.Blocks[0].Data.Elements, c.Blocks[0].Data.Elements,
			"kind %s: a different seed should change the field", kind)
	}
}

func TestSyntheticClimateCarriesBothVariables(t *testing.T) {
	ds := download(t, NewSynthetic(domain.SourceClimate, 42), 10)
	require.NotNil(t, ds.Block(domain.VarTemperature))
	require.NotNil(t, ds.Block(domain.VarHumidity))

	// Daily cadence: lookback days plus the end date itself.
	temp := ds.Block(domain.VarTemperature)
	assert.Len(t, temp.Times, 11)
	assert.Equal(t, 11, temp.Data.Shape[0])
}

func TestSyntheticVegetationIsSixteenDayComposite(t *testing.T) {
	ds := download(t, NewSynthetic(domain.SourceVegetation, 42), 90)
	assert.Equal(t, 16, ds.Meta.CompositeDays)

	ndvi := ds.Block(domain.VarNDVI)
	require.NotNil(t, ndvi)
	require.GreaterOrEqual(t, len(ndvi.Times), 2)
	for i := 1; i < len(ndvi.Times); i++ {
		assert.Equal(t, 16*24*time.Hour, ndvi.Times[i].Sub(ndvi.Times[i-1]))
	}
}

func TestSyntheticStaticSourcesHaveNoTimeAxis(t *testing.T) {
	for _, kind := range []domain.SourceKind{domain.SourceRisk, domain.SourcePopulation} {
		ds := download(t, NewSynthetic(kind, 42), 30)
		require.Len(t, ds.Blocks, 1, "kind %s", kind)
		assert.Nil(t, ds.Blocks[0].Times)
		assert.Len(t, ds.Blocks[0].Data.Shape, 2)
	}
}

func TestSyntheticValuesArePhysicallyPlausible(t *testing.T) {
	within := func(t *testing.T, block *domain.RasterBlock, lo, hi float64) {
		t.Helper()
		for _, v := range block.Data.Elements {
			require.False(t, math.IsNaN(v), "block %s produced NaN", block.Name)
			require.GreaterOrEqual(t, v, lo, "block %s", block.Name)
			require.LessOrEqual(t, v, hi, "block %s", block.Name)
		}
	}

	climate := download(t, NewSynthetic(domain.SourceClimate, 42), 30)
	within(t, climate.Block(domain.VarTemperature), -60, 60)
	within(t, climate.Block(domain.VarHumidity), 0, 100)

	precip := download(t, NewSynthetic(domain.SourcePrecipitation, 42), 30)
	within(t, precip.Block(domain.VarPrecipitation), 0, math.Inf(1))

	veg := download(t, NewSynthetic(domain.SourceVegetation, 42), 30)
	within(t, veg.Block(domain.VarNDVI), -0.2, 1)

	risk := download(t, NewSynthetic(domain.SourceRisk, 42), 30)
	within(t, risk.Block(domain.VarRisk), 0, 100)

	pop := download(t, NewSynthetic(domain.SourcePopulation, 42), 30)
	within(t, pop.Block(domain.VarPopulation), 0, math.Inf(1))
}

func TestSyntheticHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	_, err := NewSynthetic(domain.SourceClimate, 42).Download(ctx, end.AddDate(0, 0, -30), end, testBounds)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeGridPadsAndClampsDimensions(t *testing.T) {
	grid := nativeGrid(testBounds, 0.25)
	assert.InDelta(t, testBounds.West-0.25, grid.Bounds.West, 1e-9)
	assert.InDelta(t, testBounds.North+0.25, grid.Bounds.North, 1e-9)
	assert.GreaterOrEqual(t, grid.Width, 2)
	assert.LessOrEqual(t, grid.Width, maxSyntheticDim)

	tiny := nativeGrid(domain.Bounds{West: 0, South: 0, East: 0.001, North: 0.001}, 0.25)
	assert.Equal(t, 2, tiny.Width)
	assert.Equal(t, 2, tiny.Height)

	huge := nativeGrid(domain.Bounds{West: -10, South: 30, East: 10, North: 50}, 0.02)
	assert.Equal(t, maxSyntheticDim, huge.Width)
	assert.Equal(t, maxSyntheticDim, huge.Height)
}
