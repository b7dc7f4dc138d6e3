package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ctessum/sparse"

	"github.com/geohealth/envfuse/internal/domain"
)

// maxSyntheticDim caps the synthetic native grid so demo runs over large
// regions stay cheap.
const maxSyntheticDim = 200

// syntheticSpec fixes each kind's pretend native characteristics.
type syntheticSpec struct {
	cellDeg  float64
	stepDays int // 0 = static
}

var syntheticSpecs = map[domain.SourceKind]syntheticSpec{
	domain.SourceClimate:       {cellDeg: 0.25, stepDays: 1},
	domain.SourcePrecipitation: {cellDeg: 0.10, stepDays: 1},
	domain.SourceVegetation:    {cellDeg: 0.05, stepDays: 16},
	domain.SourceRisk:          {cellDeg: 0.05, stepDays: 0},
	domain.SourcePopulation:    {cellDeg: 0.02, stepDays: 0},
}

// Synthetic is a deterministic source client used by the demo commands and
// tests. A fixed seed reproduces the exact same rasters, which makes cached
// and recomputed results bit-comparable.
type Synthetic struct {
	kind domain.SourceKind
	seed int64
}

// NewSynthetic creates a synthetic client for one source kind.
func NewSynthetic(kind domain.SourceKind, seed int64) *Synthetic {
	return &Synthetic{kind: kind, seed: seed}
}

// NewSyntheticSet creates one synthetic client per source kind.
func NewSyntheticSet(seed int64) []Client {
	kinds := domain.Kinds()
	clients := make([]Client, len(kinds))
	for i, k := range kinds {
		clients[i] = NewSynthetic(k, seed)
	}
	return clients
}

func (s *Synthetic) Kind() domain.SourceKind { return s.kind }

func (s *Synthetic) Download(ctx context.Context, start, end time.Time, bounds domain.Bounds) (*domain.SourceDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := syntheticSpecs[s.kind]
	grid := nativeGrid(bounds, spec.cellDeg)
	rng := rand.New(rand.NewSource(s.seed + int64(len(s.kind))*7919))

	ds := &domain.SourceDataset{
		Kind: s.kind,
		Meta: domain.SourceMeta{
			NativeResolutionKm: spec.cellDeg * 111.0,
			CompositeDays:      compositeDaysFor(s.kind),
		},
	}

	var times []time.Time
	if spec.stepDays > 0 {
		for t := start.UTC().Truncate(24 * time.Hour); !t.After(end); t = t.AddDate(0, 0, spec.stepDays) {
			times = append(times, t)
		}
	}

	switch s.kind {
	case domain.SourceClimate:
		ds.Blocks = append(ds.Blocks,
			seriesBlock(domain.VarTemperature, grid, times, rng, temperatureAt),
			seriesBlock(domain.VarHumidity, grid, times, rng, humidityAt),
		)
	case domain.SourcePrecipitation:
		ds.Blocks = append(ds.Blocks,
			seriesBlock(domain.VarPrecipitation, grid, times, rng, precipitationAt))
	case domain.SourceVegetation:
		ds.Blocks = append(ds.Blocks,
			seriesBlock(domain.VarNDVI, grid, times, rng, ndviAt))
	case domain.SourceRisk:
		ds.Blocks = append(ds.Blocks, staticBlock(domain.VarRisk, grid, rng, riskAt))
	case domain.SourcePopulation:
		ds.Blocks = append(ds.Blocks, staticBlock(domain.VarPopulation, grid, rng, populationAt))
	}
	return ds, nil
}

func compositeDaysFor(kind domain.SourceKind) int {
	if kind == domain.SourceVegetation {
		return 16
	}
	return 0
}

// nativeGrid builds the pretend native grid: the request bounds padded by
// one native cell so bilinear sampling has support at the edges.
func nativeGrid(bounds domain.Bounds, cellDeg float64) domain.GridSpec {
	padded := domain.Bounds{
		West:  bounds.West - cellDeg,
		South: bounds.South - cellDeg,
		East:  bounds.East + cellDeg,
		North: bounds.North + cellDeg,
	}
	w := int(math.Ceil(padded.Width() / cellDeg))
	h := int(math.Ceil(padded.Height() / cellDeg))
	if w > maxSyntheticDim {
		w = maxSyntheticDim
	}
	if h > maxSyntheticDim {
		h = maxSyntheticDim
	}
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return domain.GridSpec{
		Bounds:  padded,
		Width:   w,
		Height:  h,
		CellDeg: math.Max(padded.Width()/float64(w), padded.Height()/float64(h)),
	}
}

// terrain is the shared spatial pattern that gives the synthetic sources
// physically plausible cross-correlations (warmer lowlands carry more
// vegetation and rain). Output roughly in [-1, 1].
func terrain(x, y float64) float64 {
	return 0.6*math.Sin(x*1.3+0.7) + 0.4*math.Cos(y*2.1-0.3)
}

type fieldFn func(x, y float64, dayOfYear int, rng *rand.Rand) float64

func temperatureAt(x, y float64, doy int, rng *rand.Rand) float64 {
	seasonal := 3 * math.Sin(2*math.Pi*float64(doy)/365)
	return 24 + 6*terrain(x, y) + seasonal + rng.NormFloat64()*0.8
}

func humidityAt(x, y float64, doy int, rng *rand.Rand) float64 {
	v := 62 + 15*terrain(x, y) + 5*math.Sin(2*math.Pi*float64(doy-60)/365) + rng.NormFloat64()*3
	return math.Max(5, math.Min(100, v))
}

func precipitationAt(x, y float64, doy int, rng *rand.Rand) float64 {
	wet := terrain(x, y)*0.5 + 0.4 + 0.3*math.Sin(2*math.Pi*float64(doy-100)/365)
	if rng.Float64() > wet {
		return 0 // dry day
	}
	return rng.ExpFloat64() * 12 * math.Max(wet, 0.1)
}

func ndviAt(x, y float64, doy int, rng *rand.Rand) float64 {
	v := 0.35 + 0.22*terrain(x, y) + 0.08*math.Sin(2*math.Pi*float64(doy-130)/365) + rng.NormFloat64()*0.02
	return math.Max(-0.1, math.Min(0.95, v))
}

func riskAt(x, y float64, _ int, rng *rand.Rand) float64 {
	v := 35 + 25*terrain(x, y) + rng.NormFloat64()*4
	return math.Max(0, math.Min(100, v))
}

func populationAt(x, y float64, _ int, rng *rand.Rand) float64 {
	// Log-normal-ish clustering loosely following habitable terrain.
	v := math.Exp(3.5+1.5*terrain(x, y)) * (0.5 + rng.Float64())
	return math.Max(0, v)
}

func seriesBlock(name string, grid domain.GridSpec, times []time.Time, rng *rand.Rand, fn fieldFn) *domain.RasterBlock {
	data := sparse.ZerosDense(len(times), grid.Height, grid.Width)
	for i, t := range times {
		doy := t.YearDay()
		for row := 0; row < grid.Height; row++ {
			for col := 0; col < grid.Width; col++ {
				data.Set(fn(grid.X(col), grid.Y(row), doy, rng), i, row, col)
			}
		}
	}
	block, _ := domain.NewSeriesBlock(name, grid, times, data)
	return block
}

func staticBlock(name string, grid domain.GridSpec, rng *rand.Rand, fn fieldFn) *domain.RasterBlock {
	data := sparse.ZerosDense(grid.Height, grid.Width)
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			data.Set(fn(grid.X(col), grid.Y(row), 0, rng), row, col)
		}
	}
	block, _ := domain.NewStaticBlock(name, grid, data)
	return block
}
