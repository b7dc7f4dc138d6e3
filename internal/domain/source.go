package domain

import (
	"fmt"
	"math"
)

// SourceKind identifies one of the five external data sources.
type SourceKind string

const (
	SourceClimate       SourceKind = "climate"
	SourcePrecipitation SourceKind = "precipitation"
	SourceVegetation    SourceKind = "vegetation"
	SourceRisk          SourceKind = "risk_surface"
	SourcePopulation    SourceKind = "population"
)

// Kinds returns all source kinds in canonical order. The order is stable so
// feature-name lists and log output are deterministic across runs.
func Kinds() []SourceKind {
	return []SourceKind{
		SourceClimate,
		SourcePrecipitation,
		SourceVegetation,
		SourceRisk,
		SourcePopulation,
	}
}

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	_, ok := strategies[k]
	return ok
}

// Canonical raster block (variable) names. Source clients label their
// blocks with these so downstream stages address variables uniformly.
const (
	VarTemperature   = "temperature"
	VarHumidity      = "relative_humidity"
	VarPrecipitation = "precipitation"
	VarNDVI          = "ndvi"
	VarRisk          = "risk_surface"
	VarPopulation    = "population_density"
)

// Cadence is a source's native sampling frequency.
type Cadence int

const (
	// CadenceDaily sources sample at the target frequency or finer.
	CadenceDaily Cadence = iota
	// CadenceComposite sources aggregate over fixed multi-day windows
	// (16-day NDVI composites).
	CadenceComposite
	// CadenceAnnual sources are effectively static over a request window
	// and are broadcast across the unified time index.
	CadenceAnnual
)

// GapFillMethod selects how missing values are filled after interpolation.
type GapFillMethod int

const (
	// GapFillLinear interpolates across interior gaps; edges take the
	// nearest valid value. Used for continuous climate variables.
	GapFillLinear GapFillMethod = iota
	// GapFillZero treats absence as zero. Used for precipitation, where
	// a missing day means no recorded rain rather than unknown rain.
	GapFillZero
	// GapFillClimatology fills from the mean of historical same
	// day-of-year values. Falls back to zero-fill (flagged) when too
	// little history exists.
	GapFillClimatology
	// GapFillForward carries the last valid value forward. Used for
	// annual/static sources.
	GapFillForward
)

// ResampleMethod selects the spatial regridding kernel.
type ResampleMethod int

const (
	// ResampleBilinear suits continuous surfaces.
	ResampleBilinear ResampleMethod = iota
	// ResampleNearest suits categorical and risk-classification surfaces,
	// where interpolation would invent intermediate categories.
	ResampleNearest
	// ResampleSum conserves mass: total population must not change when
	// a count raster is regridded.
	ResampleSum
)

// ValidRange is a physical plausibility interval for pixel values.
type ValidRange struct {
	Min float64
	Max float64
}

// Contains reports whether v is a physically plausible value.
func (r ValidRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Strategy bundles the per-kind harmonization policy. The table is resolved
// once at startup; no stage dispatches on source names per pixel batch.
type Strategy struct {
	Cadence  Cadence
	GapFill  GapFillMethod
	Resample ResampleMethod
	// Valid is the physical range of the kind's primary variable; pixels
	// outside it count against the source's quality score.
	Valid ValidRange
	// Seasonal marks transmission-risk surfaces that receive sinusoidal
	// seasonal modulation when broadcast across the time index.
	Seasonal bool
}

var strategies = map[SourceKind]Strategy{
	SourceClimate:       {Cadence: CadenceDaily, GapFill: GapFillLinear, Resample: ResampleBilinear, Valid: ValidRange{-50, 60}},
	SourcePrecipitation: {Cadence: CadenceDaily, GapFill: GapFillZero, Resample: ResampleBilinear, Valid: ValidRange{0, 500}},
	SourceVegetation:    {Cadence: CadenceComposite, GapFill: GapFillClimatology, Resample: ResampleBilinear, Valid: ValidRange{-0.2, 1.0}},
	SourceRisk:          {Cadence: CadenceAnnual, GapFill: GapFillForward, Resample: ResampleNearest, Valid: ValidRange{0, 100}, Seasonal: true},
	SourcePopulation:    {Cadence: CadenceAnnual, GapFill: GapFillForward, Resample: ResampleSum, Valid: ValidRange{0, math.Inf(1)}},
}

// StrategyFor returns the harmonization policy for a source kind.
func StrategyFor(kind SourceKind) (Strategy, error) {
	s, ok := strategies[kind]
	if !ok {
		return Strategy{}, fmt.Errorf("unknown source kind %q", kind)
	}
	return s, nil
}

// SourceMeta carries source-specific acquisition metadata.
type SourceMeta struct {
	// NativeResolutionKm is the source's native grid resolution.
	NativeResolutionKm float64
	// CompositeDays is the native aggregation window (0 for point-in-time
	// sampling, 16 for NDVI composites).
	CompositeDays int
}

// SourceDataset is one source's contribution to a harmonization request.
// It is created from a source client's download output and discarded once
// the feature engineer has consumed it; only the final result is cached.
type SourceDataset struct {
	Kind   SourceKind
	Blocks []*RasterBlock
	Meta   SourceMeta
}

// Block returns the named raster block, or nil if the source does not
// carry that variable.
func (d *SourceDataset) Block(name string) *RasterBlock {
	for _, b := range d.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}
