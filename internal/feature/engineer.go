// Package feature derives the ML-ready feature set from temporally and
// spatially harmonized source arrays.
//
// Every feature is a 2-D array on the target grid. Features whose input
// source is missing are omitted from the output map entirely (absence is a
// typed state); callers check for key presence rather than assuming the
// full catalog.
package feature

import (
	"log/slog"
	"math"
	"time"

	"github.com/ctessum/sparse"

	"github.com/geohealth/envfuse/internal/domain"
)

// Engineer extracts basic, interaction, and meta features.
type Engineer struct {
	params Params
	logger *slog.Logger
}

// New creates a feature Engineer.
func New(params Params, logger *slog.Logger) *Engineer {
	return &Engineer{params: params, logger: logger}
}

// Set is an ordered named feature collection being assembled.
type Set struct {
	Features map[string]*sparse.DenseArray
	Names    []string
}

func newSet() *Set {
	return &Set{Features: make(map[string]*sparse.DenseArray)}
}

func (s *Set) add(name string, arr *sparse.DenseArray) {
	if arr == nil {
		return
	}
	s.Features[name] = arr
	s.Names = append(s.Names, name)
}

func (s *Set) get(name string) *sparse.DenseArray {
	return s.Features[name]
}

// Extract computes the full feature set from the harmonized datasets.
// Sources absent from the map simply contribute nothing: their basic
// features and any interaction feature depending on them are omitted.
func (e *Engineer) Extract(datasets map[domain.SourceKind]*domain.SourceDataset, times []time.Time, grid domain.GridSpec, targetDate time.Time) *Set {
	set := newSet()

	// Basic per-source extraction, in canonical source order so the name
	// list is deterministic.
	for _, kind := range domain.Kinds() {
		ds, ok := datasets[kind]
		if !ok {
			continue
		}
		switch kind {
		case domain.SourceClimate:
			e.extractStats(set, ds.Block(domain.VarTemperature))
			e.extractStats(set, ds.Block(domain.VarHumidity))
		case domain.SourcePrecipitation:
			e.extractPrecipitation(set, ds.Block(domain.VarPrecipitation), times)
		case domain.SourceVegetation:
			e.extractVegetation(set, ds.Block(domain.VarNDVI), times)
		case domain.SourceRisk:
			e.extractStats(set, ds.Block(domain.VarRisk))
		case domain.SourcePopulation:
			e.extractPopulation(set, ds.Block(domain.VarPopulation))
		}
	}

	e.deriveInteractions(set)
	e.appendMeta(set, grid, targetDate, len(datasets))

	e.logger.Debug("feature extraction complete", "features", len(set.Names))
	return set
}

// extractStats emits <name>_mean, _min, _max, and _range over the block's
// time axis.
func (e *Engineer) extractStats(set *Set, block *domain.RasterBlock) {
	if block == nil {
		return
	}
	mean, min, max := seriesStats(block)
	set.add(block.Name+"_mean", mean)
	set.add(block.Name+"_min", min)
	set.add(block.Name+"_max", max)
	set.add(block.Name+"_range", subtract(max, min))
}

// extractPrecipitation adds rolling accumulations and the longest
// consecutive-dry-day count on top of the basic statistics.
func (e *Engineer) extractPrecipitation(set *Set, block *domain.RasterBlock, times []time.Time) {
	if block == nil {
		return
	}
	e.extractStats(set, block)
	set.add("precipitation_7d", windowSum(block, times, 7))
	set.add("precipitation_30d", windowSum(block, times, 30))
	set.add("dry_spell_days", drySpell(block, e.params.DrySpellThresholdMM))
}

// extractVegetation adds the 30-day trend slope and the stress indicator
// on top of the basic statistics.
func (e *Engineer) extractVegetation(set *Set, block *domain.RasterBlock, times []time.Time) {
	if block == nil {
		return
	}
	e.extractStats(set, block)
	set.add("ndvi_trend_30d", trendSlope(block, times, e.params.TrendWindowDays))
	set.add("ndvi_stress", vegetationStress(block, e.params.VegetatedThreshold))
}

// extractPopulation emits the density surface. After temporal broadcast the
// series is constant, so the mean recovers the annual value.
func (e *Engineer) extractPopulation(set *Set, block *domain.RasterBlock) {
	if block == nil {
		return
	}
	mean, _, _ := seriesStats(block)
	set.add(domain.VarPopulation, mean)
}

// deriveInteractions computes the cross-source interaction features. Each
// feature is emitted only when all of its inputs are present.
func (e *Engineer) deriveInteractions(set *Set) {
	p := e.params

	tMean := set.get(domain.VarTemperature + "_mean")
	humMean := set.get(domain.VarHumidity + "_mean")
	p7 := set.get("precipitation_7d")
	p30 := set.get("precipitation_30d")
	ndviMean := set.get(domain.VarNDVI + "_mean")
	vegStress := set.get("ndvi_stress")
	riskMean := set.get(domain.VarRisk + "_mean")
	pop := set.get(domain.VarPopulation)

	if tMean != nil {
		set.add("temperature_suitability", apply1(tMean, e.temperatureSuitability))
	}
	if ts := set.get("temperature_suitability"); ts != nil && p7 != nil && ndviMean != nil {
		set.add("breeding_habitat_index", apply3(ts, p7, ndviMean, func(s, pr, n float64) float64 {
			habitat := 4 * n * (1 - n)
			return clamp01(p.BreedingTempWeight*s +
				p.BreedingPrecipWeight*math.Tanh(pr/p.BreedingPrecipScale) +
				p.BreedingNDVIWeight*clamp01(habitat))
		}))
	}
	if pop != nil && riskMean != nil {
		set.add("population_at_risk", apply2(pop, riskMean, func(d, r float64) float64 {
			return d * r / p.RiskPercentDivisor
		}))
	}
	if tMean != nil && p30 != nil && vegStress != nil {
		set.add("climate_stress_index", apply3(tMean, p30, vegStress, func(t, pr, vs float64) float64 {
			return clamp01(p.StressTempWeight*math.Abs(t-p.StressTempCenter)/p.StressTempScale +
				p.StressPrecipWeight*math.Exp(-pr/p.StressPrecipScale) +
				p.StressVegWeight*vs)
		}))
	}
	if tMean != nil && humMean != nil {
		set.add("vector_activity_potential", apply2(tMean, humMean, func(t, h float64) float64 {
			dt := t - p.VectorTempCenter
			return clamp01(math.Exp(-dt*dt/p.VectorTempScale) *
				sigmoid((h-p.VectorHumidityCenter)/p.VectorHumidityScale))
		}))
	}
}

// temperatureSuitability is the trapezoidal transmission-suitability ramp:
// zero outside [15, 40] °C, rising over [15, 25], flat at 1 over [25, 30],
// falling over [30, 40]. Always in [0, 1] for finite input.
func (e *Engineer) temperatureSuitability(t float64) float64 {
	p := e.params
	switch {
	case math.IsNaN(t):
		return math.NaN()
	case t <= p.TempSuitMin || t >= p.TempSuitMax:
		return 0
	case t < p.TempSuitPlateauLow:
		return (t - p.TempSuitMin) / (p.TempSuitPlateauLow - p.TempSuitMin)
	case t <= p.TempSuitPlateauHigh:
		return 1
	default:
		return (p.TempSuitMax - t) / (p.TempSuitMax - p.TempSuitPlateauHigh)
	}
}

// appendMeta adds the constant-valued meta features: the seasonal index for
// the target date, the surviving source count, and the placeholder quality
// score.
func (e *Engineer) appendMeta(set *Set, grid domain.GridSpec, targetDate time.Time, sourceCount int) {
	set.add("seasonal_index", constant(grid, domain.SeasonalFactor(targetDate)))
	set.add("data_source_count", constant(grid, float64(sourceCount)))
	set.add("data_quality_score", constant(grid, e.params.PlaceholderQuality))
}

func constant(grid domain.GridSpec, v float64) *sparse.DenseArray {
	arr := sparse.ZerosDense(grid.Height, grid.Width)
	for i := range arr.Elements {
		arr.Elements[i] = v
	}
	return arr
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
