// Package quality scores harmonized source data for physical-range
// violations, missingness, and cross-source agreement.
package quality

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/geohealth/envfuse/internal/domain"
)

// minPairedSamples is the smallest NaN-stripped paired sample count for
// which a correlation check is meaningful; below it the check is skipped
// rather than failed.
const minPairedSamples = 100

// consistencyPenalty scales the overall score when any executed
// cross-source check fails.
const consistencyPenalty = 0.8

// Quality category thresholds.
const (
	highThreshold   = 0.8
	mediumThreshold = 0.6
)

// humidityRange overrides the climate strategy range for the relative
// humidity block; the strategy table carries the temperature range.
var humidityRange = domain.ValidRange{Min: 0, Max: 100}

// consistencyCheck is one expected cross-source correlation. Correlations
// far outside the expected interval indicate a harmonization defect (grid
// misalignment, unit confusion) rather than natural variability.
type consistencyCheck struct {
	name   string
	a, b   domain.SourceKind
	aVar   string
	bVar   string
	lo, hi float64
}

var consistencyChecks = []consistencyCheck{
	{name: "climate_vegetation", a: domain.SourceClimate, b: domain.SourceVegetation,
		aVar: domain.VarTemperature, bVar: domain.VarNDVI, lo: 0.2, hi: 0.8},
	{name: "precipitation_vegetation", a: domain.SourcePrecipitation, b: domain.SourceVegetation,
		aVar: domain.VarPrecipitation, bVar: domain.VarNDVI, lo: 0.1, hi: 0.7},
	{name: "population_risk", a: domain.SourcePopulation, b: domain.SourceRisk,
		aVar: domain.VarPopulation, bVar: domain.VarRisk, lo: -0.3, hi: 0.5},
}

// Manager assesses harmonized data quality.
type Manager struct {
	logger *slog.Logger
}

// New creates a quality Manager.
func New(logger *slog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Assess produces the quality report for the harmonized source set. Flags
// accumulated by earlier stages (gap-fill fallbacks, dropped sources) are
// folded into the report unchanged.
func (m *Manager) Assess(datasets map[domain.SourceKind]*domain.SourceDataset, flags []string) domain.QualityReport {
	report := domain.QualityReport{
		PerSource:       make(map[domain.SourceKind]float64, len(datasets)),
		Consistency:     make(map[string]bool),
		ConsistencyPass: true,
		Flags:           flags,
	}

	overall := 1.0
	completeness := 1.0
	for kind, ds := range datasets {
		score, validRatio := m.scoreSource(ds)
		report.PerSource[kind] = score
		overall *= score
		completeness = math.Min(completeness, validRatio)
	}
	if len(datasets) == 0 {
		completeness = 0
		overall = 0
	}

	for _, check := range consistencyChecks {
		passed, executed := m.runCheck(datasets, check)
		if !executed {
			continue
		}
		report.Consistency[check.name] = passed
		if !passed {
			report.ConsistencyPass = false
			report.Flags = append(report.Flags,
				fmt.Sprintf("consistency check %s failed", check.name))
		}
	}
	if !report.ConsistencyPass {
		overall *= consistencyPenalty
	}

	report.Completeness = completeness
	report.Overall = overall * completeness
	report.Category = categorize(report.Overall)

	if report.Category == "low" {
		m.logger.Warn("low quality harmonization",
			"overall", report.Overall,
			"completeness", report.Completeness,
			"consistency_pass", report.ConsistencyPass,
		)
	}
	return report
}

// scoreSource starts at 1.0 and multiplies down by the fraction of pixels
// violating the source's physical range and by the fraction of missing
// pixels, across all of the source's blocks. Also returns the valid-pixel
// ratio for the completeness metric.
func (m *Manager) scoreSource(ds *domain.SourceDataset) (score, validRatio float64) {
	var total, missing, violating int
	for _, block := range ds.Blocks {
		r := rangeFor(ds.Kind, block.Name)
		for _, v := range block.Data.Elements {
			total++
			if math.IsNaN(v) {
				missing++
				continue
			}
			if !r.Contains(v) {
				violating++
			}
		}
	}
	if total == 0 {
		return 0, 0
	}

	score = 1.0
	score *= 1 - float64(violating)/float64(total)
	score *= 1 - float64(missing)/float64(total)
	return score, float64(total-missing) / float64(total)
}

func rangeFor(kind domain.SourceKind, blockName string) domain.ValidRange {
	if blockName == domain.VarHumidity {
		return humidityRange
	}
	strat, err := domain.StrategyFor(kind)
	if err != nil {
		return domain.ValidRange{Min: math.Inf(-1), Max: math.Inf(1)}
	}
	return strat.Valid
}

// runCheck computes the Pearson correlation between the NaN-stripped paired
// samples of two source variables. Checks with fewer than minPairedSamples
// valid pairs are not executed.
func (m *Manager) runCheck(datasets map[domain.SourceKind]*domain.SourceDataset, check consistencyCheck) (passed, executed bool) {
	da, ok := datasets[check.a]
	if !ok {
		return false, false
	}
	db, ok := datasets[check.b]
	if !ok {
		return false, false
	}
	ba, bb := da.Block(check.aVar), db.Block(check.bVar)
	if ba == nil || bb == nil || len(ba.Data.Elements) != len(bb.Data.Elements) {
		return false, false
	}

	xs := make([]float64, 0, len(ba.Data.Elements))
	ys := make([]float64, 0, len(ba.Data.Elements))
	for i := range ba.Data.Elements {
		x, y := ba.Data.Elements[i], bb.Data.Elements[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < minPairedSamples {
		return false, false
	}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		// Constant series have no defined correlation; skip rather
		// than fail.
		return false, false
	}
	m.logger.Debug("consistency check", "check", check.name, "correlation", r, "samples", len(xs))
	return r >= check.lo && r <= check.hi, true
}

func categorize(overall float64) string {
	switch {
	case overall >= highThreshold:
		return "high"
	case overall >= mediumThreshold:
		return "medium"
	default:
		return "low"
	}
}
