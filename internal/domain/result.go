package domain

import (
	"time"

	"github.com/ctessum/sparse"
)

// TimeRange is the temporal window actually covered by a result.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QualityReport summarizes range validity, missingness, and cross-source
// agreement for a harmonized result. Scores are in [0, 1].
type QualityReport struct {
	// Overall is the product of per-source scores, the consistency
	// penalty, and completeness.
	Overall float64 `json:"overall"`
	// Category is "high" (>=0.8), "medium" (>=0.6), or "low".
	Category string `json:"category"`
	// PerSource maps each surviving source to its individual score.
	PerSource map[SourceKind]float64 `json:"per_source"`
	// Consistency records each executed cross-source correlation check.
	Consistency map[string]bool `json:"consistency"`
	// ConsistencyPass is true when every executed check passed.
	ConsistencyPass bool `json:"consistency_pass"`
	// Completeness is the minimum per-source valid-pixel ratio.
	Completeness float64 `json:"completeness"`
	// Flags records degradations: gap-fill fallbacks, dropped sources,
	// failed downloads.
	Flags []string `json:"flags,omitempty"`
}

// HarmonizedResult is the pipeline's output: the named feature arrays, all
// sharing the target grid's shape, plus provenance metadata. Immutable after
// creation.
type HarmonizedResult struct {
	// Features maps feature name to a Height x Width array on the target
	// grid. A feature whose inputs were unavailable is absent, not
	// zero-filled.
	Features map[string]*sparse.DenseArray
	// FeatureNames lists the feature keys in canonical order.
	FeatureNames []string
	Quality      QualityReport
	Bounds       Bounds
	TimeRange    TimeRange
	Resolution   Resolution
	Grid         GridSpec
	// MissingSources lists sources that failed download or resampling.
	MissingSources []SourceKind
	GeneratedAt    time.Time
}

// ShapeConsistent reports whether every feature array matches the target
// grid's dimensions. Always true for results built by the pipeline; exposed
// for validation tooling.
func (r *HarmonizedResult) ShapeConsistent() bool {
	for _, arr := range r.Features {
		if len(arr.Shape) != 2 || arr.Shape[0] != r.Grid.Height || arr.Shape[1] != r.Grid.Width {
			return false
		}
	}
	return true
}
