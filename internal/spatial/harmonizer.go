// Package spatial reprojects all sources onto the shared target grid.
//
// The target grid is computed once per request from the region bounds and
// resolution label; each source is then regridded independently using the
// kernel named by its strategy (bilinear for continuous surfaces, nearest
// for risk classifications, sum aggregation for population counts). One
// source's failure never aborts the request: the source is dropped and the
// failure recorded.
package spatial

import (
	"fmt"
	"log/slog"

	"github.com/geohealth/envfuse/internal/domain"
	"github.com/geohealth/envfuse/internal/raster"
)

// Result is the spatially harmonized source set.
type Result struct {
	// Datasets holds every source that regridded successfully.
	Datasets map[domain.SourceKind]*domain.SourceDataset
	// Failed records sources dropped because reprojection failed.
	Failed map[domain.SourceKind]error
}

// Harmonizer regrids source datasets onto one shared grid.
type Harmonizer struct {
	logger *slog.Logger
}

// New creates a spatial Harmonizer.
func New(logger *slog.Logger) *Harmonizer {
	return &Harmonizer{logger: logger}
}

// Regrid resamples every dataset onto the target grid. Sources whose
// reprojection fails are recorded in Result.Failed and absent from
// Result.Datasets (graceful degradation, never fatal).
func (h *Harmonizer) Regrid(datasets map[domain.SourceKind]*domain.SourceDataset, grid domain.GridSpec) *Result {
	res := &Result{
		Datasets: make(map[domain.SourceKind]*domain.SourceDataset, len(datasets)),
		Failed:   make(map[domain.SourceKind]error),
	}

	for kind, ds := range datasets {
		out, err := h.regridDataset(ds, grid)
		if err != nil {
			h.logger.Warn("dropping source: reprojection failed", "source", kind, "error", err)
			res.Failed[kind] = err
			continue
		}
		res.Datasets[kind] = out
	}
	return res
}

func (h *Harmonizer) regridDataset(ds *domain.SourceDataset, grid domain.GridSpec) (*domain.SourceDataset, error) {
	strat, err := domain.StrategyFor(ds.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResample, err)
	}

	out := &domain.SourceDataset{Kind: ds.Kind, Meta: ds.Meta}
	for _, block := range ds.Blocks {
		regridded, err := raster.ResampleBlock(block, grid, strat.Resample)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", block.Name, err)
		}
		out.Blocks = append(out.Blocks, regridded)
	}
	if len(out.Blocks) == 0 {
		return nil, fmt.Errorf("%w: dataset has no blocks", domain.ErrResample)
	}
	return out, nil
}
