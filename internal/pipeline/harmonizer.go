// Package pipeline orchestrates the harmonization stages. The Harmonizer is
// the sole entry point consumed by external callers; data flows strictly
// through cache check, download, temporal alignment, spatial regridding,
// feature extraction, and quality scoring, with no stage calling back
// upward.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/geohealth/envfuse/internal/cache"
	"github.com/geohealth/envfuse/internal/domain"
	"github.com/geohealth/envfuse/internal/feature"
	"github.com/geohealth/envfuse/internal/observability"
	"github.com/geohealth/envfuse/internal/quality"
	"github.com/geohealth/envfuse/internal/source"
	"github.com/geohealth/envfuse/internal/spatial"
	"github.com/geohealth/envfuse/internal/temporal"
)

// Request describes one harmonization call.
type Request struct {
	Bounds domain.Bounds
	// TargetDate is the end of the covered window.
	TargetDate time.Time
	// LookbackDays is the window length; 0 means the 90-day default.
	LookbackDays int
	// Resolution is the target grid resolution; empty means 1km.
	Resolution domain.Resolution
	// Frequency of the unified time index; empty means daily.
	Frequency temporal.Frequency
}

const defaultLookbackDays = 90

// withDefaults fills unset request fields.
func (r Request) withDefaults() Request {
	if r.LookbackDays <= 0 {
		r.LookbackDays = defaultLookbackDays
	}
	if r.Resolution == "" {
		r.Resolution = domain.Resolution1km
	}
	if r.Frequency == "" {
		r.Frequency = temporal.Daily
	}
	return r
}

// Harmonizer drives the pipeline stages in sequence.
type Harmonizer struct {
	clients  []source.Client
	temporal *temporal.Harmonizer
	spatial  *spatial.Harmonizer
	features *feature.Engineer
	quality  *quality.Manager
	store    cache.Store
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New wires the pipeline stages together.
func New(clients []source.Client, store cache.Store, params feature.Params, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Harmonizer {
	return &Harmonizer{
		clients:  clients,
		temporal: temporal.New(logger),
		spatial:  spatial.New(logger),
		features: feature.New(params, logger),
		quality:  quality.New(logger),
		store:    store,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the harmonizer has produced at least one
// result, or an error describing why the service is not yet ready.
func (h *Harmonizer) CheckReadiness(_ context.Context) error {
	if !h.ready.Load() {
		return errors.New("harmonizer has not produced any results yet")
	}
	return nil
}

// HarmonizedFeatures runs a full request: cache check, then on a miss the
// download, temporal, spatial, feature, and quality stages, finishing with
// an all-or-nothing cache write. Individual source failures degrade the
// result; only invalid bounds and missing temporal overlap are fatal.
func (h *Harmonizer) HarmonizedFeatures(ctx context.Context, req Request) (*domain.HarmonizedResult, error) {
	req = req.withDefaults()
	if err := req.Bounds.Validate(); err != nil {
		h.metrics.HarmonizeRequests.WithLabelValues("invalid_region").Inc()
		return nil, err
	}
	if _, err := req.Resolution.CellDegrees(); err != nil {
		h.metrics.HarmonizeRequests.WithLabelValues("invalid_region").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRegion, err)
	}

	start := time.Now()
	reqID := uuid.NewString()
	logger := h.logger.With("request_id", reqID)

	windowEnd := req.TargetDate.UTC().Truncate(24 * time.Hour)
	windowStart := windowEnd.AddDate(0, 0, -req.LookbackDays)
	key := cache.NewKey(req.Bounds, windowStart, windowEnd, req.Resolution)

	if result := h.checkCache(logger, key); result != nil {
		h.metrics.HarmonizeRequests.WithLabelValues("success").Inc()
		h.ready.Store(true)
		return result, nil
	}

	result, err := h.compute(ctx, logger, req, windowStart, windowEnd)
	if err != nil {
		h.metrics.HarmonizeRequests.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	// All-or-nothing: the entry is only written once the full result
	// exists. A failed write degrades to uncached operation.
	if err := h.store.Put(key, result); err != nil {
		logger.Warn("cache write failed", "key", key.String(), "error", err)
	}

	h.metrics.HarmonizeRequests.WithLabelValues("success").Inc()
	h.metrics.HarmonizeDuration.Observe(time.Since(start).Seconds())
	h.ready.Store(true)

	logger.Info("harmonization complete",
		"bounds", req.Bounds.String(),
		"resolution", req.Resolution,
		"features", len(result.FeatureNames),
		"quality", result.Quality.Category,
		"missing_sources", len(result.MissingSources),
		"duration", time.Since(start),
	)
	return result, nil
}

func (h *Harmonizer) checkCache(logger *slog.Logger, key cache.Key) *domain.HarmonizedResult {
	result, err := h.store.Get(key)
	switch {
	case err != nil && errors.Is(err, domain.ErrCacheCorrupt):
		logger.Warn("corrupt cache entry, recomputing", "key", key.String(), "error", err)
		h.metrics.CacheLookups.WithLabelValues("corrupt").Inc()
		return nil
	case err != nil:
		logger.Warn("cache read failed, recomputing", "key", key.String(), "error", err)
		h.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	case result == nil:
		h.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	logger.Debug("cache hit", "key", key.String())
	h.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return result
}

func (h *Harmonizer) compute(ctx context.Context, logger *slog.Logger, req Request, windowStart, windowEnd time.Time) (*domain.HarmonizedResult, error) {
	downloads, missing := h.download(ctx, logger, windowStart, windowEnd, req.Bounds)
	if len(downloads) == 0 {
		return nil, fmt.Errorf("%w: every source download failed", domain.ErrSourceUnavailable)
	}

	var flags []string
	for _, kind := range missing {
		flags = append(flags, fmt.Sprintf("source %s unavailable", kind))
	}

	window := domain.TimeRange{Start: windowStart, End: windowEnd}
	aligned, err := h.timeStage(downloads, req.Frequency, window)
	if err != nil {
		return nil, err
	}
	flags = append(flags, aligned.Flags...)
	for range aligned.Flags {
		h.metrics.GapFillFlags.Inc()
	}

	grid, err := domain.NewTargetGrid(req.Bounds, req.Resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRegion, err)
	}

	regridded := h.spaceStage(aligned.Datasets, grid)
	for kind, regridErr := range regridded.Failed {
		missing = append(missing, kind)
		flags = append(flags, fmt.Sprintf("source %s dropped: %v", kind, regridErr))
		h.metrics.ResampleDrops.WithLabelValues(string(kind)).Inc()
	}
	if len(regridded.Datasets) == 0 {
		return nil, fmt.Errorf("%w: no source survived reprojection", domain.ErrResample)
	}

	set := h.featureStage(regridded.Datasets, aligned.Times, grid, windowEnd)
	report := h.qualityStage(regridded.Datasets, flags)

	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return &domain.HarmonizedResult{
		Features:       set.Features,
		FeatureNames:   set.Names,
		Quality:        report,
		Bounds:         req.Bounds,
		TimeRange:      domain.TimeRange{Start: aligned.Times[0], End: aligned.Times[len(aligned.Times)-1]},
		Resolution:     req.Resolution,
		Grid:           grid,
		MissingSources: missing,
		GeneratedAt:    h.clock.Now().UTC(),
	}, nil
}

// download fetches all sources concurrently. Each download's failure is
// isolated: it is logged, counted, and reported as a missing source without
// affecting the others.
func (h *Harmonizer) download(ctx context.Context, logger *slog.Logger, start, end time.Time, bounds domain.Bounds) (map[domain.SourceKind]*domain.SourceDataset, []domain.SourceKind) {
	stageStart := time.Now()
	defer func() {
		h.metrics.StageDuration.WithLabelValues("download").Observe(time.Since(stageStart).Seconds())
	}()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		downloads = make(map[domain.SourceKind]*domain.SourceDataset, len(h.clients))
		missing   []domain.SourceKind
	)
	for _, client := range h.clients {
		wg.Add(1)
		go func(c source.Client) {
			defer wg.Done()
			ds, err := c.Download(ctx, start, end, bounds)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("source download failed", "source", c.Kind(), "error", err)
				h.metrics.SourceDownloads.WithLabelValues(string(c.Kind()), "error").Inc()
				missing = append(missing, c.Kind())
				return
			}
			h.metrics.SourceDownloads.WithLabelValues(string(c.Kind()), "success").Inc()
			downloads[c.Kind()] = ds
		}(client)
	}
	wg.Wait()
	return downloads, missing
}

func (h *Harmonizer) timeStage(datasets map[domain.SourceKind]*domain.SourceDataset, freq temporal.Frequency, window domain.TimeRange) (*temporal.Result, error) {
	stageStart := time.Now()
	defer func() {
		h.metrics.StageDuration.WithLabelValues("temporal").Observe(time.Since(stageStart).Seconds())
	}()
	return h.temporal.Align(datasets, freq, window)
}

func (h *Harmonizer) spaceStage(datasets map[domain.SourceKind]*domain.SourceDataset, grid domain.GridSpec) *spatial.Result {
	stageStart := time.Now()
	defer func() {
		h.metrics.StageDuration.WithLabelValues("spatial").Observe(time.Since(stageStart).Seconds())
	}()
	return h.spatial.Regrid(datasets, grid)
}

func (h *Harmonizer) featureStage(datasets map[domain.SourceKind]*domain.SourceDataset, times []time.Time, grid domain.GridSpec, targetDate time.Time) *feature.Set {
	stageStart := time.Now()
	defer func() {
		h.metrics.StageDuration.WithLabelValues("feature").Observe(time.Since(stageStart).Seconds())
	}()
	return h.features.Extract(datasets, times, grid, targetDate)
}

func (h *Harmonizer) qualityStage(datasets map[domain.SourceKind]*domain.SourceDataset, flags []string) domain.QualityReport {
	stageStart := time.Now()
	defer func() {
		h.metrics.StageDuration.WithLabelValues("quality").Observe(time.Since(stageStart).Seconds())
	}()
	return h.quality.Assess(datasets, flags)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRegion):
		return "invalid_region"
	case errors.Is(err, domain.ErrNoTemporalOverlap):
		return "no_overlap"
	default:
		return "error"
	}
}
