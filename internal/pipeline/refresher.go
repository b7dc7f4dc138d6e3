package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geohealth/envfuse/internal/domain"
	"github.com/geohealth/envfuse/internal/observability"
)

// Publisher receives completed results from the refresh loop. Implemented by
// the kafka adapter; nil publishers are skipped.
type Publisher interface {
	PublishResult(ctx context.Context, result *domain.HarmonizedResult) error
}

// Refresher periodically re-runs harmonization for a fixed set of regions so
// the cache stays warm and downstream consumers get fresh results without
// waiting on an interactive request.
type Refresher struct {
	harmonizer *Harmonizer
	regions    []domain.Bounds
	interval   time.Duration
	publisher  Publisher
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRefresher builds a refresh loop over the configured regions.
func NewRefresher(h *Harmonizer, regions []domain.Bounds, interval time.Duration, publisher Publisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{
		harmonizer: h,
		regions:    regions,
		interval:   interval,
		publisher:  publisher,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run refreshes every region immediately, then again each interval, until
// the context is cancelled. Per-region failures are logged and skipped so
// one bad region never blocks the others.
func (r *Refresher) Run(ctx context.Context) error {
	if len(r.regions) == 0 {
		r.logger.Info("refresher disabled, no regions configured")
		return nil
	}

	r.logger.Info("refresher started", "regions", len(r.regions), "interval", r.interval)
	r.metrics.RefreshRunning.Set(1)
	defer r.metrics.RefreshRunning.Set(0)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.refreshAll(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	target := r.clock.Now().UTC()
	for _, bounds := range r.regions {
		if ctx.Err() != nil {
			return
		}
		result, err := r.harmonizer.HarmonizedFeatures(ctx, Request{
			Bounds:     bounds,
			TargetDate: target,
		})
		if err != nil {
			r.logger.Error("region refresh failed", "bounds", bounds.String(), "error", err)
			continue
		}
		if r.publisher == nil {
			continue
		}
		if err := r.publisher.PublishResult(ctx, result); err != nil {
			r.logger.Error("result publish failed", "bounds", bounds.String(), "error", err)
		}
	}
}
