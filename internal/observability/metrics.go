package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// harmonization pipeline.
type Metrics struct {
	HarmonizeRequests *prometheus.CounterVec // labels: outcome={success,invalid_region,no_overlap,error}
	HarmonizeDuration prometheus.Histogram
	StageDuration     *prometheus.HistogramVec // labels: stage={download,temporal,spatial,feature,quality}

	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss,corrupt}
	SourceDownloads *prometheus.CounterVec // labels: source, outcome={success,error}
	ResampleDrops   *prometheus.CounterVec // labels: source
	GapFillFlags    prometheus.Counter

	RefreshRunning   prometheus.Gauge
	ResultsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		HarmonizeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envfuse",
			Name:      "harmonize_requests_total",
			Help:      "Harmonization requests by outcome.",
		}, []string{"outcome"}),
		HarmonizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "envfuse",
			Name:      "harmonize_duration_seconds",
			Help:      "End-to-end duration of a harmonization request.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "envfuse",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envfuse",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		SourceDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envfuse",
			Name:      "source_downloads_total",
			Help:      "Source downloads by source and outcome.",
		}, []string{"source", "outcome"}),
		ResampleDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envfuse",
			Name:      "resample_drops_total",
			Help:      "Sources dropped because reprojection failed.",
		}, []string{"source"}),
		GapFillFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "envfuse",
			Name:      "gap_fill_fallbacks_total",
			Help:      "Gap-fill operations that degraded to a fallback policy.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "envfuse",
			Name:      "refresh_running",
			Help:      "1 when the region refresh loop is active, 0 when shut down.",
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "envfuse",
			Name:      "results_published_total",
			Help:      "Harmonized result announcements published to Kafka.",
		}),
	}

	prometheus.MustRegister(
		m.HarmonizeRequests,
		m.HarmonizeDuration,
		m.StageDuration,
		m.CacheLookups,
		m.SourceDownloads,
		m.ResampleDrops,
		m.GapFillFlags,
		m.RefreshRunning,
		m.ResultsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		HarmonizeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "envfuse", Name: "harmonize_requests_total"}, []string{"outcome"}),
		HarmonizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "envfuse", Name: "harmonize_duration_seconds"}),
		StageDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "envfuse", Name: "stage_duration_seconds"}, []string{"stage"}),
		CacheLookups:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "envfuse", Name: "cache_lookups_total"}, []string{"result"}),
		SourceDownloads:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "envfuse", Name: "source_downloads_total"}, []string{"source", "outcome"}),
		ResampleDrops:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "envfuse", Name: "resample_drops_total"}, []string{"source"}),
		GapFillFlags:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "envfuse", Name: "gap_fill_fallbacks_total"}),
		RefreshRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "envfuse", Name: "refresh_running"}),
		ResultsPublished:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "envfuse", Name: "results_published_total"}),
	}
}
