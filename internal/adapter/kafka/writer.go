// Package kafka publishes harmonized-result summaries for downstream
// consumers (dashboards, alerting, model retraining triggers).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/geohealth/envfuse/internal/config"
	"github.com/geohealth/envfuse/internal/domain"
	"github.com/geohealth/envfuse/internal/observability"
)

// ResultSummary is the wire shape published per harmonization run. It
// carries metadata only; consumers fetch the full arrays from the cache
// or parquet exports.
type ResultSummary struct {
	Bounds         domain.Bounds        `json:"bounds"`
	TimeRange      domain.TimeRange     `json:"time_range"`
	Resolution     domain.Resolution    `json:"resolution"`
	FeatureNames   []string             `json:"feature_names"`
	Quality        domain.QualityReport `json:"quality"`
	MissingSources []domain.SourceKind  `json:"missing_sources,omitempty"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

// Publisher produces result summaries to a Kafka topic. It implements
// pipeline.Publisher.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured result topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// PublishResult serializes and publishes one result summary. The message key
// is the region string so per-region ordering is preserved across partitions.
func (p *Publisher) PublishResult(ctx context.Context, result *domain.HarmonizedResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	p.metrics.ResultsPublished.Inc()
	p.logger.Debug("result published", "key", string(msg.Key))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a result summary into a Kafka message.
func serializeToMessage(result *domain.HarmonizedResult) (kafkago.Message, error) {
	summary := ResultSummary{
		Bounds:         result.Bounds,
		TimeRange:      result.TimeRange,
		Resolution:     result.Resolution,
		FeatureNames:   result.FeatureNames,
		Quality:        result.Quality,
		MissingSources: result.MissingSources,
		GeneratedAt:    result.GeneratedAt,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Bounds.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "resolution", Value: []byte(result.Resolution)},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
