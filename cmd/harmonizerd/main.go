package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/geohealth/envfuse/internal/adapter/http"
	kafkaadapter "github.com/geohealth/envfuse/internal/adapter/kafka"
	"github.com/geohealth/envfuse/internal/cache"
	"github.com/geohealth/envfuse/internal/config"
	"github.com/geohealth/envfuse/internal/domain"
	"github.com/geohealth/envfuse/internal/feature"
	"github.com/geohealth/envfuse/internal/observability"
	"github.com/geohealth/envfuse/internal/pipeline"
	"github.com/geohealth/envfuse/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	clients := buildClients(cfg, logger)

	fileStore, err := cache.NewFileStore(cfg.CacheDir, clock, logger)
	if err != nil {
		logger.Error("failed to open cache directory", "dir", cfg.CacheDir, "error", err)
		os.Exit(1)
	}
	store := cache.NewCached(fileStore, cfg.CacheMemoryEntries, clock)

	harmonizer := pipeline.New(clients, store, feature.DefaultParams(), clock, logger, metrics)

	// Kafka result announcements (feature-flagged via KAFKA_ENABLED).
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaResultTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	refresher := pipeline.NewRefresher(harmonizer, cfg.RefreshRegions, cfg.RefreshInterval, publisher, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, harmonizer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// buildClients assembles one client per source: synthetic generators by
// default, with the climate source optionally served from a local NetCDF
// archive (CLIMATE_NETCDF_PATH).
func buildClients(cfg *config.Config, logger *slog.Logger) []source.Client {
	clients := source.NewSyntheticSet(cfg.SourceSeed)
	if cfg.ClimateNetCDFPath == "" {
		logger.Info("all sources synthetic", "seed", cfg.SourceSeed)
		return clients
	}

	netcdfClimate := source.NewNetCDFClient(source.NetCDFConfig{
		Kind: domain.SourceClimate,
		Path: cfg.ClimateNetCDFPath,
		Vars: map[string]string{
			domain.VarTemperature: "t2m",
			domain.VarHumidity:    "rh",
		},
		Offset: map[string]float64{domain.VarTemperature: -273.15},
	})
	for i, c := range clients {
		if c.Kind() == domain.SourceClimate {
			clients[i] = netcdfClimate
		}
	}
	logger.Info("climate source from netcdf", "path", cfg.ClimateNetCDFPath)
	return clients
}
