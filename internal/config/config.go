package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geohealth/envfuse/internal/domain"
)

// Config holds all service settings, populated from environment variables.
// It is passed explicitly into constructors; nothing reads the environment
// after Load returns.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	CacheDir           string
	CacheMemoryEntries int

	DefaultResolution domain.Resolution
	LookbackDays      int

	// SourceSeed seeds the synthetic source clients used when no file
	// sources are configured.
	SourceSeed int64
	// ClimateNetCDFPath, when set, serves climate from a local NetCDF
	// file instead of the synthetic generator.
	ClimateNetCDFPath string

	// Kafka result announcements (feature-flagged; off by default).
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaResultTopic string

	// Region refresh loop.
	RefreshInterval time.Duration
	RefreshRegions  []domain.Bounds
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	memEntries, err := parsePositiveInt("CACHE_MEMORY_ENTRIES", 16)
	if err != nil {
		return nil, err
	}
	lookback, err := parsePositiveInt("LOOKBACK_DAYS", 90)
	if err != nil {
		return nil, err
	}
	seed, err := parseInt64("SOURCE_SEED", 1)
	if err != nil {
		return nil, err
	}
	regions, err := parseRegions(os.Getenv("REFRESH_REGIONS"))
	if err != nil {
		return nil, err
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CacheDir:           envOrDefault("CACHE_DIR", "data/cache"),
		CacheMemoryEntries: memEntries,

		DefaultResolution: domain.Resolution(envOrDefault("DEFAULT_RESOLUTION", "1km")),
		LookbackDays:      lookback,

		SourceSeed:        seed,
		ClimateNetCDFPath: os.Getenv("CLIMATE_NETCDF"),

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     splitCSV(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultTopic: envOrDefault("KAFKA_RESULT_TOPIC", "harmonized-results"),

		RefreshInterval: refreshInterval,
		RefreshRegions:  regions,
	}

	if _, err := cfg.DefaultResolution.CellDegrees(); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RESOLUTION: %w", err)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaResultTopic == "" {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_RESULT_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseInt64(key string, def int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRegions parses REFRESH_REGIONS: semicolon-separated
// "west,south,east,north" boxes, e.g. "33.5,-4.9,42.0,5.9;28,-12,34,-8".
func parseRegions(s string) ([]domain.Bounds, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var regions []domain.Bounds
	for _, part := range strings.Split(s, ";") {
		fields := strings.Split(strings.TrimSpace(part), ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("invalid REFRESH_REGIONS entry %q: want west,south,east,north", part)
		}
		var vals [4]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid REFRESH_REGIONS entry %q: %w", part, err)
			}
			vals[i] = v
		}
		b := domain.Bounds{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid REFRESH_REGIONS entry %q: %w", part, err)
		}
		regions = append(regions, b)
	}
	return regions, nil
}
