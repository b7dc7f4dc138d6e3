package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohealth/envfuse/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data/cache", cfg.CacheDir)
	assert.Equal(t, 16, cfg.CacheMemoryEntries)
	assert.Equal(t, domain.Resolution1km, cfg.DefaultResolution)
	assert.Equal(t, 90, cfg.LookbackDays)
	assert.Equal(t, int64(1), cfg.SourceSeed)
	assert.Empty(t, cfg.ClimateNetCDFPath)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "harmonized-results", cfg.KafkaResultTopic)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.Empty(t, cfg.RefreshRegions)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("CACHE_DIR", "/var/lib/envfuse")
	t.Setenv("CACHE_MEMORY_ENTRIES", "64")
	t.Setenv("DEFAULT_RESOLUTION", "5km")
	t.Setenv("LOOKBACK_DAYS", "180")
	t.Setenv("SOURCE_SEED", "-7")
	t.Setenv("CLIMATE_NETCDF", "/data/era5.nc")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_RESULT_TOPIC", "custom-results")
	t.Setenv("REFRESH_INTERVAL", "1h")
	t.Setenv("REFRESH_REGIONS", "33.5,-4.9,42.0,5.9; 28,-12,34,-8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/lib/envfuse", cfg.CacheDir)
	assert.Equal(t, 64, cfg.CacheMemoryEntries)
	assert.Equal(t, domain.Resolution5km, cfg.DefaultResolution)
	assert.Equal(t, 180, cfg.LookbackDays)
	assert.Equal(t, int64(-7), cfg.SourceSeed)
	assert.Equal(t, "/data/era5.nc", cfg.ClimateNetCDFPath)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-results", cfg.KafkaResultTopic)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)

	require.Len(t, cfg.RefreshRegions, 2)
	assert.Equal(t, domain.Bounds{West: 33.5, South: -4.9, East: 42.0, North: 5.9}, cfg.RefreshRegions[0])
	assert.Equal(t, domain.Bounds{West: 28, South: -12, East: 34, North: -8}, cfg.RefreshRegions[1])
}

func TestLoad_InvalidResolution(t *testing.T) {
	t.Setenv("DEFAULT_RESOLUTION", "250m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_RESOLUTION")
}

func TestLoad_InvalidRefreshRegion(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "wrong field count", value: "1,2,3"},
		{name: "non-numeric", value: "a,b,c,d"},
		{name: "inverted bounds", value: "10,0,5,5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REFRESH_REGIONS", tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "REFRESH_REGIONS")
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_INTERVAL")
}
