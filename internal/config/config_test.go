package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.RateLimit)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 3, cfg.Providers.RetryMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Providers.RetryBackoff)
	assert.Equal(t, []string{"open-meteo", "openweathermap"}, cfg.Weather.Priority)
	assert.Equal(t, []string{"usgs", "open-meteo-elevation", "open-elevation"}, cfg.Elevation.Priority)
	assert.Equal(t, 24*time.Hour, cfg.Elevation.CacheTTL)
	assert.Equal(t, 10000, cfg.Elevation.CacheSize)
	assert.Equal(t, 1000, cfg.Weather.CacheSize)
	assert.Equal(t, 441, cfg.Prediction.MaxGridPoints)
	assert.Equal(t, 150.0, cfg.Prediction.ClearanceMargin)

	require.Len(t, cfg.Worker.LaunchSites, 3)
	assert.Equal(t, "Denver", cfg.Worker.LaunchSites[0].Name)
	assert.InDelta(t, 39.7392, cfg.Worker.LaunchSites[0].Lat, 1e-9)
	assert.InDelta(t, -104.9903, cfg.Worker.LaunchSites[0].Lon, 1e-9)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"APP_ENV":                     "production",
		"LOG_LEVEL":                   "debug",
		"APP_PORT":                    "9000",
		"OTEL_ENABLED":                "true",
		"OTEL_SAMPLE_RATIO":           "0.25",
		"DB_ENABLED":                  "true",
		"DB_HOST":                     "db.internal",
		"WEATHER_PRIORITY":            "openweathermap",
		"PREDICTION_TIMEOUT":          "10s",
		"WORKER_LAUNCH_SITES":         "Kiruna@67.8558:20.2253",
		"PUBSUB_PROJECT_ID":           "balloons",
		"ELEVATION_MAX_BATCH_SIZE":    "100",
		"PROVIDER_USER_AGENT":         "test/0",
		"WEATHER_OPENMETEO_URL":       "http://localhost:9999",
		"ELEVATION_CACHE_TTL":         "1h",
		"PREDICTION_CLEARANCE_MARGIN": "200",
	}))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"openweathermap"}, cfg.Weather.Priority)
	assert.Equal(t, 10*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, "balloons", cfg.PubSub.ProjectID)
	assert.Equal(t, 100, cfg.Elevation.MaxBatchSize)
	assert.Equal(t, "test/0", cfg.Providers.UserAgent)
	assert.Equal(t, "http://localhost:9999", cfg.Weather.OpenMeteoURL)
	assert.Equal(t, time.Hour, cfg.Elevation.CacheTTL)
	assert.Equal(t, 200.0, cfg.Prediction.ClearanceMargin)

	require.Len(t, cfg.Worker.LaunchSites, 1)
	assert.Equal(t, "Kiruna", cfg.Worker.LaunchSites[0].Name)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"PREDICTION_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"PREDICTION_TIMEOUT": "0s"}},
		{"sample ratio", map[string]string{"OTEL_SAMPLE_RATIO": "2"}},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"site without coordinates", map[string]string{"WORKER_LAUNCH_SITES": "Nowhere"}},
		{"site out of range", map[string]string{"WORKER_LAUNCH_SITES": "Pole@95:0"}},
		{"zero rate limit", map[string]string{"APP_RATE_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}
