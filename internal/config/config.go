// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/stratotrack/stratotrack/internal/geo"
)

// Config holds the configuration shared by the API server and the worker.
type Config struct {
	Environment string `env:"APP_ENV,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	Server     ServerConfig     `env:",prefix=APP_"`
	Telemetry  TelemetryConfig  `env:",prefix=OTEL_"`
	Database   DatabaseConfig   `env:",prefix=DB_"`
	PubSub     PubSubConfig     `env:",prefix=PUBSUB_"`
	Providers  ProviderConfig   `env:",prefix=PROVIDER_"`
	Weather    WeatherConfig    `env:",prefix=WEATHER_"`
	Elevation  ElevationConfig  `env:",prefix=ELEVATION_"`
	Prediction PredictionConfig `env:",prefix=PREDICTION_"`
	Worker     WorkerConfig     `env:",prefix=WORKER_"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string        `env:"PORT,default=8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`

	// RateLimit is requests per minute per client on the prediction endpoints.
	RateLimit int `env:"RATE_LIMIT,default=30"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `env:"ENABLED,default=false"`
	Endpoint       string        `env:"EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	SampleRatio    float64       `env:"SAMPLE_RATIO,default=1"`
	ExportInterval time.Duration `env:"EXPORT_INTERVAL,default=15s"`
}

// DatabaseConfig configures the optional persistent weather and elevation stores.
type DatabaseConfig struct {
	// Enabled turns on the Postgres weather and elevation tiers.
	Enabled         bool          `env:"ENABLED,default=false"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=5432"`
	User            string        `env:"USER,default=stratotrack"`
	Password        string        `env:"PASSWORD,default=localdev"`
	Name            string        `env:"NAME,default=stratotrack"`
	SSLMode         string        `env:"SSL_MODE,default=disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS,default=2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME,default=5m"`
}

// PubSubConfig configures the worker subscription.
type PubSubConfig struct {
	ProjectID      string `env:"PROJECT_ID"`
	SubscriptionID string `env:"SUBSCRIPTION_ID,default=stratotrack-jobs"`
}

// ProviderConfig configures provider HTTP clients and retries.
type ProviderConfig struct {
	Timeout      time.Duration `env:"TIMEOUT,default=10s"`
	RetryMax     int           `env:"RETRY_MAX,default=3"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF,default=500ms"`
	UserAgent    string        `env:"USER_AGENT,default=stratotrack/1.0"`
}

// WeatherConfig configures weather providers and caching.
type WeatherConfig struct {
	OpenMeteoURL      string        `env:"OPENMETEO_URL"`
	OpenWeatherMapKey string        `env:"OPENWEATHERMAP_API_KEY"`
	OpenWeatherMapURL string        `env:"OPENWEATHERMAP_URL"`
	Priority          []string      `env:"PRIORITY,default=open-meteo,openweathermap"`
	CacheTTL          time.Duration `env:"CACHE_TTL,default=24h"`
	CacheSize         int           `env:"CACHE_SIZE,default=1000"`
}

// ElevationConfig configures elevation providers and caching.
type ElevationConfig struct {
	USGSURL             string        `env:"USGS_URL"`
	OpenMeteoURL        string        `env:"OPENMETEO_URL"`
	OpenElevationURL    string        `env:"OPENELEVATION_URL"`
	Priority            []string      `env:"PRIORITY,default=usgs,open-meteo-elevation,open-elevation"`
	CacheTTL            time.Duration `env:"CACHE_TTL,default=24h"`
	CacheSize           int           `env:"CACHE_SIZE,default=10000"`
	MaxBatchSize        int           `env:"MAX_BATCH_SIZE,default=512"`
	FallbackConcurrency int           `env:"FALLBACK_CONCURRENCY,default=5"`
}

// PredictionConfig configures the prediction pipeline.
type PredictionConfig struct {
	Timeout            time.Duration `env:"TIMEOUT,default=45s"`
	SafetyMargin       time.Duration `env:"SAFETY_MARGIN,default=60m"`
	IntegrationStep    time.Duration `env:"INTEGRATION_STEP,default=60s"`
	Method             string        `env:"INTERPOLATION_METHOD,default=linear"`
	MinObstacleHeight  float64       `env:"MIN_OBSTACLE_HEIGHT,default=20"`
	ClearanceMargin    float64       `env:"CLEARANCE_MARGIN,default=150"`
	MaxGridPoints      int           `env:"MAX_GRID_POINTS,default=441"`
	WarningDistanceKm  float64       `env:"WARNING_DISTANCE_KM,default=5"`
	MaxRecommendations int           `env:"MAX_RECOMMENDATIONS,default=3"`

	// Defaults applied to API requests that omit them.
	DefaultResolution float64 `env:"DEFAULT_TERRAIN_RESOLUTION,default=500"`
	DefaultRadius     float64 `env:"DEFAULT_ANALYSIS_RADIUS,default=5"`
}

// WorkerConfig configures the cache warming worker.
type WorkerConfig struct {
	Concurrency int           `env:"CONCURRENCY,default=3"`
	Timeout     time.Duration `env:"TIMEOUT,default=60s"`

	// GridRadius and GridSpacing, in meters, size the elevation grid warmed per site.
	GridRadius  float64 `env:"GRID_RADIUS,default=5000"`
	GridSpacing float64 `env:"GRID_SPACING,default=500"`

	// Horizon is how far ahead weather is warmed.
	Horizon time.Duration `env:"HORIZON,default=24h"`

	LaunchSites Sites `env:"LAUNCH_SITES,default=Denver@39.7392:-104.9903;Bern@46.9480:7.4474;Albuquerque@35.0844:-106.6504"`
}

// Site is a named launch site.
type Site struct {
	Name string
	geo.Point
}

// Sites is a list of launch sites encoded as "name@lat:lon" entries
// separated by semicolons.
type Sites []Site

// EnvDecode implements envconfig.Decoder.
func (s *Sites) EnvDecode(val string) error {
	var out Sites
	for _, entry := range strings.Split(val, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, coords, ok := strings.Cut(entry, "@")
		if !ok {
			return fmt.Errorf("launch site %q: missing @", entry)
		}
		latStr, lonStr, ok := strings.Cut(coords, ":")
		if !ok {
			return fmt.Errorf("launch site %q: expected lat:lon", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return fmt.Errorf("launch site %q: latitude: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return fmt.Errorf("launch site %q: longitude: %w", entry, err)
		}
		if err := geo.Validate(lat, lon); err != nil {
			return fmt.Errorf("launch site %q: %w", entry, err)
		}
		out = append(out, Site{Name: strings.TrimSpace(name), Point: geo.NewPoint(lat, lon)})
	}
	*s = out
	return nil
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom loads configuration from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Server.RateLimit <= 0:
		return fmt.Errorf("APP_RATE_LIMIT must be positive")
	case c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1:
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be in [0, 1]")
	case c.Prediction.Timeout <= 0:
		return fmt.Errorf("PREDICTION_TIMEOUT must be positive")
	case c.Prediction.DefaultResolution <= 0 || c.Prediction.DefaultRadius <= 0:
		return fmt.Errorf("prediction grid defaults must be positive")
	case c.Worker.Concurrency <= 0:
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level, info when unparseable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
