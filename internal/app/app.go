// Package app wires the provider clients, services and prediction pipeline
// shared by the API server and the worker.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/api/handler"
	"github.com/stratotrack/stratotrack/internal/config"
	"github.com/stratotrack/stratotrack/internal/database"
	"github.com/stratotrack/stratotrack/internal/elevation"
	elevationopenmeteo "github.com/stratotrack/stratotrack/internal/elevation/openmeteo"
	"github.com/stratotrack/stratotrack/internal/elevation/openelevation"
	"github.com/stratotrack/stratotrack/internal/elevation/usgs"
	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/interpolation"
	"github.com/stratotrack/stratotrack/internal/prediction"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
	"github.com/stratotrack/stratotrack/internal/quality"
	"github.com/stratotrack/stratotrack/internal/terrain"
	"github.com/stratotrack/stratotrack/internal/trajectory"
	"github.com/stratotrack/stratotrack/internal/weather"
	weatheropenmeteo "github.com/stratotrack/stratotrack/internal/weather/openmeteo"
	"github.com/stratotrack/stratotrack/internal/weather/openweathermap"
)

// Services holds the wired components.
type Services struct {
	Registry     *resilience.Registry
	Weather      *weather.Service
	Elevation    *elevation.Service
	Selector     *forecast.Selector
	Orchestrator *prediction.Orchestrator

	// ReadinessChecks gate /v1/ops/ready.
	ReadinessChecks []handler.ReadinessCheck

	pool *pgxpool.Pool
}

// Persistent reports whether the services write through to the shared
// database tier, so that work done in one process is visible to others.
func (s *Services) Persistent() bool {
	return s.pool != nil
}

// Close releases the database pool, if any.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Build creates every service from cfg. The database is only dialled when
// the persistent weather and elevation tiers are enabled.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	method, err := parseMethod(cfg.Prediction.Method)
	if err != nil {
		return nil, err
	}

	providerMetrics, err := resilience.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("provider metrics: %w", err)
	}
	predictionMetrics, err := prediction.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("prediction metrics: %w", err)
	}

	out := &Services{Registry: resilience.NewRegistry()}
	client := func(name string) *resilience.Client {
		cc := resilience.DefaultClientConfig(name)
		cc.Timeout = cfg.Providers.Timeout
		cc.UserAgent = cfg.Providers.UserAgent
		cc.Registry = out.Registry
		return resilience.NewClient(cc)
	}
	retry := resilience.RetryPolicy{
		MaxAttempts: cfg.Providers.RetryMax,
		Step:        cfg.Providers.RetryBackoff,
	}

	weatherProviders := []weather.Provider{
		weatheropenmeteo.NewClient(weatheropenmeteo.ClientConfig{
			BaseURL:    cfg.Weather.OpenMeteoURL,
			HTTPClient: client(weatheropenmeteo.ProviderName),
			Logger:     log,
		}),
	}
	if cfg.Weather.OpenWeatherMapKey != "" {
		weatherProviders = append(weatherProviders, openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     cfg.Weather.OpenWeatherMapKey,
			OneCallURL: cfg.Weather.OpenWeatherMapURL,
			HTTPClient: client(openweathermap.ProviderName),
			Logger:     log,
		}))
	} else {
		log.Warn().Msg("OpenWeatherMap API key not set, running with a single weather provider")
	}

	elevationProviders := []elevation.Provider{
		usgs.NewClient(usgs.ClientConfig{
			BaseURL:    cfg.Elevation.USGSURL,
			HTTPClient: client(usgs.ProviderName),
			Logger:     log,
		}),
		elevationopenmeteo.NewClient(elevationopenmeteo.ClientConfig{
			BaseURL:    cfg.Elevation.OpenMeteoURL,
			HTTPClient: client(elevationopenmeteo.ProviderName),
			Logger:     log,
		}),
		openelevation.NewClient(openelevation.ClientConfig{
			BaseURL:    cfg.Elevation.OpenElevationURL,
			HTTPClient: client(openelevation.ProviderName),
			Logger:     log,
		}),
	}

	var (
		store        elevation.Store
		weatherStore weather.Store
	)
	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		pgStore := elevation.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("elevation schema: %w", err)
		}
		wxStore := weather.NewPostgresStore(pool)
		if err := wxStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("weather schema: %w", err)
		}
		out.pool = pool
		store = pgStore
		weatherStore = wxStore
		out.ReadinessChecks = append(out.ReadinessChecks, handler.ReadinessCheck{
			Name:  "database",
			Check: pool.Ping,
		})
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Name).
			Msg("weather and elevation stores connected")
	}

	out.Weather = weather.NewService(weather.ServiceConfig{
		Providers: weatherProviders,
		Priority:  cfg.Weather.Priority,
		Logger:    log,
		CacheTTL:  cfg.Weather.CacheTTL,
		CacheSize: cfg.Weather.CacheSize,
		Store:     weatherStore,
		Retry:     retry,
		Registry:  out.Registry,
		Metrics:   providerMetrics,
	})
	out.Elevation = elevation.NewService(elevation.ServiceConfig{
		Providers:           elevationProviders,
		Priority:            cfg.Elevation.Priority,
		Store:               store,
		Logger:              log,
		CacheTTL:            cfg.Elevation.CacheTTL,
		CacheSize:           cfg.Elevation.CacheSize,
		Retry:               retry,
		FallbackConcurrency: cfg.Elevation.FallbackConcurrency,
		MaxBatchSize:        cfg.Elevation.MaxBatchSize,
		Registry:            out.Registry,
		Metrics:             providerMetrics,
	})

	out.Selector = forecast.NewSelector(forecast.SelectorConfig{
		SafetyMargin: cfg.Prediction.SafetyMargin,
		Logger:       log,
	})
	out.Orchestrator = prediction.NewOrchestrator(prediction.Config{
		Weather:      out.Weather,
		Elevation:    out.Elevation,
		Selector:     out.Selector,
		Interpolator: interpolation.New(interpolation.Config{Logger: log}),
		Engine: trajectory.NewEngine(trajectory.EngineConfig{
			Step:   cfg.Prediction.IntegrationStep,
			Logger: log,
		}),
		Analyzer: terrain.NewAnalyzer(terrain.Config{
			MinObstacleHeight: cfg.Prediction.MinObstacleHeight,
			ClearanceMargin:   cfg.Prediction.ClearanceMargin,
			Logger:            log,
		}),
		Assessor:           quality.NewAssessor(quality.Config{Logger: log}),
		Method:             method,
		MaxGridPoints:      cfg.Prediction.MaxGridPoints,
		WarningDistanceKm:  cfg.Prediction.WarningDistanceKm,
		MaxRecommendations: cfg.Prediction.MaxRecommendations,
		Metrics:            predictionMetrics,
		Logger:             log,
	})

	log.Info().
		Strs("weather_providers", out.Weather.ProviderNames()).
		Strs("elevation_providers", out.Elevation.ProviderNames()).
		Bool("persistent", out.Persistent()).
		Msg("services initialized")

	return out, nil
}

// PredictionDefaults returns the per-request defaults for the prediction handler.
func PredictionDefaults(cfg *config.Config) handler.PredictionDefaults {
	return handler.PredictionDefaults{
		TerrainResolution: cfg.Prediction.DefaultResolution,
		AnalysisRadius:    cfg.Prediction.DefaultRadius,
		Timeout:           cfg.Prediction.Timeout,
	}
}

func parseMethod(s string) (interpolation.Method, error) {
	switch m := interpolation.Method(s); m {
	case interpolation.Linear, interpolation.Cubic, interpolation.Spline:
		return m, nil
	case "":
		return interpolation.Linear, nil
	}
	return "", fmt.Errorf("PREDICTION_INTERPOLATION_METHOD: unknown method %q", s)
}
