// Package api provides the HTTP API for stratotrack.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/api/handler"
	"github.com/stratotrack/stratotrack/internal/api/middleware"
	"github.com/stratotrack/stratotrack/internal/api/response"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

// DefaultRateLimit is the per-IP limit on compute endpoints, per minute.
const DefaultRateLimit = 30

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Predictor handler.Predictor
	Selector  handler.WindowSelector
	Elevation handler.ElevationResolver

	// Registry reports provider health on /v1/ops/status; may be nil.
	Registry        *resilience.Registry
	ReadinessChecks []handler.ReadinessCheck

	PredictionDefaults handler.PredictionDefaults

	// RateLimit is requests per minute per IP on compute endpoints
	// (default: DefaultRateLimit).
	RateLimit int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	r := chi.NewRouter()

	// Order matters: the request ID feeds tracing, logging and problems.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported on "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks...)
	predictionHandler := handler.NewPredictionHandler(cfg.Predictor, cfg.PredictionDefaults)
	forecastHandler := handler.NewForecastHandler(cfg.Selector)
	elevationHandler := handler.NewElevationHandler(cfg.Elevation)

	computeRateLimit := middleware.RateLimit(cfg.RateLimit, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(computeRateLimit).Post("/predictions", predictionHandler.CreatePrediction)
		r.With(computeRateLimit).Post("/forecast-windows", forecastHandler.CreateForecastWindow)
		r.Get("/elevation", elevationHandler.GetElevation)
	})

	return r
}
