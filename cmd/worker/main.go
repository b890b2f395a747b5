// Package main provides the entrypoint for the stratotrack cache warming worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/api/handler"
	"github.com/stratotrack/stratotrack/internal/api/middleware"
	"github.com/stratotrack/stratotrack/internal/app"
	"github.com/stratotrack/stratotrack/internal/config"
	"github.com/stratotrack/stratotrack/internal/telemetry"
	"github.com/stratotrack/stratotrack/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "stratotrack-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = log.Level(cfg.Level())

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting stratotrack worker")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.Telemetry.ExportInterval,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	defer services.Close()

	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:     worker.FromConfig(cfg.Worker),
		Logger:     log.With().Str("component", "cache_warm").Logger(),
		Elevation:  services.Elevation,
		Weather:    services.Weather,
		Planner:    services.Selector,
		Registry:   services.Registry,
		Persistent: services.Persistent(),
	})
	if !services.Persistent() {
		log.Warn().Msg("DB_ENABLED not set, the API cannot read warmed data and cache warming is disabled")
	}
	dispatcher := worker.NewDispatcher(job, log)

	// Cloud Run needs an HTTP listener; expose the ops endpoints on it.
	ops := handler.NewOpsHandler(Version, BuildTime, services.Registry, services.ReadinessChecks...)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/v1/ops/health", ops.HealthCheck)
	r.Get("/v1/ops/ready", ops.ReadinessCheck)
	r.Get("/v1/ops/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.ProjectID != "" {
		sub, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.SubscriptionID,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			os.Exit(1)
		}
		defer func() {
			if err := sub.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := sub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else if services.Persistent() {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, warming once at startup")
		go func() {
			if err := dispatcher.Dispatch(ctx, []byte(`{"job_type":"`+worker.JobCacheWarm+`"}`)); err != nil {
				log.Error().Err(err).Msg("startup cache warm failed")
			}
		}()
	}

	// Wait for interrupt signal or a fatal receive error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
