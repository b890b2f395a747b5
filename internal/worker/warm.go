package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stratotrack/stratotrack/internal/config"
	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
	"github.com/stratotrack/stratotrack/internal/weather"
)

const healthCheckTimeout = 10 * time.Second

// ElevationWarmer resolves elevation grids.
type ElevationWarmer interface {
	GetBatchElevation(ctx context.Context, points []geo.Point) (*elevation.BatchResult, error)
}

// WeatherWarmer fetches weather series.
type WeatherWarmer interface {
	GetWeather(ctx context.Context, req weather.Request) (*weather.Series, error)
}

// WindowPlanner sizes forecast windows and picks models.
type WindowPlanner interface {
	SelectWindow(req forecast.Request) *forecast.Window
	SelectModel(w *forecast.Window, now time.Time) (*forecast.ModelSelection, error)
}

// WarmJob pre-populates the elevation and weather caches for launch sites.
type WarmJob struct {
	config WarmConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	elevation ElevationWarmer
	weather   WeatherWarmer
	planner   WindowPlanner
	registry  *resilience.Registry

	persistent bool

	now     func() time.Time
	metrics *WarmMetrics
}

// WarmMetrics tracks warming job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	SuccessfulSites int64
	FailedSites     int64

	ElevationPoints int64
	ElevationCalls  int64

	WeatherWindows   int64
	WeatherCalls     int64
	WeatherCacheHits int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config    WarmConfig
	Logger    zerolog.Logger
	Elevation ElevationWarmer
	Weather   WeatherWarmer
	Planner   WindowPlanner
	Registry  *resilience.Registry
	Now       func() time.Time

	// Persistent must be set when the services write through to a store the
	// API also reads. Without it warming only fills this process's memory,
	// so runs are skipped.
	Persistent bool
}

// NewWarmJob creates a new cache warming job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WarmJob{
		config:     cfg.Config.withDefaults(),
		logger:     cfg.Logger,
		elevation:  cfg.Elevation,
		weather:    cfg.Weather,
		planner:    cfg.Planner,
		registry:   cfg.Registry,
		persistent: cfg.Persistent,
		now:        cfg.Now,
		metrics:    &WarmMetrics{},
	}
}

// WarmResult contains the result of a warming run.
type WarmResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	TotalSites int
	Skipped    bool
	Successful int
	Failed     int
	Errors     []WarmError

	ElevationPoints  int
	ElevationCalls   int
	WeatherWindows   int
	WeatherCalls     int
	WeatherCacheHits int
}

// WarmError is a failure while warming one site.
type WarmError struct {
	Site  string
	Kind  string // "elevation" or "weather"
	Error string
}

type siteResult struct {
	success          bool
	elevationPoints  int
	elevationCalls   int
	weatherWindows   int
	weatherCalls     int
	weatherCacheHits int
	errors           []WarmError
}

// Run warms every configured site, at most Concurrency at a time. A failing
// site does not stop the others.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	return j.run(ctx, j.config.Sites)
}

// RunSites warms only the named sites. Unknown names are ignored.
func (j *WarmJob) RunSites(ctx context.Context, names []string) *WarmResult {
	if len(names) == 0 {
		return j.Run(ctx)
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var sites []config.Site
	for _, s := range j.config.Sites {
		if want[s.Name] {
			sites = append(sites, s)
		}
	}
	return j.run(ctx, sites)
}

func (j *WarmJob) run(ctx context.Context, sites []config.Site) *WarmResult {
	startTime := j.now()
	result := &WarmResult{StartTime: startTime, TotalSites: len(sites)}

	if !j.persistent {
		j.logger.Warn().
			Int("sites", len(sites)).
			Msg("no shared store configured, skipping cache warming")
		result.Skipped = true
		result.EndTime = startTime
		return result
	}

	j.logger.Info().
		Int("sites", len(sites)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warming job")

	launches := j.config.LaunchTimes(startTime)
	results := make([]siteResult, len(sites))

	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)
	for i, site := range sites {
		g.Go(func() error {
			results[i] = j.warmSite(ctx, site, launches)
			return nil
		})
	}
	_ = g.Wait()

	for _, sr := range results {
		if sr.success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.ElevationPoints += sr.elevationPoints
		result.ElevationCalls += sr.elevationCalls
		result.WeatherWindows += sr.weatherWindows
		result.WeatherCalls += sr.weatherCalls
		result.WeatherCacheHits += sr.weatherCacheHits
		result.Errors = append(result.Errors, sr.errors...)
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("elevation_points", result.ElevationPoints).
		Int("elevation_calls", result.ElevationCalls).
		Int("weather_windows", result.WeatherWindows).
		Int("weather_calls", result.WeatherCalls).
		Msg("cache warming job completed")

	return result
}

func (j *WarmJob) warmSite(ctx context.Context, site config.Site, launches []time.Time) siteResult {
	result := siteResult{success: true}

	siteCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	log := j.logger.With().Str("site", site.Name).Logger()

	if j.elevation != nil {
		points := j.config.Grid(site)
		batch, err := j.elevation.GetBatchElevation(siteCtx, points)
		switch {
		case err != nil:
			result.fail(site, "elevation", err)
		case batch.Status == elevation.BatchError:
			result.fail(site, "elevation", fmt.Errorf("no elevation resolved for %d points", len(points)))
		default:
			result.elevationPoints = len(batch.Samples)
			result.elevationCalls = batch.Calls
			if batch.Status == elevation.BatchPartial {
				log.Warn().Int("unresolved", len(batch.Failures)).Msg("elevation grid partially warmed")
			}
		}
	}

	if j.weather != nil && j.planner != nil {
		now := j.now()
		for _, launch := range launches {
			if err := siteCtx.Err(); err != nil {
				result.fail(site, "weather", err)
				break
			}

			req := j.weatherRequest(site, launch, now)
			series, err := j.weather.GetWeather(siteCtx, req)
			if err != nil {
				result.fail(site, "weather", fmt.Errorf("launch %s: %w", launch.Format(time.RFC3339), err))
				continue
			}
			result.weatherWindows++
			result.weatherCalls += series.Calls
			if series.FromCache {
				result.weatherCacheHits++
			}
		}
	}

	log.Debug().
		Bool("success", result.success).
		Int("elevation_points", result.elevationPoints).
		Int("weather_windows", result.weatherWindows).
		Msg("site warmed")

	return result
}

// weatherRequest mirrors the request a prediction launching at launch makes,
// so the warmed entry is the one predictions look up.
func (j *WarmJob) weatherRequest(site config.Site, launch, now time.Time) weather.Request {
	window := j.planner.SelectWindow(forecast.Request{
		LaunchTime: launch,
		Launch:     site.Point,
		Specs:      j.config.Specs,
	})
	req := weather.Request{Lat: site.Lat, Lon: site.Lon, Start: window.Start, End: window.End}
	if sel, err := j.planner.SelectModel(window, now); err == nil {
		req.Model = sel.Model.ID
	}
	return req
}

func (r *siteResult) fail(site config.Site, kind string, err error) {
	r.success = false
	r.errors = append(r.errors, WarmError{Site: site.Name, Kind: kind, Error: err.Error()})
}

// HealthReport summarizes provider health for the health_check job.
type HealthReport struct {
	Providers []*resilience.ProviderHealth
	Unhealthy []string
	Degraded  []string

	// CheckError is set when the elevation lookup at the first site failed.
	CheckError string
}

// ErrUnhealthy is returned by HealthCheck when no provider can serve.
var ErrUnhealthy = errors.New("providers unhealthy")

// HealthCheck resolves elevation at the first site and reports registry
// health. It fails when that lookup fails or every provider's circuit is open.
func (j *WarmJob) HealthCheck(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{}

	if j.registry != nil {
		report.Providers = j.registry.GetAllHealth()
		for _, h := range report.Providers {
			switch {
			case h.IsUnhealthy():
				report.Unhealthy = append(report.Unhealthy, h.Name)
			case h.IsDegraded():
				report.Degraded = append(report.Degraded, h.Name)
			}
			j.logger.Debug().
				Str("provider", h.Name).
				Str("circuit_state", h.CircuitState.String()).
				Int64("successes", h.Successes).
				Int64("failures", h.Failures).
				Str("last_error", h.LastError).
				Msg("provider health")
		}
	}

	if j.elevation != nil && len(j.config.Sites) > 0 {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()

		batch, err := j.elevation.GetBatchElevation(checkCtx, []geo.Point{j.config.Sites[0].Point})
		if err == nil && batch.Status != elevation.BatchOK {
			err = fmt.Errorf("batch status %s", batch.Status)
		}
		if err != nil {
			report.CheckError = err.Error()
			return report, fmt.Errorf("%w: elevation check: %w", ErrUnhealthy, err)
		}
	}

	if n := len(report.Providers); n > 0 && len(report.Unhealthy) == n {
		return report, fmt.Errorf("%w: all %d provider circuits open", ErrUnhealthy, n)
	}
	return report, nil
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulSites += int64(result.Successful)
	j.metrics.FailedSites += int64(result.Failed)
	j.metrics.ElevationPoints += int64(result.ElevationPoints)
	j.metrics.ElevationCalls += int64(result.ElevationCalls)
	j.metrics.WeatherWindows += int64(result.WeatherWindows)
	j.metrics.WeatherCalls += int64(result.WeatherCalls)
	j.metrics.WeatherCacheHits += int64(result.WeatherCacheHits)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulSites:  j.metrics.SuccessfulSites,
		FailedSites:      j.metrics.FailedSites,
		ElevationPoints:  j.metrics.ElevationPoints,
		ElevationCalls:   j.metrics.ElevationCalls,
		WeatherWindows:   j.metrics.WeatherWindows,
		WeatherCalls:     j.metrics.WeatherCalls,
		WeatherCacheHits: j.metrics.WeatherCacheHits,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}
