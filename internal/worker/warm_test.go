package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/config"
	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
	"github.com/stratotrack/stratotrack/internal/weather"
	"github.com/stratotrack/stratotrack/internal/worker"
)

var now = time.Date(2026, 6, 1, 6, 20, 0, 0, time.UTC)

type fakeElevation struct {
	mu       sync.Mutex
	failLat  float64
	status   elevation.BatchStatus
	batches  [][]geo.Point
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeElevation) GetBatchElevation(_ context.Context, points []geo.Point) (*elevation.BatchResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.batches = append(f.batches, points)
	f.mu.Unlock()

	if len(points) > 0 && points[0].Lat == f.failLat {
		return nil, resilience.ErrAllProvidersFailed
	}
	status := f.status
	if status == "" {
		status = elevation.BatchOK
	}
	out := &elevation.BatchResult{Status: status, Calls: 1}
	if status != elevation.BatchError {
		for _, p := range points {
			out.Samples = append(out.Samples, elevation.Sample{Lat: p.Lat, Lon: p.Lon, Elevation: 1500})
		}
	}
	return out, nil
}

type fakeWeather struct {
	mu   sync.Mutex
	seen map[string]bool
	reqs []weather.Request
	err  error
}

func (f *fakeWeather) GetWeather(_ context.Context, req weather.Request) (*weather.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.reqs = append(f.reqs, req)
	key := geo.RoundKey(req.Lat, req.Lon, 4) + req.Start.String() + req.End.String() + req.Model
	hit := f.seen[key]
	f.seen[key] = true
	if hit {
		return &weather.Series{FromCache: true}, nil
	}
	return &weather.Series{Calls: 1}, nil
}

func sites() []config.Site {
	return []config.Site{
		{Name: "Denver", Point: geo.NewPoint(39.7392, -104.9903)},
		{Name: "Bern", Point: geo.NewPoint(46.9480, 7.4474)},
		{Name: "Albuquerque", Point: geo.NewPoint(35.0844, -106.6504)},
		{Name: "Kiruna", Point: geo.NewPoint(67.8558, 20.2253)},
	}
}

func newJob(elev *fakeElevation, wx *fakeWeather, cfg worker.WarmConfig) *worker.WarmJob {
	jc := worker.WarmJobConfig{
		Config:     cfg,
		Logger:     zerolog.Nop(),
		Planner:    forecast.NewSelector(forecast.SelectorConfig{Now: func() time.Time { return now }}),
		Now:        func() time.Time { return now },
		Persistent: true,
	}
	if elev != nil {
		jc.Elevation = elev
	}
	if wx != nil {
		jc.Weather = wx
	}
	return worker.NewWarmJob(jc)
}

func TestDefaultWarmConfig(t *testing.T) {
	cfg := worker.DefaultWarmConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Horizon)
	assert.Len(t, cfg.Sites, 3)
	require.NoError(t, cfg.Specs.Validate())
}

func TestFromConfig(t *testing.T) {
	cfg := worker.FromConfig(config.WorkerConfig{
		Concurrency: 7,
		GridRadius:  1000,
		GridSpacing: 250,
		LaunchSites: config.Sites{{Name: "Here", Point: geo.NewPoint(1, 2)}},
	})

	assert.Equal(t, 7, cfg.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Timeout, "unset fields keep defaults")
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, "Here", cfg.Sites[0].Name)
	assert.Equal(t, len(geo.Grid(geo.NewPoint(1, 2), 1000, 250)), cfg.TotalPoints())
}

func TestWarmConfig_LaunchTimes(t *testing.T) {
	cfg := worker.WarmConfig{Horizon: 12 * time.Hour, LaunchInterval: 6 * time.Hour}

	got := cfg.LaunchTimes(now)

	require.Len(t, got, 3)
	assert.Equal(t, time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC), got[2])
}

func TestWarmJob_Run(t *testing.T) {
	elev := &fakeElevation{}
	wx := &fakeWeather{}
	job := newJob(elev, wx, worker.WarmConfig{
		Sites:       sites(),
		Concurrency: 2,
		GridRadius:  1000,
		GridSpacing: 500,
		Horizon:     12 * time.Hour,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 4, result.TotalSites)
	assert.Equal(t, 4, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)

	gridSize := len(geo.Grid(sites()[0].Point, 1000, 500))
	assert.Equal(t, 4*gridSize, result.ElevationPoints)
	assert.Equal(t, 4, result.ElevationCalls)
	assert.Len(t, elev.batches, 4)
	assert.LessOrEqual(t, elev.maxSeen.Load(), int32(2), "concurrency limit honoured")

	assert.Equal(t, 4*3, result.WeatherWindows, "three launches per site within 12h at 6h spacing")
	assert.Equal(t, 12, result.WeatherCalls)
	for _, req := range wx.reqs {
		assert.True(t, req.End.After(req.Start))
		assert.NotEmpty(t, req.Model, "model hint matches the prediction request")
	}
}

func TestWarmJob_Run_SecondRunHitsCache(t *testing.T) {
	wx := &fakeWeather{}
	job := newJob(nil, wx, worker.WarmConfig{Sites: sites()[:1], Horizon: 6 * time.Hour})

	first := job.Run(context.Background())
	second := job.Run(context.Background())

	assert.Equal(t, 2, first.WeatherCalls)
	assert.Zero(t, second.WeatherCalls)
	assert.Equal(t, 2, second.WeatherCacheHits)
}

func TestWarmJob_Run_SkippedWithoutSharedStore(t *testing.T) {
	elev := &fakeElevation{}
	wx := &fakeWeather{}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:    worker.WarmConfig{Sites: sites(), GridRadius: 0},
		Logger:    zerolog.Nop(),
		Elevation: elev,
		Weather:   wx,
		Planner:   forecast.NewSelector(forecast.SelectorConfig{Now: func() time.Time { return now }}),
		Now:       func() time.Time { return now },
	})

	result := job.Run(context.Background())

	assert.True(t, result.Skipped)
	assert.Equal(t, 4, result.TotalSites)
	assert.Zero(t, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Empty(t, elev.batches, "nothing warmed into process memory")
	assert.Empty(t, wx.reqs)
	assert.Zero(t, job.GetMetrics().TotalRuns)

	d := worker.NewDispatcher(job, zerolog.Nop())
	require.NoError(t, d.Dispatch(context.Background(), []byte(`{"job_type":"cache_warm"}`)))
	assert.Empty(t, elev.batches)
}

func TestWarmJob_Run_SiteFailureIsolated(t *testing.T) {
	elev := &fakeElevation{failLat: sites()[1].Lat}
	job := newJob(elev, nil, worker.WarmConfig{Sites: sites(), GridRadius: 0})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Bern", result.Errors[0].Site)
	assert.Equal(t, "elevation", result.Errors[0].Kind)
}

func TestWarmJob_Run_BatchErrorStatus(t *testing.T) {
	elev := &fakeElevation{status: elevation.BatchError}
	job := newJob(elev, nil, worker.WarmConfig{Sites: sites()[:2]})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.ElevationPoints)
}

func TestWarmJob_Run_WeatherFailure(t *testing.T) {
	wx := &fakeWeather{err: resilience.ErrAllProvidersFailed}
	job := newJob(&fakeElevation{}, wx, worker.WarmConfig{Sites: sites()[:1], Horizon: time.Hour, LaunchInterval: time.Hour})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "weather", result.Errors[0].Kind)
}

func TestWarmJob_RunSites(t *testing.T) {
	elev := &fakeElevation{}
	job := newJob(elev, nil, worker.WarmConfig{Sites: sites(), GridRadius: 0})

	result := job.RunSites(context.Background(), []string{"Kiruna", "Atlantis"})

	assert.Equal(t, 1, result.TotalSites)
	require.Len(t, elev.batches, 1)
	assert.Equal(t, sites()[3].Lat, elev.batches[0][0].Lat)
}

func TestWarmJob_GetMetrics(t *testing.T) {
	job := newJob(&fakeElevation{}, &fakeWeather{}, worker.WarmConfig{Sites: sites()[:2], GridRadius: 0, Horizon: time.Hour, LaunchInterval: time.Hour})

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(4), metrics.SuccessfulSites)
	assert.Equal(t, int64(4), metrics.ElevationPoints)
	assert.Equal(t, int64(8), metrics.WeatherWindows)
	assert.Equal(t, int64(4), metrics.WeatherCacheHits)
	assert.Equal(t, now, metrics.LastRunAt)
}

func TestWarmJob_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		registry := resilience.NewRegistry()
		registry.RecordSuccess("usgs")
		job := worker.NewWarmJob(worker.WarmJobConfig{
			Config:    worker.WarmConfig{Sites: sites()},
			Elevation: &fakeElevation{},
			Registry:  registry,
			Logger:    zerolog.Nop(),
		})

		report, err := job.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Len(t, report.Providers, 1)
		assert.Empty(t, report.Unhealthy)
	})

	t.Run("elevation check fails", func(t *testing.T) {
		job := worker.NewWarmJob(worker.WarmJobConfig{
			Config:    worker.WarmConfig{Sites: sites()},
			Elevation: &fakeElevation{failLat: sites()[0].Lat},
			Logger:    zerolog.Nop(),
		})

		report, err := job.HealthCheck(context.Background())
		require.ErrorIs(t, err, worker.ErrUnhealthy)
		assert.True(t, errors.Is(err, resilience.ErrAllProvidersFailed))
		assert.NotEmpty(t, report.CheckError)
	})
}
