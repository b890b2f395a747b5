package weather

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/cache"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

const kind = "weather"

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Providers are the weather data providers.
	Providers []Provider

	// Priority orders providers by name. Providers not listed keep their
	// registration order after the listed ones.
	Priority []string

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long fetched series stay valid (default: 24 hours).
	CacheTTL time.Duration

	// CacheSize bounds the number of cached series (default: 1000).
	CacheSize int

	// Store is the persistent tier, optional. Entries older than CacheTTL
	// are ignored.
	Store Store

	// Retry is the per-provider retry policy.
	Retry resilience.RetryPolicy

	// Registry receives provider health, optional.
	Registry *resilience.Registry

	// Metrics records provider calls and cache lookups, optional.
	Metrics *resilience.Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service fetches weather series through ranked providers with caching,
// retries and failover.
type Service struct {
	providers []Provider
	priority  []string
	logger    zerolog.Logger
	cache     *cache.Cache[*Series]
	store     Store
	ttl       time.Duration
	strategy  resilience.Strategy
	metrics   *resilience.Metrics
	now       func() time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Registry != nil {
		for _, p := range cfg.Providers {
			if cfg.Registry.GetHealth(p.Name()) == nil {
				cfg.Registry.Register(p.Name(), nil)
			}
		}
	}

	return &Service{
		providers: cfg.Providers,
		priority:  cfg.Priority,
		logger:    cfg.Logger,
		cache:     cache.New[*Series](cache.Config{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheSize, Now: cfg.Now}),
		store:     cfg.Store,
		ttl:       cfg.CacheTTL,
		strategy: resilience.Strategy{
			Retry:    cfg.Retry,
			Registry: cfg.Registry,
			Metrics:  cfg.Metrics,
			Logger:   cfg.Logger,
		},
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// GetWeather returns samples for the request, sorted by time and altitude.
// Providers are asked for the hour-aligned window; the result is cached on
// that window and trimmed to [req.Start, req.End] on every lookup.
// When every provider fails the error is a *resilience.AllProvidersFailedError.
func (s *Service) GetWeather(ctx context.Context, req Request) (*Series, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.cacheKey()
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(ctx, kind, true)
		out := serve(cached, req)
		out.FromCache = true
		out.Calls = 0
		return out, nil
	}
	if stored, ok := s.fromStore(ctx, key); ok {
		s.metrics.RecordCache(ctx, kind, true)
		s.cache.Set(key, stored)
		out := serve(stored, req)
		out.FromCache = true
		out.FromStore = true
		out.Calls = 0
		return out, nil
	}
	s.metrics.RecordCache(ctx, kind, false)

	fetch := req.aligned()
	ranked := resilience.Rank(s.providers, s.priority, req.Lat, req.Lon)
	candidates := make([]resilience.Candidate[[]Sample], 0, len(ranked))
	for _, p := range ranked {
		p := p
		candidates = append(candidates, resilience.Candidate[[]Sample]{
			Name: p.Name(),
			Call: func(ctx context.Context) ([]Sample, error) {
				samples, err := p.GetWeather(ctx, fetch)
				if err != nil {
					return nil, err
				}
				if len(samples) == 0 {
					return nil, &resilience.DataUnavailableError{
						Provider: p.Name(), Lat: req.Lat, Lon: req.Lon, Reason: ErrNoData.Error(),
					}
				}
				return samples, nil
			},
		})
	}

	s.logger.Debug().
		Float64("lat", req.Lat).
		Float64("lon", req.Lon).
		Time("start", fetch.Start).
		Time("end", fetch.End).
		Int("providers", len(candidates)).
		Msg("fetching weather from providers")

	out, err := resilience.Failover(ctx, s.strategy, kind, candidates)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", req.Lat).
			Float64("lon", req.Lon).
			Msg("failed to fetch weather")
		return nil, err
	}

	samples := FilterRange(out.Value, fetch.Start, fetch.End)
	if len(samples) == 0 {
		// Providers answer on their own grid; keep everything rather than nothing.
		samples = slices.Clone(out.Value)
	}
	SortSamples(samples)

	series := &Series{
		Samples:   samples,
		Provider:  out.Provider,
		Calls:     out.Calls,
		FetchedAt: s.now(),
	}
	s.remember(ctx, key, series)

	return serve(series, req), nil
}

// serve copies series trimmed to the request window, keeping every sample
// when none fall inside it.
func serve(series *Series, req Request) *Series {
	out := *series
	out.Samples = FilterRange(series.Samples, req.Start, req.End)
	if len(out.Samples) == 0 {
		out.Samples = slices.Clone(series.Samples)
	}
	return &out
}

func (s *Service) fromStore(ctx context.Context, key string) (*Series, bool) {
	if s.store == nil {
		return nil, false
	}
	series, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("weather store lookup failed")
		}
		return nil, false
	}
	if s.now().Sub(series.FetchedAt) >= s.ttl || len(series.Samples) == 0 {
		return nil, false
	}
	return series, true
}

func (s *Service) remember(ctx context.Context, key string, series *Series) {
	s.cache.Set(key, series)
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, key, series); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("weather store write failed")
	}
}

// ProviderNames returns the names of the configured providers.
func (s *Service) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.cache.Clear()
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}
