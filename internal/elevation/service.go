package elevation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stratotrack/stratotrack/internal/cache"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

const (
	kind = "elevation"

	// keyDecimals is the coordinate rounding used for cache keys (about 11 m).
	keyDecimals = 4
)

// ServiceConfig holds configuration for the elevation service.
type ServiceConfig struct {
	// Providers are the elevation providers.
	Providers []Provider

	// Priority orders providers by name after regional preference.
	Priority []string

	// Store is an optional persistent tier consulted after an in-memory miss.
	Store Store

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long samples stay cached (default: 24 hours).
	CacheTTL time.Duration

	// CacheSize bounds the in-memory cache (default: 10000).
	CacheSize int

	// Retry is the per-provider retry policy.
	Retry resilience.RetryPolicy

	// FallbackConcurrency bounds per-point lookups after a failed batch (default: 5).
	FallbackConcurrency int

	// MaxBatchSize caps provider batch sizes (default: 512).
	MaxBatchSize int

	// Registry receives provider health, optional.
	Registry *resilience.Registry

	// Metrics records provider calls and cache lookups, optional.
	Metrics *resilience.Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service resolves elevations with caching, ranking, retries and failover.
type Service struct {
	providers   []Provider
	priority    []string
	store       Store
	logger      zerolog.Logger
	cache       *cache.Cache[Sample]
	strategy    resilience.Strategy
	metrics     *resilience.Metrics
	concurrency int
	maxBatch    int
}

// NewService creates a new elevation service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 10000
	}
	if cfg.FallbackConcurrency <= 0 {
		cfg.FallbackConcurrency = 5
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 512
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
		store:     cfg.Store,
		logger:    cfg.Logger,
		cache:     cache.New[Sample](cache.Config{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheSize, Now: cfg.Now}),
		strategy: resilience.Strategy{
			Retry:    cfg.Retry,
			Registry: cfg.Registry,
			Metrics:  cfg.Metrics,
			Logger:   cfg.Logger,
		},
		metrics:     cfg.Metrics,
		concurrency: cfg.FallbackConcurrency,
		maxBatch:    cfg.MaxBatchSize,
	}
}

// GetElevation returns the terrain height at a coordinate.
func (s *Service) GetElevation(ctx context.Context, lat, lon float64) (Sample, error) {
	r, err := s.Resolve(ctx, lat, lon)
	if err != nil {
		return Sample{}, err
	}
	return r.Sample, nil
}

// Resolve returns the terrain height at a coordinate and how it was served.
// When every provider fails the error is a *resilience.AllProvidersFailedError.
func (s *Service) Resolve(ctx context.Context, lat, lon float64) (*Resolution, error) {
	if err := geo.Validate(lat, lon); err != nil {
		return nil, err
	}

	key := geo.RoundKey(lat, lon, keyDecimals)
	if sample, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(ctx, kind, true)
		sample.Lat, sample.Lon = lat, lon
		return &Resolution{Sample: sample, Provider: sample.DataSource, FromCache: true}, nil
	}
	s.metrics.RecordCache(ctx, kind, false)

	if sample, ok := s.fromStore(ctx, key); ok {
		s.cache.Set(key, sample)
		sample.Lat, sample.Lon = lat, lon
		return &Resolution{Sample: sample, Provider: sample.DataSource, FromStore: true}, nil
	}

	ranked := resilience.Rank(s.providers, s.priority, lat, lon)
	candidates := make([]resilience.Candidate[Sample], 0, len(ranked))
	for _, p := range ranked {
		p := p
		candidates = append(candidates, resilience.Candidate[Sample]{
			Name: p.Name(),
			Call: func(ctx context.Context) (Sample, error) {
				return p.GetElevation(ctx, lat, lon)
			},
		})
	}

	out, err := resilience.Failover(ctx, s.strategy, kind, candidates)
	if err != nil {
		return nil, err
	}

	sample := out.Value
	sample.Lat, sample.Lon = lat, lon
	if sample.DataSource == "" {
		sample.DataSource = out.Provider
	}
	s.remember(ctx, key, sample)

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("elevation", sample.Elevation).
		Str("provider", out.Provider).
		Int("calls", out.Calls).
		Msg("resolved elevation")

	return &Resolution{Sample: sample, Provider: out.Provider, Calls: out.Calls}, nil
}

// GetBatchElevation resolves many points. Cached points are served first,
// the rest go to batch-capable providers in chunks; chunks that fail fall
// back to per-point lookups with bounded concurrency. Only context
// cancellation is returned as an error; per-point failures are reported in
// the result.
func (s *Service) GetBatchElevation(ctx context.Context, points []geo.Point) (*BatchResult, error) {
	resolved := make([]*Sample, len(points))
	failures := make(map[int]error)
	var calls int

	pending := make([]int, 0, len(points))
	for i, p := range points {
		if err := p.Validate(); err != nil {
			failures[i] = err
			continue
		}
		if sample, ok := s.cache.Get(geo.RoundKey(p.Lat, p.Lon, keyDecimals)); ok {
			sample.Lat, sample.Lon = p.Lat, p.Lon
			resolved[i] = &sample
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		pending, calls = s.resolveBatches(ctx, points, pending, resolved)
	}

	if len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.resolveEach(ctx, points, pending, resolved, failures)
		calls += n
		if err != nil {
			return nil, err
		}
	}

	result := &BatchResult{Calls: calls}
	for i, r := range resolved {
		if r != nil {
			result.Samples = append(result.Samples, *r)
			continue
		}
		err := failures[i]
		if err == nil {
			err = ErrNotFound
		}
		result.Failures = append(result.Failures, PointFailure{Index: i, Point: points[i], Err: err})
	}

	switch {
	case len(result.Failures) == 0:
		result.Status = BatchOK
	case len(result.Samples) == 0:
		result.Status = BatchError
	default:
		result.Status = BatchPartial
	}

	s.logger.Debug().
		Int("points", len(points)).
		Int("resolved", len(result.Samples)).
		Int("failed", len(result.Failures)).
		Int("calls", calls).
		Str("status", string(result.Status)).
		Msg("batch elevation lookup")

	return result, nil
}

// resolveBatches tries batch providers in rank order and returns the indices
// still unresolved and the number of calls made.
func (s *Service) resolveBatches(ctx context.Context, points []geo.Point, pending []int, resolved []*Sample) ([]int, int) {
	ref := points[pending[0]]
	calls := 0

	for _, p := range resilience.Rank(s.providers, s.priority, ref.Lat, ref.Lon) {
		bp, ok := p.(BatchProvider)
		if !ok || len(pending) == 0 {
			continue
		}

		size := bp.MaxBatchSize()
		if size <= 0 || size > s.maxBatch {
			size = s.maxBatch
		}

		covered := make([]int, 0, len(pending))
		var remaining []int
		for _, idx := range pending {
			if bp.Covers(points[idx].Lat, points[idx].Lon) {
				covered = append(covered, idx)
			} else {
				remaining = append(remaining, idx)
			}
		}

		for start := 0; start < len(covered); start += size {
			end := min(start+size, len(covered))
			chunk := covered[start:end]

			chunkPoints := make([]geo.Point, len(chunk))
			for i, idx := range chunk {
				chunkPoints[i] = points[idx]
			}

			begin := time.Now()
			samples, n, err := resilience.Retry(ctx, s.strategy.Retry, func(ctx context.Context) ([]Sample, error) {
				out, err := bp.GetBatchElevation(ctx, chunkPoints)
				if err == nil && len(out) != len(chunkPoints) {
					return nil, fmt.Errorf("%w: %s returned %d of %d", ErrBatchMismatch, bp.Name(), len(out), len(chunkPoints))
				}
				return out, err
			})
			calls += n
			s.metrics.RecordCall(ctx, kind, bp.Name(), time.Since(begin), n, err)

			if err != nil {
				if s.strategy.Registry != nil {
					s.strategy.Registry.RecordFailure(bp.Name(), err)
				}
				s.logger.Warn().Err(err).
					Str("provider", bp.Name()).
					Int("chunk", len(chunk)).
					Msg("batch elevation failed, falling back")
				remaining = append(remaining, chunk...)
				continue
			}
			if s.strategy.Registry != nil {
				s.strategy.Registry.RecordSuccess(bp.Name())
			}

			for i, idx := range chunk {
				sample := samples[i]
				sample.Lat, sample.Lon = points[idx].Lat, points[idx].Lon
				if sample.DataSource == "" {
					sample.DataSource = bp.Name()
				}
				s.remember(ctx, geo.RoundKey(sample.Lat, sample.Lon, keyDecimals), sample)
				resolved[idx] = &sample
			}
		}

		pending = remaining
	}

	return pending, calls
}

// resolveEach resolves points one by one with bounded concurrency.
func (s *Service) resolveEach(ctx context.Context, points []geo.Point, pending []int, resolved []*Sample, failures map[int]error) (int, error) {
	var (
		mu    sync.Mutex
		calls int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, idx := range pending {
		idx := idx
		g.Go(func() error {
			r, err := s.Resolve(gctx, points[idx].Lat, points[idx].Lon)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var all *resilience.AllProvidersFailedError
				if errors.As(err, &all) {
					for _, a := range all.Attempts {
						calls += a.Calls
					}
				}
				failures[idx] = err
				return nil
			}
			calls += r.Calls
			sample := r.Sample
			resolved[idx] = &sample
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return calls, err
	}
	return calls, nil
}

func (s *Service) fromStore(ctx context.Context, key string) (Sample, bool) {
	if s.store == nil {
		return Sample{}, false
	}
	sample, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("elevation store lookup failed")
		}
		return Sample{}, false
	}
	return *sample, true
}

func (s *Service) remember(ctx context.Context, key string, sample Sample) {
	s.cache.Set(key, sample)
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, key, sample); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("elevation store write failed")
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

// CacheStats returns cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}
