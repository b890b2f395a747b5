package resilience

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Candidate is one ranked provider for a failover run.
type Candidate[T any] struct {
	Name string
	Call func(ctx context.Context) (T, error)
}

// Outcome is the result of a successful failover run.
type Outcome[T any] struct {
	Value    T
	Provider string
	// Calls counts every underlying provider call, failed ones included.
	Calls int
	// Attempts lists the providers that failed before Provider succeeded.
	Attempts []Attempt
}

// Strategy configures Failover.
type Strategy struct {
	Retry    RetryPolicy
	Registry *Registry
	Metrics  *Metrics
	Logger   zerolog.Logger
}

// Failover tries candidates in order. Each candidate is retried per the
// strategy's policy on transient errors; rate-limited, unavailable or
// otherwise failing providers are skipped. Context cancellation stops the run
// and is returned as is. When every candidate fails the error is an
// *AllProvidersFailedError.
func Failover[T any](ctx context.Context, s Strategy, kind string, candidates []Candidate[T]) (*Outcome[T], error) {
	var (
		attempts []Attempt
		calls    int
	)

	for _, cand := range candidates {
		start := time.Now()
		value, n, err := Retry(ctx, s.Retry, cand.Call)
		calls += n
		s.Metrics.RecordCall(ctx, kind, cand.Name, time.Since(start), n, err)

		if err == nil {
			if s.Registry != nil {
				s.Registry.RecordSuccess(cand.Name)
			}
			return &Outcome[T]{Value: value, Provider: cand.Name, Calls: calls, Attempts: attempts}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if s.Registry != nil {
			s.Registry.RecordFailure(cand.Name, err)
		}
		s.Logger.Warn().
			Err(err).
			Str("kind", kind).
			Str("provider", cand.Name).
			Int("calls", n).
			Bool("rate_limited", IsRateLimited(err)).
			Msg("provider failed, trying next")

		attempts = append(attempts, Attempt{Provider: cand.Name, Calls: n, Err: err})
	}

	return nil, &AllProvidersFailedError{Kind: kind, Attempts: attempts}
}
