package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls retries against a single provider.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls per provider, including the first.
	// Default: 3
	MaxAttempts int

	// Step is the linear backoff unit: the wait before attempt n+1 is n × Step.
	// Default: 500ms
	Step time.Duration
}

// DefaultRetryPolicy returns the default per-provider retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Step: 500 * time.Millisecond}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Step <= 0 {
		p.Step = 500 * time.Millisecond
	}
	return p
}

// LinearBackOff is a backoff.BackOff that waits attempt × Step.
type LinearBackOff struct {
	Step    time.Duration
	attempt int
}

// NextBackOff returns the next wait duration.
func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Step
}

// Reset restarts the sequence.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

// Retry calls op until it succeeds, fails with a non-transient error, the
// attempts run out, or ctx is done. It returns the number of calls made.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, int, error) {
	policy = policy.withDefaults()

	var (
		result T
		calls  int
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		calls++
		v, err := op(ctx)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = v
		return nil
	}

	bo := backoff.WithMaxRetries(&LinearBackOff{Step: policy.Step}, uint64(policy.MaxAttempts-1))
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if err != nil {
		var zero T
		return zero, calls, err
	}
	return result, calls, nil
}
