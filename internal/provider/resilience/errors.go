package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrAllProvidersFailed matches any *AllProvidersFailedError via errors.Is.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// NetworkError is a transport-level or server-side provider failure.
type NetworkError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out", e.Provider)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: server error: %s", e.Provider, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: network error", e.Provider)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on retry: timeouts,
// connection failures, and 502/503/504 responses.
func (e *NetworkError) Transient() bool {
	if errors.Is(e.Err, ErrCircuitOpen) {
		return false
	}
	if e.Timeout {
		return true
	}
	switch e.StatusCode {
	case 0:
		return e.Err != nil
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RateLimitError is returned when a provider answers HTTP 429.
// The provider is abandoned for the current request.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// DataUnavailableError is returned when a provider has no data for the requested location.
type DataUnavailableError struct {
	Provider string
	Lat      float64
	Lon      float64
	Reason   string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s: no data at %.4f,%.4f: %s", e.Provider, e.Lat, e.Lon, e.Reason)
}

// Attempt records one provider's failed turn in a failover run.
type Attempt struct {
	Provider string
	Calls    int
	Err      error
}

// AllProvidersFailedError is terminal at the data-service boundary.
type AllProvidersFailedError struct {
	Kind     string
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("all %s providers failed: no provider available", e.Kind)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Err.Error())
	}
	return fmt.Sprintf("all %s providers failed: %s", e.Kind, strings.Join(parts, "; "))
}

// Is matches ErrAllProvidersFailed.
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap returns the last provider error.
func (e *AllProvidersFailedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// IsTransient reports whether err is worth retrying against the same provider.
func IsTransient(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Transient()
	}
	return false
}

// IsRateLimited reports whether err is a *RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// classifyTransportError wraps an http.Client error into a *NetworkError.
// Context cancellation passes through untouched.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	ne := &NetworkError{Provider: provider, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		ne.Timeout = true
	}
	return ne
}
