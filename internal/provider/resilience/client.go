package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ClientConfig holds configuration for a provider HTTP client.
type ClientConfig struct {
	// Name identifies the provider for breaker naming, errors and the registry.
	Name string

	// Timeout is the per-attempt timeout.
	// Default: 10 seconds
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client on construction so its breaker
	// state shows up in provider health reports.
	Registry *Registry
}

// DefaultClientConfig returns the default provider client configuration.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        10 * time.Second,
		UserAgent:      "stratotrack/1.0",
		CircuitBreaker: &cbConfig,
	}
}

// Client performs single HTTP attempts through a circuit breaker and
// classifies failures into typed provider errors. Retries are driven by
// Retry and Failover, not by the client.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a provider HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	var cb *gobreaker.CircuitBreaker[*http.Response]
	if cfg.CircuitBreaker != nil {
		cb = NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker) //nolint:bodyclose // type param, not response
	} else {
		defaultCB := DefaultCircuitBreakerConfig(cfg.Name)
		cb = NewCircuitBreaker[*http.Response](defaultCB) //nolint:bodyclose // type param, not response
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the provider name of the client.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes one attempt of req.
//
// A 429 response becomes *RateLimitError, a 5xx response or transport failure
// becomes *NetworkError, and an open breaker becomes *NetworkError wrapping
// ErrCircuitOpen. Other responses, including 4xx, are returned to the caller,
// who must close the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, classifyTransportError(c.config.Name, err)
		}

		switch {
		case r.StatusCode == http.StatusTooManyRequests:
			drain(r)
			return nil, &RateLimitError{Provider: c.config.Name, RetryAfter: parseRetryAfter(r.Header.Get("Retry-After"))}
		case r.StatusCode >= 500:
			drain(r)
			return nil, &NetworkError{Provider: c.config.Name, StatusCode: r.StatusCode}
		}

		return r, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &NetworkError{Provider: c.config.Name, Err: ErrCircuitOpen}
		}
		if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, err
	}

	return resp, nil
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 64<<10))
	_ = r.Body.Close()
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
