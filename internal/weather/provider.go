package weather

import "context"

// Provider defines the interface for weather data providers.
type Provider interface {
	// Name returns the provider name for logging and ranking.
	Name() string

	// Covers reports whether the provider can serve the location.
	Covers(lat, lon float64) bool

	// Regional reports whether the provider serves a specific region and
	// should be preferred inside it.
	Regional() bool

	// RateLimitPerMinute is the provider's self-reported soft limit.
	RateLimitPerMinute() int

	// GetWeather fetches samples for the request. Entries with missing
	// fields are skipped by the adapter.
	GetWeather(ctx context.Context, req Request) ([]Sample, error)
}
