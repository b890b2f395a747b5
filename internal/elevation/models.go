// Package elevation resolves terrain heights through ranked providers with
// caching, retries, failover and batch lookups.
package elevation

import (
	"context"
	"errors"
	"time"

	"github.com/stratotrack/stratotrack/internal/geo"
)

// Elevation errors.
var (
	ErrNotFound      = errors.New("elevation not found")
	ErrBatchMismatch = errors.New("batch size mismatch")
)

// Sample is a terrain height at a coordinate. Samples are immutable once fetched.
type Sample struct {
	Lat        float64
	Lon        float64
	Elevation  float64 // meters above sea level
	DataSource string
	Timestamp  time.Time
}

// Point returns the sample location with the elevation as altitude.
func (s Sample) Point() geo.Point {
	return geo.NewPoint(s.Lat, s.Lon).WithAlt(s.Elevation)
}

// Provider defines the interface for elevation data providers.
type Provider interface {
	Name() string
	Covers(lat, lon float64) bool
	Regional() bool
	RateLimitPerMinute() int
	GetElevation(ctx context.Context, lat, lon float64) (Sample, error)
}

// BatchProvider is a Provider that can resolve many points per call.
type BatchProvider interface {
	Provider
	MaxBatchSize() int
	GetBatchElevation(ctx context.Context, points []geo.Point) ([]Sample, error)
}

// Resolution describes how a single lookup was served.
type Resolution struct {
	Sample   Sample
	Provider string
	// Calls is the number of underlying provider calls, 0 when served from cache or store.
	Calls     int
	FromCache bool
	FromStore bool
}

// BatchStatus summarizes a batch lookup.
type BatchStatus string

const (
	BatchOK      BatchStatus = "OK"
	BatchPartial BatchStatus = "PARTIAL"
	BatchError   BatchStatus = "ERROR"
)

// PointFailure is a coordinate that could not be resolved.
type PointFailure struct {
	Index int
	Point geo.Point
	Err   error
}

// BatchResult is the outcome of a batch lookup.
type BatchResult struct {
	Status BatchStatus

	// Samples holds the resolved samples in input order; failed points are absent.
	Samples []Sample

	// Failures lists unresolved points.
	Failures []PointFailure

	// Calls is the number of underlying provider calls made.
	Calls int
}
