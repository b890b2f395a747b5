package weather

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/stratotrack/stratotrack/internal/atmosphere"
	"github.com/stratotrack/stratotrack/internal/geo"
)

// Weather errors.
var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrNoData           = errors.New("no weather data for request")
	ErrNotFound         = errors.New("weather series not found")
)

// Sample is an atmospheric state at one time and altitude.
type Sample struct {
	Timestamp time.Time

	// Altitude in meters above sea level.
	Altitude float64

	// Temperature in Celsius
	Temperature float64

	// Pressure in hPa
	Pressure float64

	// Humidity percentage (0-100)
	Humidity float64

	// Wind data. Direction is where the wind blows from, degrees [0, 360).
	WindSpeed     float64 // m/s
	WindDirection float64
	WindU         float64 // m/s, positive eastward
	WindV         float64 // m/s, positive northward

	// Quality is the provider's confidence in the sample, 0-1.
	Quality float64

	// Source is the provider that produced the sample.
	Source string
}

// WithWind returns a copy of s with speed and direction set and U/V derived from them.
func (s Sample) WithWind(speed, direction float64) Sample {
	s.WindSpeed = speed
	s.WindDirection = geo.NormalizeDegrees(direction)
	s.WindU, s.WindV = atmosphere.WindComponents(speed, s.WindDirection)
	return s
}

// WithComponents returns a copy of s with U/V set and speed and direction derived from them.
func (s Sample) WithComponents(u, v float64) Sample {
	s.WindU, s.WindV = u, v
	s.WindSpeed, s.WindDirection = atmosphere.WindFromComponents(u, v)
	return s
}

// Request describes a weather lookup.
type Request struct {
	Lat   float64
	Lon   float64
	Start time.Time
	End   time.Time

	// Model is an optional forecast model hint such as "gfs" or "icon".
	// Providers that cannot honor it ignore it.
	Model string
}

// Validate checks coordinates and the time range.
func (r Request) Validate() error {
	if err := geo.Validate(r.Lat, r.Lon); err != nil {
		return err
	}
	if r.Start.IsZero() || r.End.IsZero() || !r.End.After(r.Start) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTimeRange, r.Start, r.End)
	}
	return nil
}

// aligned widens the window to whole hours. Lookups are fetched and cached
// on the aligned window and trimmed to the caller's range when served.
func (r Request) aligned() Request {
	r.Start = r.Start.UTC().Truncate(time.Hour)
	end := r.End.UTC()
	if t := end.Truncate(time.Hour); t.Before(end) {
		end = t.Add(time.Hour)
	}
	r.End = end
	return r
}

func (r Request) cacheKey() string {
	a := r.aligned()
	return fmt.Sprintf("%s|%d|%d|%s",
		geo.RoundKey(a.Lat, a.Lon, 4),
		a.Start.Unix(),
		a.End.Unix(),
		a.Model)
}

// Series is the result of a weather lookup.
type Series struct {
	Samples []Sample

	// Provider that served the data.
	Provider string

	// Calls is the number of underlying provider calls made, 0 on a cache hit.
	Calls int

	FromCache bool

	// FromStore is set when the series came from the persistent tier.
	FromStore bool

	FetchedAt time.Time
}

// Span returns the altitude range covered by the series.
func (s *Series) Span() (minAlt, maxAlt float64) {
	for i, smp := range s.Samples {
		if i == 0 || smp.Altitude < minAlt {
			minAlt = smp.Altitude
		}
		if i == 0 || smp.Altitude > maxAlt {
			maxAlt = smp.Altitude
		}
	}
	return minAlt, maxAlt
}

// SortSamples orders samples by timestamp, then altitude.
func SortSamples(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if !samples[i].Timestamp.Equal(samples[j].Timestamp) {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		}
		return samples[i].Altitude < samples[j].Altitude
	})
}

// FilterRange keeps samples with timestamps inside [start, end].
func FilterRange(samples []Sample, start, end time.Time) []Sample {
	out := samples[:0:0]
	for _, s := range samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}
