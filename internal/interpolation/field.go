package interpolation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stratotrack/stratotrack/internal/trajectory"
	"github.com/stratotrack/stratotrack/internal/weather"
)

// Value keys used for weather points.
const (
	KeyTemperature   = "temperature"
	KeyPressure      = "pressure"
	KeyHumidity      = "humidity"
	KeyWindU         = "wind_u"
	KeyWindV         = "wind_v"
	KeyWindSpeed     = "wind_speed"
	KeyWindDirection = "wind_direction"
	KeyQuality       = "quality"
)

const (
	// defaultExtrapolationGap is the vertical distance beyond which a profile
	// is extrapolated instead of clamped to its nearest level.
	defaultExtrapolationGap = 500.0

	// profileNeighbours is how many profiles on each side of the target time
	// are offered to the interpolator.
	profileNeighbours = 3

	nearestFallbackConfidence = 0.1

	extrapolatedQuality = 0.7

	// tropopauseTemperature floors extrapolated temperatures, in °C.
	tropopauseTemperature = -56.5
)

// profile is one timestamp's samples ordered by altitude.
type profile struct {
	at      time.Time
	samples []weather.Sample
}

// FieldConfig holds configuration for a weather field.
type FieldConfig struct {
	// Method used for temporal interpolation (default: linear).
	Method Method

	// ExtrapolationGap is the vertical distance beyond the sampled levels at
	// which a profile is extrapolated with the standard atmosphere (default: 500 m).
	ExtrapolationGap float64
}

// WeatherField adapts weather samples to the trajectory engine. Each lookup
// first resolves every nearby profile to the target altitude, then
// interpolates those in time. A field is used by one prediction at a time
// and is not safe for concurrent use.
type WeatherField struct {
	interp   *Interpolator
	method   Method
	gap      float64
	profiles []profile

	lookups    int
	confidence float64
	fallbacks  int
}

// NewWeatherField builds a field from samples.
func NewWeatherField(samples []weather.Sample, interp *Interpolator, cfg FieldConfig) (*WeatherField, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no weather samples", ErrInsufficientData)
	}
	if cfg.Method == "" {
		cfg.Method = Linear
	}
	if cfg.ExtrapolationGap <= 0 {
		cfg.ExtrapolationGap = defaultExtrapolationGap
	}

	sorted := append([]weather.Sample(nil), samples...)
	weather.SortSamples(sorted)

	var profiles []profile
	for _, s := range sorted {
		if n := len(profiles); n > 0 && profiles[n-1].at.Equal(s.Timestamp) {
			profiles[n-1].samples = append(profiles[n-1].samples, s)
			continue
		}
		profiles = append(profiles, profile{at: s.Timestamp, samples: []weather.Sample{s}})
	}

	return &WeatherField{interp: interp, method: cfg.Method, gap: cfg.ExtrapolationGap, profiles: profiles}, nil
}

// At returns the conditions at a time and altitude.
func (f *WeatherField) At(t time.Time, altitude float64) trajectory.Conditions {
	idx := sort.Search(len(f.profiles), func(i int) bool { return !f.profiles[i].at.Before(t) })
	lo := max(0, idx-profileNeighbours)
	hi := min(len(f.profiles), idx+profileNeighbours)

	points := make([]Point, 0, hi-lo)
	for _, p := range f.profiles[lo:hi] {
		points = append(points, toPoint(f.atAltitude(p, altitude)))
	}

	res := f.interp.Interpolate(t, altitude, points, f.method)
	if res.Values == nil {
		// Nothing within tolerance: use the closest profile at low confidence.
		nearest := f.profiles[min(idx, len(f.profiles)-1)]
		if idx > 0 && idx < len(f.profiles) && t.Sub(f.profiles[idx-1].at) < f.profiles[idx].at.Sub(t) {
			nearest = f.profiles[idx-1]
		}
		res = Result{Values: toPoint(f.atAltitude(nearest, altitude)).Values, Confidence: nearestFallbackConfidence}
		f.fallbacks++
	}

	quality := res.Values[KeyQuality]
	if quality <= 0 {
		quality = 1
	}
	conf := math.Max(0, math.Min(1, res.Confidence*quality))

	f.lookups++
	f.confidence += conf

	return trajectory.Conditions{
		WindU:       res.Values[KeyWindU],
		WindV:       res.Values[KeyWindV],
		Temperature: res.Values[KeyTemperature],
		Pressure:    res.Values[KeyPressure],
		Confidence:  conf,
	}
}

// MeanConfidence is the average confidence of all lookups so far.
func (f *WeatherField) MeanConfidence() float64 {
	if f.lookups == 0 {
		return 0
	}
	return f.confidence / float64(f.lookups)
}

// Fallbacks counts lookups with no sample in tolerance.
func (f *WeatherField) Fallbacks() int {
	return f.fallbacks
}

// atAltitude resolves a profile to one sample at altitude: linear between
// the bracketing levels, the nearest level when slightly outside, and the
// standard-atmosphere extrapolation when further away.
func (f *WeatherField) atAltitude(p profile, altitude float64) weather.Sample {
	levels := p.samples
	first, last := levels[0], levels[len(levels)-1]

	switch {
	case altitude <= first.Altitude:
		return f.beyond(first, altitude)
	case altitude >= last.Altitude:
		return f.beyond(last, altitude)
	}

	i := sort.Search(len(levels), func(i int) bool { return levels[i].Altitude >= altitude })
	below, above := levels[i-1], levels[i]
	ratio := 0.0
	if span := above.Altitude - below.Altitude; span > 0 {
		ratio = (altitude - below.Altitude) / span
	}

	out := weather.Sample{
		Timestamp:   p.at,
		Altitude:    altitude,
		Temperature: Lerp(below.Temperature, above.Temperature, ratio),
		Pressure:    Lerp(below.Pressure, above.Pressure, ratio),
		Humidity:    Lerp(below.Humidity, above.Humidity, ratio),
		Quality:     math.Min(below.Quality, above.Quality),
		Source:      below.Source,
	}
	return out.WithComponents(Lerp(below.WindU, above.WindU, ratio), Lerp(below.WindV, above.WindV, ratio))
}

func (f *WeatherField) beyond(level weather.Sample, altitude float64) weather.Sample {
	if math.Abs(altitude-level.Altitude) <= f.gap {
		out := level
		out.Altitude = altitude
		return out
	}
	out := weather.ExtrapolateToAltitude(level, altitude)
	out.Temperature = math.Max(out.Temperature, tropopauseTemperature)
	out.Quality = level.Quality * extrapolatedQuality
	return out
}

func toPoint(s weather.Sample) Point {
	return Point{
		Timestamp: s.Timestamp,
		Altitude:  s.Altitude,
		Values: map[string]float64{
			KeyTemperature:   s.Temperature,
			KeyPressure:      s.Pressure,
			KeyHumidity:      s.Humidity,
			KeyWindU:         s.WindU,
			KeyWindV:         s.WindV,
			KeyWindSpeed:     s.WindSpeed,
			KeyWindDirection: s.WindDirection,
			KeyQuality:       s.Quality,
		},
	}
}
