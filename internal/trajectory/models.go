// Package trajectory integrates balloon ascent, burst and descent through a
// wind field.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stratotrack/stratotrack/internal/atmosphere"
	"github.com/stratotrack/stratotrack/internal/geo"
)

// Trajectory errors.
var (
	ErrInvalidSpecs = errors.New("invalid balloon specs")
	ErrInvalidInput = errors.New("invalid prediction input")
)

// Defaults used when specs leave a field unset.
const (
	DefaultDragCoefficient = 1.5
	DefaultDescentTarget   = 5.0 // m/s at sea level
	SeaLevelDensity        = 1.225
)

// Phase is a flight phase.
type Phase string

const (
	PhaseAscent  Phase = "ascent"
	PhaseDescent Phase = "descent"
)

// BalloonSpecs describes the flight train.
type BalloonSpecs struct {
	// VolumeM3 is the lift gas volume at launch.
	VolumeM3 float64 `json:"volume_m3"`

	BalloonMassKg float64 `json:"balloon_mass_kg"`
	PayloadMassKg float64 `json:"payload_mass_kg"`

	// BurstAltitude is the altitude in meters at which the envelope ruptures.
	BurstAltitude float64 `json:"burst_altitude_m"`

	// AscentRate is the constant vertical speed in m/s.
	AscentRate float64 `json:"ascent_rate_ms"`

	// DragCoefficient of the descent parachute; 0 means DefaultDragCoefficient.
	DragCoefficient float64 `json:"drag_coefficient,omitempty"`

	// ParachuteAreaM2 is the canopy area; 0 derives it from a 5 m/s sea-level descent.
	ParachuteAreaM2 float64 `json:"parachute_area_m2,omitempty"`
}

// Validate checks the specs for physical plausibility.
func (s BalloonSpecs) Validate() error {
	for _, v := range []float64{s.VolumeM3, s.BalloonMassKg, s.PayloadMassKg, s.BurstAltitude,
		s.AscentRate, s.DragCoefficient, s.ParachuteAreaM2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: values must be finite", ErrInvalidSpecs)
		}
	}

	switch {
	case s.PayloadMassKg <= 0:
		return fmt.Errorf("%w: payload mass must be positive", ErrInvalidSpecs)
	case s.BalloonMassKg < 0:
		return fmt.Errorf("%w: balloon mass must not be negative", ErrInvalidSpecs)
	case s.VolumeM3 < 0:
		return fmt.Errorf("%w: volume must not be negative", ErrInvalidSpecs)
	case s.BurstAltitude <= 0 || s.BurstAltitude > 60000:
		return fmt.Errorf("%w: burst altitude %.0f m out of range", ErrInvalidSpecs, s.BurstAltitude)
	case s.AscentRate <= 0 || s.AscentRate > 20:
		return fmt.Errorf("%w: ascent rate %.2f m/s out of range", ErrInvalidSpecs, s.AscentRate)
	case s.DragCoefficient < 0:
		return fmt.Errorf("%w: drag coefficient must not be negative", ErrInvalidSpecs)
	case s.ParachuteAreaM2 < 0:
		return fmt.Errorf("%w: parachute area must not be negative", ErrInvalidSpecs)
	}
	return nil
}

// DragDefaulted reports whether the drag coefficient falls back to the default.
func (s BalloonSpecs) DragDefaulted() bool {
	return s.DragCoefficient == 0
}

// withDefaults fills drag coefficient and parachute area.
func (s BalloonSpecs) withDefaults() BalloonSpecs {
	if s.DragCoefficient == 0 {
		s.DragCoefficient = DefaultDragCoefficient
	}
	if s.ParachuteAreaM2 == 0 {
		s.ParachuteAreaM2 = 2 * s.PayloadMassKg * atmosphere.Gravity / (SeaLevelDensity * s.DragCoefficient * DefaultDescentTarget * DefaultDescentTarget)
	}
	return s
}

// Point is one integration step along the flight.
type Point struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Altitude  float64   `json:"altitude_m"`
	Timestamp time.Time `json:"timestamp"`
	Phase     Phase     `json:"phase"`
}

// Geo returns the point as a geo.Point with altitude.
func (p Point) Geo() geo.Point {
	return geo.NewPoint(p.Lat, p.Lon).WithAlt(p.Altitude)
}

// Input is a physics prediction request.
type Input struct {
	Launch     geo.Point
	LaunchTime time.Time
	Specs      BalloonSpecs

	// GroundElevation is the landing ground height. Nil uses the launch altitude.
	GroundElevation *float64
}

// Prediction is the physics-only flight.
type Prediction struct {
	Ascent  []Point
	Descent []Point
	Burst   Point
	Landing Point

	AscentDuration  time.Duration
	DescentDuration time.Duration

	// DriftKm is the great-circle distance from launch to landing.
	DriftKm float64

	// PathKm is the horizontal length travelled.
	PathKm float64

	MaxWindSpeed float64

	// FinalDescentRate and FinalWindSpeed describe the last descent step, in m/s.
	FinalDescentRate float64
	FinalWindSpeed   float64

	// WeatherConfidence is the mean confidence of the wind field along the path.
	WeatherConfidence float64

	// Specs are the effective specs after defaults.
	Specs BalloonSpecs
}

// FlightDuration is the total time from launch to landing.
func (p *Prediction) FlightDuration() time.Duration {
	return p.AscentDuration + p.DescentDuration
}

// Trajectory returns ascent and descent as one path with the burst point once.
func (p *Prediction) Trajectory() []Point {
	out := make([]Point, 0, len(p.Ascent)+len(p.Descent))
	out = append(out, p.Ascent...)
	if len(p.Descent) > 1 {
		out = append(out, p.Descent[1:]...)
	}
	return out
}
