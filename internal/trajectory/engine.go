package trajectory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/atmosphere"
	"github.com/stratotrack/stratotrack/internal/geo"
)

// Conditions is the atmospheric state sampled by the engine.
type Conditions struct {
	// WindU and WindV are the eastward and northward wind components in m/s.
	WindU float64
	WindV float64

	// Temperature in Celsius and pressure in hPa. A non-positive pressure
	// means unknown; the standard atmosphere is used for density then.
	Temperature float64
	Pressure    float64

	// Confidence in the sampled values, 0-1.
	Confidence float64
}

// Atmosphere supplies conditions along the flight.
type Atmosphere interface {
	At(t time.Time, altitude float64) Conditions
}

// StillAir is a windless ICAO standard atmosphere.
type StillAir struct{}

// At returns standard conditions with no wind and zero confidence.
func (StillAir) At(_ time.Time, altitude float64) Conditions {
	std := atmosphere.Standard(altitude)
	return Conditions{Temperature: std.Temperature, Pressure: std.Pressure}
}

// EngineConfig holds configuration for the physics engine.
type EngineConfig struct {
	// Step is the integration time step (default: 60s).
	Step time.Duration

	// MaxSteps bounds the integration (default: 20000).
	MaxSteps int

	// Logger for engine operations.
	Logger zerolog.Logger
}

// Engine integrates balloon flights.
type Engine struct {
	step     time.Duration
	maxSteps int
	logger   zerolog.Logger
}

// NewEngine creates a new physics engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Step <= 0 {
		cfg.Step = 60 * time.Second
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 20000
	}
	return &Engine{step: cfg.Step, maxSteps: cfg.MaxSteps, logger: cfg.Logger}
}

// Predict integrates ascent at a constant rate to burst altitude, then
// descent under parachute at terminal velocity to the ground, drifting with
// the wind at every step.
func (e *Engine) Predict(ctx context.Context, in Input, atm Atmosphere) (*Prediction, error) {
	if err := in.Launch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := in.Specs.Validate(); err != nil {
		return nil, err
	}
	if atm == nil {
		atm = StillAir{}
	}

	specs := in.Specs.withDefaults()
	launchAlt := math.Max(0, in.Launch.AltOr(0))
	ground := launchAlt
	if in.GroundElevation != nil {
		ground = math.Max(0, *in.GroundElevation)
	}
	if specs.BurstAltitude <= launchAlt || specs.BurstAltitude <= ground {
		return nil, fmt.Errorf("%w: burst altitude %.0f m not above launch %.0f m and ground %.0f m",
			ErrInvalidSpecs, specs.BurstAltitude, launchAlt, ground)
	}

	launchTime := in.LaunchTime
	if launchTime.IsZero() {
		launchTime = time.Now().UTC()
	}

	f := &flight{engine: e, atm: atm, pos: geo.NewPoint(in.Launch.Lat, in.Launch.Lon), alt: launchAlt, t: launchTime}

	ascent, err := f.ascend(ctx, specs)
	if err != nil {
		return nil, err
	}
	burst := ascent[len(ascent)-1]

	descent, err := f.descend(ctx, specs, ground)
	if err != nil {
		return nil, err
	}
	landing := descent[len(descent)-1]

	p := &Prediction{
		Ascent:           ascent,
		Descent:          descent,
		Burst:            burst,
		Landing:          landing,
		AscentDuration:   burst.Timestamp.Sub(launchTime),
		DescentDuration:  landing.Timestamp.Sub(burst.Timestamp),
		DriftKm:          geo.DistanceKm(in.Launch, landing.Geo()),
		MaxWindSpeed:     f.maxWind,
		FinalDescentRate: f.lastRate,
		FinalWindSpeed:   f.lastWind,
		Specs:            specs,
	}
	if f.samples > 0 {
		p.WeatherConfidence = f.confidence / float64(f.samples)
	}
	for i := 1; i < len(p.Ascent); i++ {
		p.PathKm += geo.DistanceKm(p.Ascent[i-1].Geo(), p.Ascent[i].Geo())
	}
	for i := 1; i < len(p.Descent); i++ {
		p.PathKm += geo.DistanceKm(p.Descent[i-1].Geo(), p.Descent[i].Geo())
	}

	e.logger.Debug().
		Float64("burst_lat", burst.Lat).
		Float64("burst_lon", burst.Lon).
		Float64("landing_lat", landing.Lat).
		Float64("landing_lon", landing.Lon).
		Float64("drift_km", p.DriftKm).
		Dur("flight", p.FlightDuration()).
		Msg("trajectory integrated")

	return p, nil
}

// TerminalVelocity returns the steady descent speed in m/s for the specs at
// an air density in kg/m³.
func TerminalVelocity(specs BalloonSpecs, density float64) float64 {
	specs = specs.withDefaults()
	if density < 1e-6 {
		density = 1e-6
	}
	return math.Sqrt(2 * specs.PayloadMassKg * atmosphere.Gravity / (density * specs.DragCoefficient * specs.ParachuteAreaM2))
}

// flight is the mutable integration state of one prediction.
type flight struct {
	engine *Engine
	atm    Atmosphere
	pos    geo.Point
	alt    float64
	t      time.Time

	steps      int
	samples    int
	confidence float64
	maxWind    float64
	lastRate   float64
	lastWind   float64
}

func (f *flight) point(phase Phase) Point {
	return Point{Lat: f.pos.Lat, Lon: f.pos.Lon, Altitude: f.alt, Timestamp: f.t, Phase: phase}
}

// advance drifts with the wind sampled at the step midpoint and moves the
// clock by dt.
func (f *flight) advance(ctx context.Context, dt time.Duration, midAlt float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.steps++
	if f.steps > f.engine.maxSteps {
		return fmt.Errorf("trajectory integration exceeded %d steps", f.engine.maxSteps)
	}

	c := f.atm.At(f.t.Add(dt/2), midAlt)
	secs := dt.Seconds()
	f.pos = geo.Offset(f.pos, c.WindU*secs, c.WindV*secs)
	f.t = f.t.Add(dt)

	wind := math.Hypot(c.WindU, c.WindV)
	f.maxWind = math.Max(f.maxWind, wind)
	f.lastWind = wind
	f.confidence += c.Confidence
	f.samples++
	return nil
}

func (f *flight) ascend(ctx context.Context, specs BalloonSpecs) ([]Point, error) {
	points := []Point{f.point(PhaseAscent)}
	stepSecs := f.engine.step.Seconds()

	for f.alt < specs.BurstAltitude {
		climb := specs.AscentRate * stepSecs
		dt := f.engine.step
		if f.alt+climb >= specs.BurstAltitude {
			climb = specs.BurstAltitude - f.alt
			dt = seconds(climb / specs.AscentRate)
		}
		if dt <= 0 {
			f.alt = specs.BurstAltitude
			break
		}

		if err := f.advance(ctx, dt, f.alt+climb/2); err != nil {
			return nil, err
		}
		f.alt += climb
		if f.alt > specs.BurstAltitude || specs.BurstAltitude-f.alt < 1e-9 {
			f.alt = specs.BurstAltitude
		}
		points = append(points, f.point(PhaseAscent))
	}

	points[len(points)-1].Altitude = specs.BurstAltitude
	return points, nil
}

func (f *flight) descend(ctx context.Context, specs BalloonSpecs, ground float64) ([]Point, error) {
	points := []Point{f.point(PhaseDescent)}
	stepSecs := f.engine.step.Seconds()

	for f.alt > ground {
		c := f.atm.At(f.t, f.alt)
		rate := TerminalVelocity(specs, density(c, f.alt))

		drop := rate * stepSecs
		dt := f.engine.step
		if f.alt-drop <= ground {
			drop = f.alt - ground
			dt = seconds(drop / rate)
		}
		if dt <= 0 {
			f.alt = ground
			break
		}

		if err := f.advance(ctx, dt, f.alt-drop/2); err != nil {
			return nil, err
		}
		f.alt -= drop
		if f.alt < ground || f.alt-ground < 1e-9 {
			f.alt = ground
		}
		f.lastRate = rate
		points = append(points, f.point(PhaseDescent))
	}

	points[len(points)-1].Altitude = ground
	return points, nil
}

func density(c Conditions, altitude float64) float64 {
	if c.Pressure > 0 {
		if rho := atmosphere.Density(c.Pressure, c.Temperature); rho > 0 {
			return rho
		}
	}
	return atmosphere.Standard(altitude).Density
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
