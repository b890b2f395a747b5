package trajectory_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/trajectory"
)

// uniformWind blows from the west at a fixed speed everywhere.
type uniformWind struct {
	speed float64
}

func (w uniformWind) At(_ time.Time, altitude float64) trajectory.Conditions {
	c := trajectory.StillAir{}.At(time.Time{}, altitude)
	c.WindU = w.speed
	c.Confidence = 0.8
	return c
}

func testSpecs() trajectory.BalloonSpecs {
	return trajectory.BalloonSpecs{
		VolumeM3:      4,
		BalloonMassKg: 1.2,
		PayloadMassKg: 2,
		BurstAltitude: 30000,
		AscentRate:    5,
	}
}

func newEngine() *trajectory.Engine {
	return trajectory.NewEngine(trajectory.EngineConfig{Logger: zerolog.Nop()})
}

func TestEngine_StillAirLandsAtLaunch(t *testing.T) {
	launch := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	in := trajectory.Input{
		Launch:     geo.NewPoint(52.0, 5.0),
		LaunchTime: launch,
		Specs:      testSpecs(),
	}

	p, err := newEngine().Predict(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, 30000.0, p.Burst.Altitude)
	assert.Equal(t, 0.0, p.Landing.Altitude)
	assert.Equal(t, 100*time.Minute, p.AscentDuration)
	assert.InDelta(t, 0, p.DriftKm, 1e-9)
	assert.Equal(t, 0.0, p.WeatherConfidence)
	assert.Greater(t, p.DescentDuration, 20*time.Minute)
	assert.Less(t, p.DescentDuration, p.AscentDuration)
	assert.InDelta(t, trajectory.DefaultDescentTarget, p.FinalDescentRate, 0.5, "near sea-level target")
}

func TestEngine_TrajectoryInvariants(t *testing.T) {
	in := trajectory.Input{
		Launch:     geo.NewPoint(46.5, 7.5).WithAlt(600),
		LaunchTime: time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC),
		Specs:      testSpecs(),
	}

	p, err := newEngine().Predict(context.Background(), in, uniformWind{speed: 10})
	require.NoError(t, err)

	for _, segment := range [][]trajectory.Point{p.Ascent, p.Descent} {
		for i := 1; i < len(segment); i++ {
			assert.True(t, segment[i].Timestamp.After(segment[i-1].Timestamp), "timestamps strictly increase")
			assert.GreaterOrEqual(t, segment[i].Altitude, 0.0)
		}
	}
	for _, pt := range p.Ascent {
		assert.Equal(t, trajectory.PhaseAscent, pt.Phase)
	}
	for _, pt := range p.Descent {
		assert.Equal(t, trajectory.PhaseDescent, pt.Phase)
	}

	assert.Equal(t, p.Burst.Timestamp, p.Descent[0].Timestamp)
	assert.Equal(t, 600.0, p.Landing.Altitude, "lands at launch altitude when ground unknown")
	assert.Len(t, p.Trajectory(), len(p.Ascent)+len(p.Descent)-1)
	assert.InDelta(t, 0.8, p.WeatherConfidence, 1e-9)
	assert.InDelta(t, 10, p.MaxWindSpeed, 1e-9)
}

func TestEngine_WindDriftEastward(t *testing.T) {
	in := trajectory.Input{
		Launch:     geo.NewPoint(40, -100),
		LaunchTime: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Specs:      testSpecs(),
	}

	p, err := newEngine().Predict(context.Background(), in, uniformWind{speed: 10})
	require.NoError(t, err)

	expectedKm := 10 * p.FlightDuration().Seconds() / 1000
	assert.InDelta(t, expectedKm, p.DriftKm, expectedKm*0.02)
	assert.Greater(t, p.Landing.Lon, -100.0)
	assert.InDelta(t, 40, p.Landing.Lat, 0.01)
	assert.InDelta(t, p.DriftKm, p.PathKm, p.DriftKm*0.01)
}

func TestEngine_GroundElevation(t *testing.T) {
	ground := 1500.0
	in := trajectory.Input{
		Launch:          geo.NewPoint(39.74, -104.98).WithAlt(1600),
		LaunchTime:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Specs:           testSpecs(),
		GroundElevation: &ground,
	}

	p, err := newEngine().Predict(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, ground, p.Landing.Altitude)
	assert.Equal(t, 1600.0, p.Ascent[0].Altitude)
}

func TestEngine_InvalidInput(t *testing.T) {
	engine := newEngine()

	tests := []struct {
		name  string
		input trajectory.Input
	}{
		{name: "bad coordinates", input: trajectory.Input{Launch: geo.NewPoint(120, 0), Specs: testSpecs()}},
		{name: "zero ascent rate", input: trajectory.Input{Launch: geo.NewPoint(0, 0), Specs: func() trajectory.BalloonSpecs {
			s := testSpecs()
			s.AscentRate = 0
			return s
		}()}},
		{name: "burst below launch", input: trajectory.Input{Launch: geo.NewPoint(0, 0).WithAlt(31000), Specs: testSpecs()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Predict(context.Background(), tt.input, nil)
			assert.Error(t, err)
		})
	}
}

func TestBalloonSpecs_ValidateRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*trajectory.BalloonSpecs)
	}{
		{name: "nan burst altitude", mutate: func(s *trajectory.BalloonSpecs) { s.BurstAltitude = math.NaN() }},
		{name: "nan ascent rate", mutate: func(s *trajectory.BalloonSpecs) { s.AscentRate = math.NaN() }},
		{name: "nan payload mass", mutate: func(s *trajectory.BalloonSpecs) { s.PayloadMassKg = math.NaN() }},
		{name: "nan drag coefficient", mutate: func(s *trajectory.BalloonSpecs) { s.DragCoefficient = math.NaN() }},
		{name: "infinite parachute area", mutate: func(s *trajectory.BalloonSpecs) { s.ParachuteAreaM2 = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := testSpecs()
			tt.mutate(&specs)

			assert.ErrorIs(t, specs.Validate(), trajectory.ErrInvalidSpecs)

			_, err := newEngine().Predict(context.Background(), trajectory.Input{Launch: geo.NewPoint(0, 0), Specs: specs}, nil)
			assert.ErrorIs(t, err, trajectory.ErrInvalidSpecs)
		})
	}
}

func TestEngine_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine().Predict(ctx, trajectory.Input{Launch: geo.NewPoint(0, 0), Specs: testSpecs()}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTerminalVelocity(t *testing.T) {
	specs := testSpecs()
	assert.InDelta(t, trajectory.DefaultDescentTarget, trajectory.TerminalVelocity(specs, trajectory.SeaLevelDensity), 1e-9)

	thin := trajectory.TerminalVelocity(specs, trajectory.SeaLevelDensity/4)
	assert.InDelta(t, 2*trajectory.DefaultDescentTarget, thin, 1e-9)
	assert.False(t, math.IsInf(trajectory.TerminalVelocity(specs, 0), 0))
}

func TestEstimateFlight(t *testing.T) {
	est, err := trajectory.EstimateFlight(testSpecs(), 0)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Minute, est.Ascent)
	assert.Equal(t, est.Ascent+est.Descent, est.Total)
	assert.InDelta(t, 0.15, est.UncertaintyRatio, 1e-9, "drag coefficient defaulted")

	specs := testSpecs()
	specs.AscentRate = 2
	specs.BurstAltitude = 38000
	specs.DragCoefficient = 1.3
	est, err = trajectory.EstimateFlight(specs, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, est.UncertaintyRatio, 1e-9)

	_, err = trajectory.EstimateFlight(testSpecs(), 40000)
	assert.ErrorIs(t, err, trajectory.ErrInvalidSpecs)
}
