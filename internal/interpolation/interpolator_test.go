package interpolation_test

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/interpolation"
	"github.com/stratotrack/stratotrack/internal/weather"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newInterpolator() *interpolation.Interpolator {
	return interpolation.New(interpolation.Config{Logger: zerolog.Nop()})
}

func point(offset time.Duration, alt float64, temp float64) interpolation.Point {
	return interpolation.Point{
		Timestamp: t0.Add(offset),
		Altitude:  alt,
		Values:    map[string]float64{"temperature": temp},
	}
}

func TestLerp(t *testing.T) {
	tests := []struct {
		name     string
		a, b, r  float64
		expected float64
	}{
		{"start", 10, 20, 0, 10},
		{"middle", 10, 20, 0.5, 15},
		{"end", 10, 20, 1, 20},
		{"ratio above one is clamped", 10, 20, 1.5, 20},
		{"ratio below zero is clamped", 10, 20, -0.5, 10},
		{"nan ratio", 10, 20, math.NaN(), 10},
		{"nan a", math.NaN(), 20, 0.3, 20},
		{"nan b", 10, math.NaN(), 0.3, 10},
		{"both nan", math.NaN(), math.NaN(), 0.3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, interpolation.Lerp(tt.a, tt.b, tt.r), 1e-9)
		})
	}
}

func TestLerp_StaysWithinOperands(t *testing.T) {
	values := []float64{-1e6, -3.3, 0, 0.1, 7, 1e9}
	for _, a := range values {
		for _, b := range values {
			for r := -0.5; r <= 1.5; r += 0.05 {
				got := interpolation.Lerp(a, b, r)
				assert.GreaterOrEqual(t, got, math.Min(a, b))
				assert.LessOrEqual(t, got, math.Max(a, b))
			}
		}
	}
}

func TestLerpAngle(t *testing.T) {
	assert.InDelta(t, 0, interpolation.LerpAngle(350, 10, 0.5), 1e-9, "crosses north")
	assert.InDelta(t, 355, interpolation.LerpAngle(350, 10, 0.25), 1e-9)
	assert.InDelta(t, 90, interpolation.LerpAngle(45, 135, 0.5), 1e-9)
	assert.InDelta(t, 270, interpolation.LerpAngle(270, math.NaN(), 0.5), 1e-9)

	for a := -720.0; a <= 720; a += 37 {
		for b := -720.0; b <= 720; b += 53 {
			for _, r := range []float64{0, 0.3, 0.5, 1, 2} {
				got := interpolation.LerpAngle(a, b, r)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.Less(t, got, 360.0)
			}
		}
	}
}

func TestInterpolate_ExactMatch(t *testing.T) {
	res := newInterpolator().Interpolate(t0.Add(30*time.Second), 1005, []interpolation.Point{
		point(0, 1000, 12),
		point(time.Hour, 1000, 18),
	}, interpolation.Linear)

	require.NoError(t, res.Err)
	assert.Equal(t, interpolation.MethodExact, res.Method)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, 12.0, res.Values["temperature"])
}

func TestInterpolate_Linear(t *testing.T) {
	res := newInterpolator().Interpolate(t0.Add(15*time.Minute), 1000, []interpolation.Point{
		point(0, 1000, 12),
		point(time.Hour, 1000, 16),
	}, interpolation.Linear)

	require.NoError(t, res.Err)
	assert.Equal(t, interpolation.MethodLinear, res.Method)
	assert.InDelta(t, 13, res.Values["temperature"], 1e-9)
	assert.Equal(t, 2, res.Used)

	// Widest gap is 45 minutes.
	assert.InDelta(t, 1-45.0/(24*60), res.Confidence, 1e-9)
}

func TestInterpolate_CircularField(t *testing.T) {
	points := []interpolation.Point{
		{Timestamp: t0, Altitude: 0, Values: map[string]float64{"wind_direction": 340}},
		{Timestamp: t0.Add(time.Hour), Altitude: 0, Values: map[string]float64{"wind_direction": 20}},
	}
	res := newInterpolator().Interpolate(t0.Add(30*time.Minute), 0, points, interpolation.Linear)
	assert.InDelta(t, 0, res.Values["wind_direction"], 1e-9)
}

func TestInterpolate_Extrapolation(t *testing.T) {
	res := newInterpolator().Interpolate(t0.Add(2*time.Hour), 1000, []interpolation.Point{
		point(0, 1000, 12),
		point(time.Hour, 1000, 16),
	}, interpolation.Linear)

	assert.Equal(t, interpolation.MethodExtrapolation, res.Method)
	assert.Equal(t, 0.3, res.Confidence)
	assert.Equal(t, 16.0, res.Values["temperature"])
	assert.NotEmpty(t, res.Warnings)
}

func TestInterpolate_NothingWithinTolerance(t *testing.T) {
	res := newInterpolator().Interpolate(t0, 1000, []interpolation.Point{
		point(-5*time.Hour, 1000, 12),
		point(0, 3000, 16),
	}, interpolation.Linear)

	assert.ErrorIs(t, res.Err, interpolation.ErrInsufficientData)
	assert.Equal(t, interpolation.MethodNone, res.Method)
	assert.Nil(t, res.Values)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, 2, res.Discarded)
}

func TestInterpolate_CubicFallsBackWithFewPoints(t *testing.T) {
	points := []interpolation.Point{
		point(0, 1000, 12),
		point(time.Hour, 1000, 16),
	}
	in := newInterpolator()
	lin := in.Interpolate(t0.Add(20*time.Minute), 1000, points, interpolation.Linear)
	cub := in.Interpolate(t0.Add(20*time.Minute), 1000, points, interpolation.Cubic)

	assert.Equal(t, interpolation.MethodLinearFallback, cub.Method)
	assert.LessOrEqual(t, cub.Confidence, lin.Confidence*0.9+1e-12)
	assert.Equal(t, lin.Values, cub.Values)
}

func TestInterpolate_CubicAndSpline(t *testing.T) {
	var points []interpolation.Point
	for i := -3; i <= 3; i++ {
		off := time.Duration(i) * 30 * time.Minute
		points = append(points, point(off+10*time.Minute, 1000, 10+float64(i)))
	}
	in := newInterpolator()
	target := t0.Add(25 * time.Minute)

	cub := in.Interpolate(target, 1000, points, interpolation.Cubic)
	require.NoError(t, cub.Err)
	assert.Equal(t, interpolation.MethodCubic, cub.Method)
	assert.InDelta(t, 10.5, cub.Values["temperature"], 0.5)
	assert.LessOrEqual(t, cub.Confidence, 1.0)

	spl := in.Interpolate(target, 1000, points, interpolation.Spline)
	require.NoError(t, spl.Err)
	assert.Equal(t, interpolation.MethodSpline, spl.Method)
	assert.InDelta(t, 10.5, spl.Values["temperature"], 0.5)
	assert.LessOrEqual(t, spl.Confidence, 1.0)
}

func TestInterpolate_SmoothingKeepsExtrapolation(t *testing.T) {
	var points []interpolation.Point
	for i := 0; i < 6; i++ {
		points = append(points, point(time.Duration(i)*20*time.Minute, 1000, 10+float64(i)))
	}
	target := t0.Add(110 * time.Minute)
	in := newInterpolator()

	for _, method := range []interpolation.Method{interpolation.Linear, interpolation.Cubic, interpolation.Spline} {
		t.Run(string(method), func(t *testing.T) {
			res := in.Interpolate(target, 1000, points, method)

			assert.Equal(t, interpolation.MethodExtrapolation, res.Method)
			assert.Equal(t, 0.3, res.Confidence)
			assert.Equal(t, 15.0, res.Values["temperature"], "nearest sample, not a blend")
		})
	}
}

func TestInterpolate_SplineWithFewPointsUsesCubic(t *testing.T) {
	var points []interpolation.Point
	for i := 0; i < 4; i++ {
		points = append(points, point(time.Duration(i)*time.Hour-90*time.Minute, 1000, float64(i)))
	}
	in := newInterpolator()
	cub := in.Interpolate(t0.Add(-10*time.Minute), 1000, points, interpolation.Cubic)
	spl := in.Interpolate(t0.Add(-10*time.Minute), 1000, points, interpolation.Spline)

	assert.Equal(t, interpolation.MethodCubic, spl.Method)
	assert.InDelta(t, cub.Confidence*0.95, spl.Confidence, 1e-9)
}

func profileSamples(at time.Time, windU float64) []weather.Sample {
	var out []weather.Sample
	for _, alt := range []float64{0, 1500, 3000, 5500} {
		s := weather.Sample{
			Timestamp:   at,
			Altitude:    alt,
			Temperature: 15 - 0.0065*alt,
			Pressure:    1013.25 * math.Pow(1-0.0065*alt/288.15, 5.255),
			Humidity:    60,
			Quality:     0.9,
			Source:      "test",
		}
		out = append(out, s.WithComponents(windU+alt/1000, 0))
	}
	return out
}

func TestWeatherField_VerticalAndTemporal(t *testing.T) {
	samples := append(profileSamples(t0, 4), profileSamples(t0.Add(time.Hour), 8)...)
	field, err := interpolation.NewWeatherField(samples, newInterpolator(), interpolation.FieldConfig{})
	require.NoError(t, err)

	c := field.At(t0.Add(30*time.Minute), 2250)
	// Halfway between 1500 and 3000 m, halfway between 4 and 8 m/s base wind.
	assert.InDelta(t, 6+2.25, c.WindU, 1e-6)
	assert.InDelta(t, 0, c.WindV, 1e-6)
	assert.InDelta(t, 15-0.0065*2250, c.Temperature, 0.01)
	assert.Greater(t, c.Confidence, 0.8)
	assert.LessOrEqual(t, c.Confidence, 0.9)
	assert.Zero(t, field.Fallbacks())
}

func TestWeatherField_ExtrapolatesAboveProfile(t *testing.T) {
	field, err := interpolation.NewWeatherField(profileSamples(t0, 4), newInterpolator(), interpolation.FieldConfig{})
	require.NoError(t, err)

	near := field.At(t0, 5800)
	far := field.At(t0, 20000)

	assert.InDelta(t, 9.5, near.WindU, 1e-6, "within the gap the top level is reused")
	assert.Less(t, far.Confidence, near.Confidence)
	assert.GreaterOrEqual(t, far.Temperature, -56.5)
	assert.Less(t, far.Pressure, near.Pressure)
}

func TestWeatherField_NearestProfileWhenOutOfTolerance(t *testing.T) {
	field, err := interpolation.NewWeatherField(profileSamples(t0, 4), newInterpolator(), interpolation.FieldConfig{})
	require.NoError(t, err)

	c := field.At(t0.Add(10*time.Hour), 1500)
	assert.InDelta(t, 5.5, c.WindU, 1e-6)
	assert.InDelta(t, 0.09, c.Confidence, 1e-9)
	assert.Equal(t, 1, field.Fallbacks())
	assert.InDelta(t, 0.09, field.MeanConfidence(), 1e-9)
}

func TestNewWeatherField_NoSamples(t *testing.T) {
	_, err := interpolation.NewWeatherField(nil, newInterpolator(), interpolation.FieldConfig{})
	assert.ErrorIs(t, err, interpolation.ErrInsufficientData)
}
