package weather_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stratotrack/stratotrack/internal/weather"
)

func TestSample_WindComponents(t *testing.T) {
	s := weather.Sample{}.WithWind(10, 450)
	assert.InDelta(t, 90, s.WindDirection, 1e-9)
	assert.InDelta(t, -10, s.WindU, 1e-9, "easterly wind blows west")
	assert.InDelta(t, 0, s.WindV, 1e-9)

	back := weather.Sample{}.WithComponents(s.WindU, s.WindV)
	assert.InDelta(t, 10, back.WindSpeed, 1e-9)
	assert.InDelta(t, 90, back.WindDirection, 1e-9)
}

func TestExtrapolateToAltitude(t *testing.T) {
	base := weather.Sample{
		Timestamp:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Altitude:    0,
		Temperature: 15,
		Pressure:    1013.25,
		Humidity:    60,
	}.WithWind(5, 270)

	up := weather.ExtrapolateToAltitude(base, 3000)

	assert.Equal(t, 3000.0, up.Altitude)
	assert.InDelta(t, -4.5, up.Temperature, 1e-9)
	assert.InDelta(t, 701.1, up.Pressure, 1.0)
	assert.InDelta(t, 45, up.Humidity, 1e-9)
	assert.InDelta(t, 5*math.Pow(300, 1.0/7.0), up.WindSpeed, 1e-9)
	assert.InDelta(t, 274, up.WindDirection, 1e-9, "veers 2° per km above 1 km")
	assert.Equal(t, base.Timestamp, up.Timestamp)

	u, v := up.WindU, up.WindV
	assert.InDelta(t, up.WindSpeed, math.Hypot(u, v), 1e-9)
}

func TestExtrapolateToAltitude_Clamps(t *testing.T) {
	base := weather.Sample{Altitude: 5000, Temperature: -17, Pressure: 540, Humidity: 10}.WithWind(20, 355)

	high := weather.ExtrapolateToAltitude(base, 30000)
	assert.Equal(t, 0.0, high.Humidity)
	assert.GreaterOrEqual(t, high.WindDirection, 0.0)
	assert.Less(t, high.WindDirection, 360.0)
	assert.Greater(t, high.Pressure, 0.0)

	low := weather.ExtrapolateToAltitude(weather.Sample{Altitude: 1000, Humidity: 99}.WithWind(5, 90), -5000)
	assert.Equal(t, 100.0, low.Humidity)
}

func TestFilterRange(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	samples := []weather.Sample{
		{Timestamp: t0.Add(-time.Hour)},
		{Timestamp: t0},
		{Timestamp: t0.Add(time.Hour)},
		{Timestamp: t0.Add(3 * time.Hour)},
	}

	got := weather.FilterRange(samples, t0, t0.Add(time.Hour))
	assert.Len(t, got, 2)
}
