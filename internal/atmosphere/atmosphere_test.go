package atmosphere_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stratotrack/stratotrack/internal/atmosphere"
)

func TestUnitRoundTrips(t *testing.T) {
	for _, c := range []float64{-56.5, 0, 15, 42.3} {
		assert.InDelta(t, c, atmosphere.KelvinToCelsius(atmosphere.CelsiusToKelvin(c)), 1e-9)
	}
	for _, hpa := range []float64{10, 500, 1013.25} {
		assert.InDelta(t, hpa, atmosphere.PaToHPa(atmosphere.HPaToPa(hpa)), 1e-9)
	}
}

func TestPressureAt(t *testing.T) {
	// Standard atmosphere at 1500 m is about 845.6 hPa.
	p := atmosphere.PressureAt(atmosphere.SeaLevelPressure, atmosphere.SeaLevelTemperature, 1500)
	assert.InDelta(t, 845.6, p, 1.0)

	assert.InDelta(t, 1013.25, atmosphere.PressureAt(1013.25, 15, 0), 1e-9)
	assert.Greater(t, atmosphere.PressureAt(1013.25, 15, 100000), 0.0)
}

func TestTemperatureAt(t *testing.T) {
	assert.InDelta(t, 8.5, atmosphere.TemperatureAt(15, 1000), 1e-9)
	assert.InDelta(t, 21.5, atmosphere.TemperatureAt(15, -1000), 1e-9)
}

func TestStandard(t *testing.T) {
	tests := []struct {
		name     string
		alt      float64
		tempC    float64
		pressure float64
	}{
		{name: "sea level", alt: 0, tempC: 15, pressure: 1013.25},
		{name: "tropopause", alt: 11000, tempC: -56.5, pressure: 226.3},
		{name: "lower stratosphere", alt: 20000, tempC: -56.5, pressure: 54.7},
		{name: "upper stratosphere", alt: 32000, tempC: -44.5, pressure: 8.68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := atmosphere.Standard(tt.alt)
			assert.InDelta(t, tt.tempC, c.Temperature, 0.1)
			assert.InDelta(t, tt.pressure, c.Pressure, tt.pressure*0.01)
			assert.Greater(t, c.Density, 0.0)
		})
	}

	assert.InDelta(t, 1.225, atmosphere.Standard(0).Density, 0.005)
}

func TestWindComponents(t *testing.T) {
	// Wind from the west blows towards the east.
	u, v := atmosphere.WindComponents(10, 270)
	assert.InDelta(t, 10, u, 1e-9)
	assert.InDelta(t, 0, v, 1e-9)

	// Wind from the north blows towards the south.
	u, v = atmosphere.WindComponents(5, 0)
	assert.InDelta(t, 0, u, 1e-9)
	assert.InDelta(t, -5, v, 1e-9)

	for _, dir := range []float64{0, 45, 135, 225, 359} {
		u, v := atmosphere.WindComponents(7, dir)
		speed, back := atmosphere.WindFromComponents(u, v)
		assert.InDelta(t, 7, speed, 1e-9)
		assert.InDelta(t, dir, back, 1e-6)
	}

	speed, dir := atmosphere.WindFromComponents(0, 0)
	assert.Zero(t, speed)
	assert.Zero(t, dir)
}
