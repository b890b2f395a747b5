package weather

import (
	"math"

	"github.com/stratotrack/stratotrack/internal/atmosphere"
)

const (
	// humidityLapse is the relative humidity lost per meter of climb.
	humidityLapse = 0.005

	// windShearExponent is the power-law exponent for wind speed with height.
	windShearExponent = 1.0 / 7.0

	// veerStartAltitude is where directional veering begins.
	veerStartAltitude = 1000.0
	veerPerMeter      = 2.0 / 1000.0
	maxVeer           = 20.0

	minShearHeight = 10.0
)

// ExtrapolateToAltitude estimates the state at altitude from a sample taken
// at another altitude.
//
// Temperature follows the standard lapse rate and pressure the international
// barometric formula. Humidity drops 5 % per km and is clamped to [0, 100].
// Wind speed scales with the 1/7 power law, and above 1000 m the direction
// veers 2° per km, at most 20°.
func ExtrapolateToAltitude(s Sample, altitude float64) Sample {
	dh := altitude - s.Altitude
	out := s
	out.Altitude = altitude
	out.Temperature = atmosphere.TemperatureAt(s.Temperature, dh)
	out.Pressure = atmosphere.PressureAt(s.Pressure, s.Temperature, dh)
	out.Humidity = math.Max(0, math.Min(100, s.Humidity-humidityLapse*dh))

	h0 := math.Max(s.Altitude, minShearHeight)
	h1 := math.Max(altitude, minShearHeight)
	speed := s.WindSpeed * math.Pow(h1/h0, windShearExponent)

	direction := s.WindDirection + veer(altitude) - veer(s.Altitude)

	return out.WithWind(speed, direction)
}

func veer(altitude float64) float64 {
	if altitude <= veerStartAltitude {
		return 0
	}
	return math.Min(maxVeer, (altitude-veerStartAltitude)*veerPerMeter)
}
