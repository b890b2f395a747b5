// Package atmosphere holds the unit conversions and standard-atmosphere
// relations used by the weather adapters and the trajectory engine.
package atmosphere

import "math"

// Physical constants.
const (
	LapseRate           = 0.0065    // K/m
	Gravity             = 9.80665   // m/s²
	MolarMassAir        = 0.0289644 // kg/mol
	GasConstant         = 8.3144598 // J/(mol·K)
	SpecificGasConstant = 287.05    // J/(kg·K), dry air

	SeaLevelPressure    = 1013.25 // hPa
	SeaLevelTemperature = 15.0    // °C

	kelvinOffset = 273.15
)

// barometricExponent is g·M/(R·L), about 5.2559.
var barometricExponent = Gravity * MolarMassAir / (GasConstant * LapseRate)

// CelsiusToKelvin converts °C to K.
func CelsiusToKelvin(c float64) float64 { return c + kelvinOffset }

// KelvinToCelsius converts K to °C.
func KelvinToCelsius(k float64) float64 { return k - kelvinOffset }

// HPaToPa converts hectopascal to pascal.
func HPaToPa(hpa float64) float64 { return hpa * 100 }

// PaToHPa converts pascal to hectopascal.
func PaToHPa(pa float64) float64 { return pa / 100 }

// TemperatureAt returns the temperature (°C) at dh meters above a reference
// level with temperature t0 (°C), using the standard lapse rate.
func TemperatureAt(t0, dh float64) float64 {
	return t0 - LapseRate*dh
}

// PressureAt returns the pressure (hPa) at dh meters above a reference level
// with pressure p0 (hPa) and temperature t0 (°C), using the international
// barometric formula.
func PressureAt(p0, t0, dh float64) float64 {
	base := 1 - LapseRate*dh/CelsiusToKelvin(t0)
	if base < 1e-4 {
		base = 1e-4
	}
	return p0 * math.Pow(base, barometricExponent)
}

// Density returns the dry-air density (kg/m³) for a pressure in hPa and a
// temperature in °C.
func Density(pressure, temperature float64) float64 {
	tk := CelsiusToKelvin(temperature)
	if tk <= 0 {
		return 0
	}
	return HPaToPa(pressure) / (SpecificGasConstant * tk)
}

// Conditions is the state of the standard atmosphere at an altitude.
type Conditions struct {
	Altitude    float64 // m
	Temperature float64 // °C
	Pressure    float64 // hPa
	Density     float64 // kg/m³
}

type isaLayer struct {
	base      float64 // m
	lapse     float64 // K/m, negative means warming with height
	baseTempK float64
	basePa    float64
}

var isaLayers = []isaLayer{
	{base: 0, lapse: 0.0065, baseTempK: 288.15, basePa: 101325},
	{base: 11000, lapse: 0, baseTempK: 216.65, basePa: 22632.1},
	{base: 20000, lapse: -0.001, baseTempK: 216.65, basePa: 5474.89},
	{base: 32000, lapse: -0.0028, baseTempK: 228.65, basePa: 868.02},
	{base: 47000, lapse: 0, baseTempK: 270.65, basePa: 110.91},
}

// Standard returns ICAO standard atmosphere conditions at alt meters.
func Standard(alt float64) Conditions {
	if alt < 0 {
		alt = 0
	}
	layer := isaLayers[0]
	for _, l := range isaLayers {
		if alt >= l.base {
			layer = l
		}
	}

	dh := alt - layer.base
	var tk, pa float64
	if layer.lapse == 0 {
		tk = layer.baseTempK
		pa = layer.basePa * math.Exp(-Gravity*MolarMassAir*dh/(GasConstant*tk))
	} else {
		tk = layer.baseTempK - layer.lapse*dh
		pa = layer.basePa * math.Pow(tk/layer.baseTempK, Gravity*MolarMassAir/(GasConstant*layer.lapse))
	}

	c := Conditions{
		Altitude:    alt,
		Temperature: KelvinToCelsius(tk),
		Pressure:    PaToHPa(pa),
	}
	c.Density = Density(c.Pressure, c.Temperature)
	return c
}

// WindComponents converts a meteorological wind (speed in m/s, direction the
// wind blows from in degrees) to eastward u and northward v components.
func WindComponents(speed, direction float64) (u, v float64) {
	rad := direction * math.Pi / 180
	return -speed * math.Sin(rad), -speed * math.Cos(rad)
}

// WindFromComponents is the inverse of WindComponents. The direction is in [0, 360).
func WindFromComponents(u, v float64) (speed, direction float64) {
	speed = math.Hypot(u, v)
	if speed == 0 {
		return 0, 0
	}
	direction = math.Mod(math.Atan2(-u, -v)*180/math.Pi+360, 360)
	return speed, direction
}
