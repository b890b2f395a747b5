// Package geo provides coordinate primitives shared by the data services,
// the terrain analyzer and the trajectory engine.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

// ErrInvalidCoordinates is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Point is a geographic position with an optional altitude in meters.
type Point struct {
	Lat float64  `json:"lat"`
	Lon float64  `json:"lon"`
	Alt *float64 `json:"alt,omitempty"`
}

// NewPoint creates a Point without altitude.
func NewPoint(lat, lon float64) Point {
	return Point{Lat: lat, Lon: lon}
}

// WithAlt returns a copy of p at the given altitude.
func (p Point) WithAlt(alt float64) Point {
	p.Alt = &alt
	return p
}

// AltOr returns the altitude of p, or def when it is unset.
func (p Point) AltOr(def float64) float64 {
	if p.Alt == nil {
		return def
	}
	return *p.Alt
}

// Orb converts p to an orb point (lon, lat order).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Validate checks that p has in-range coordinates.
func (p Point) Validate() error {
	return Validate(p.Lat, p.Lon)
}

// Validate checks latitude in [-90, 90] and longitude in [-180, 180].
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// RoundKey returns a cache key for the coordinate rounded to the given number of decimals.
func RoundKey(lat, lon float64, decimals int) string {
	return fmt.Sprintf("%.*f:%.*f", decimals, lat, decimals, lon)
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb())
}

// DistanceKm returns the great-circle distance between a and b in kilometers.
func DistanceKm(a, b Point) float64 {
	return DistanceMeters(a, b) / 1000
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	return NormalizeDegrees(orbgeo.Bearing(a.Orb(), b.Orb()))
}

// Offset moves p by east and north displacements in meters.
// It uses a local equirectangular approximation, which is accurate for the
// short steps produced by trajectory integration.
func Offset(p Point, east, north float64) Point {
	latRad := p.Lat * math.Pi / 180
	dLat := north / EarthRadius * 180 / math.Pi
	cosLat := math.Cos(latRad)
	if math.Abs(cosLat) < 1e-9 {
		cosLat = 1e-9
	}
	dLon := east / (EarthRadius * cosLat) * 180 / math.Pi

	out := p
	out.Lat = clampLat(p.Lat + dLat)
	out.Lon = wrapLon(p.Lon + dLon)
	return out
}

// Destination returns the point reached from p after travelling distance
// meters along the given bearing on a sphere.
func Destination(p Point, bearingDeg, distance float64) Point {
	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lon * math.Pi / 180
	brg := bearingDeg * math.Pi / 180
	d := distance / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	out := p
	out.Lat = lat2 * 180 / math.Pi
	out.Lon = wrapLon(lon2 * 180 / math.Pi)
	return out
}

// Grid returns points on a square grid centred on center, spaced spacing
// meters apart and limited to radius meters from the centre.
func Grid(center Point, radius, spacing float64) []Point {
	if radius <= 0 || spacing <= 0 {
		return []Point{center}
	}
	steps := int(math.Floor(radius / spacing))
	points := make([]Point, 0, (2*steps+1)*(2*steps+1))
	for i := -steps; i <= steps; i++ {
		for j := -steps; j <= steps; j++ {
			east := float64(j) * spacing
			north := float64(i) * spacing
			if math.Hypot(east, north) > radius+1e-6 {
				continue
			}
			points = append(points, Offset(NewPoint(center.Lat, center.Lon), east, north))
		}
	}
	return points
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

func wrapLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
