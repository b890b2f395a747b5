// Package terrain derives slope, roughness, obstacles and landing difficulty
// from elevation samples.
package terrain

import (
	"errors"

	"github.com/stratotrack/stratotrack/internal/geo"
)

// Terrain errors.
var (
	ErrNoSamples     = errors.New("no elevation samples")
	ErrInvalidSample = errors.New("invalid elevation sample")
)

// SlopeClass is a steepness class.
type SlopeClass string

const (
	SlopeFlat   SlopeClass = "flat"
	SlopeGentle SlopeClass = "gentle"
	SlopeSteep  SlopeClass = "steep"
	SlopeCliff  SlopeClass = "cliff"
)

// ClassifySlope maps a slope in degrees to its class.
func ClassifySlope(deg float64) SlopeClass {
	switch {
	case deg < 5:
		return SlopeFlat
	case deg < 15:
		return SlopeGentle
	case deg < 35:
		return SlopeSteep
	default:
		return SlopeCliff
	}
}

// ObstacleType is the kind of terrain feature an obstacle is.
type ObstacleType string

const (
	Mountain ObstacleType = "mountain"
	Hill     ObstacleType = "hill"
	Ridge    ObstacleType = "ridge"
	Building ObstacleType = "building"
	Tower    ObstacleType = "tower"
)

// Impact is how much an obstacle threatens a flight.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactMajor    Impact = "major"
	ImpactBlocking Impact = "blocking"
)

// ImpactFor maps an obstacle height above its surroundings to an impact tier.
func ImpactFor(height float64) Impact {
	switch {
	case height >= 100:
		return ImpactBlocking
	case height >= 50:
		return ImpactMajor
	case height >= 20:
		return ImpactModerate
	default:
		return ImpactMinor
	}
}

// Complexity is the overall terrain complexity class.
type Complexity string

const (
	ComplexityFlat        Complexity = "flat"
	ComplexityGentle      Complexity = "gentle"
	ComplexityModerate    Complexity = "moderate"
	ComplexityMountainous Complexity = "mountainous"
	ComplexityExtreme     Complexity = "extreme"
)

// Complexities lists the classes from least to most complex.
var Complexities = []Complexity{
	ComplexityFlat, ComplexityGentle, ComplexityModerate, ComplexityMountainous, ComplexityExtreme,
}

// ClassifyComplexity maps elevation variation (m) and mean roughness to a class.
func ClassifyComplexity(variation, roughness float64) Complexity {
	switch {
	case variation > 2000 && roughness > 0.8:
		return ComplexityExtreme
	case variation > 1000 || roughness > 0.6:
		return ComplexityMountainous
	case variation > 300 || roughness > 0.4:
		return ComplexityModerate
	case variation > 50 || roughness > 0.2:
		return ComplexityGentle
	default:
		return ComplexityFlat
	}
}

// Suitability is a landing-site tier.
type Suitability string

const (
	Excellent Suitability = "excellent"
	Good      Suitability = "good"
	Fair      Suitability = "fair"
	Poor      Suitability = "poor"
)

// SuitabilityFor maps a 1-10 difficulty to a tier.
func SuitabilityFor(difficulty int) Suitability {
	switch {
	case difficulty <= 3:
		return Excellent
	case difficulty <= 5:
		return Good
	case difficulty <= 7:
		return Fair
	default:
		return Poor
	}
}

// Point is an elevation sample with derived terrain attributes.
type Point struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`

	// Slope is the steepest gradient to a neighbour, in degrees.
	Slope      float64    `json:"slope"`
	SlopeClass SlopeClass `json:"slope_class"`

	// Roughness and Accessibility are in [0, 1].
	Roughness     float64 `json:"roughness"`
	Accessibility float64 `json:"accessibility"`
}

// Geo returns the point as a coordinate with its elevation.
func (p Point) Geo() geo.Point {
	return geo.NewPoint(p.Lat, p.Lon).WithAlt(p.Elevation)
}

// Obstacle is a local peak that stands out from its neighbourhood.
type Obstacle struct {
	Lat       float64      `json:"lat"`
	Lon       float64      `json:"lon"`
	Elevation float64      `json:"elevation"`
	Height    float64      `json:"height"`
	Type      ObstacleType `json:"type"`

	// RequiredClearance is the altitude a balloon must stay above.
	RequiredClearance float64 `json:"required_clearance"`
	Impact            Impact  `json:"impact"`
}

// Geo returns the obstacle position.
func (o Obstacle) Geo() geo.Point {
	return geo.NewPoint(o.Lat, o.Lon).WithAlt(o.Elevation)
}

// Analysis is the result of analysing a sample set.
type Analysis struct {
	Points    []Point    `json:"points"`
	Obstacles []Obstacle `json:"obstacles"`

	MeanSlope         float64 `json:"mean_slope"`
	MaxSlope          float64 `json:"max_slope"`
	MeanRoughness     float64 `json:"mean_roughness"`
	MeanAccessibility float64 `json:"mean_accessibility"`

	MinElevation float64 `json:"min_elevation"`
	MaxElevation float64 `json:"max_elevation"`

	AreaKm2         float64 `json:"area_km2"`
	ObstacleDensity float64 `json:"obstacle_density"`

	// Spacing is the estimated distance between neighbouring samples, in meters.
	Spacing float64 `json:"spacing"`

	Difficulty int        `json:"difficulty"`
	Complexity Complexity `json:"complexity"`
}

// Variation is the elevation range covered by the samples.
func (a *Analysis) Variation() float64 {
	return a.MaxElevation - a.MinElevation
}

// LandingSite is a landing-site suitability analysis.
type LandingSite struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`

	Difficulty         int         `json:"difficulty"`
	Suitability        Suitability `json:"suitability"`
	AccessibilityScore float64     `json:"accessibility_score"`
	SlopeClass         SlopeClass  `json:"slope_class"`
	Roughness          float64     `json:"roughness"`

	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
}

// Geo returns the site position with its elevation.
func (s LandingSite) Geo() geo.Point {
	return geo.NewPoint(s.Lat, s.Lon).WithAlt(s.Elevation)
}
