// Package prediction runs the full flight prediction: forecast window,
// weather and terrain acquisition, physics, terrain overlay and quality
// annotation, falling back to a physics-only result when anything past input
// validation fails.
package prediction

import (
	"time"

	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/interpolation"
	"github.com/stratotrack/stratotrack/internal/quality"
	"github.com/stratotrack/stratotrack/internal/terrain"
	"github.com/stratotrack/stratotrack/internal/trajectory"
)

// State is a step of the prediction pipeline.
type State string

const (
	StateValidate       State = "VALIDATE"
	StatePrepareTerrain State = "PREPARE_TERRAIN"
	StateBasePredict    State = "BASE_PREDICT"
	StateAnalyzeTerrain State = "ANALYZE_TERRAIN"
	StateAdjust         State = "ADJUST"
	StateRecommendWarn  State = "RECOMMEND_WARN"
	StateDone           State = "DONE"
	StateFallback       State = "FALLBACK"
)

// Input is a prediction request.
type Input struct {
	Launch     geo.Point
	LaunchTime time.Time
	Specs      trajectory.BalloonSpecs

	// TerrainResolution is the elevation grid spacing in meters.
	TerrainResolution float64

	// AnalysisRadius is the terrain grid radius in kilometers.
	AnalysisRadius float64

	// Method overrides the configured interpolation method.
	Method interpolation.Method

	// UncertaintyMargin widens the forecast window.
	UncertaintyMargin time.Duration
}

// Severity grades a warning.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Warning kinds.
const (
	WarningObstacle   = "obstacle"
	WarningClearance  = "clearance"
	WarningComplexity = "terrain_complexity"
)

// Warning is a terrain hazard along the flight.
type Warning struct {
	Type     string           `json:"type"`
	Severity Severity         `json:"severity"`
	Phase    trajectory.Phase `json:"phase"`
	Message  string           `json:"message"`
	Lat      float64          `json:"lat"`
	Lon      float64          `json:"lon"`
}

// PhaseLanding is the landing phase for warnings that concern the touchdown area.
const PhaseLanding trajectory.Phase = "landing"

// WeatherImpact summarises what the weather does to the flight.
type WeatherImpact struct {
	WindDriftKm float64 `json:"wind_drift_km"`

	// AltitudeEffectM is the ground elevation change between launch and landing.
	AltitudeEffectM float64 `json:"altitude_effect_m"`

	UncertaintyRadiusKm float64 `json:"uncertainty_radius_km"`
}

// Terrain is the terrain block of a result.
type Terrain struct {
	Complexity        terrain.Complexity  `json:"complexity"`
	LandingComplexity terrain.Complexity  `json:"landing_complexity"`
	Difficulty        int                 `json:"difficulty"`
	Roughness         float64             `json:"roughness"`
	ElevationRangeM   float64             `json:"elevation_range_m"`
	LaunchElevation   float64             `json:"launch_elevation_m"`
	LandingElevation  float64             `json:"landing_elevation_m"`
	Obstacles         []terrain.Obstacle  `json:"obstacles"`
	LandingSite       terrain.LandingSite `json:"landing_site"`
	SamplesAnalyzed   int                 `json:"samples_analyzed"`
}

// NeutralTerrain is the terrain block used before analysis and on fallback.
func NeutralTerrain() Terrain {
	return Terrain{
		Complexity:        terrain.ComplexityFlat,
		LandingComplexity: terrain.ComplexityFlat,
		Difficulty:        1,
		Obstacles:         []terrain.Obstacle{},
		LandingSite: terrain.LandingSite{
			Difficulty:      1,
			Suitability:     terrain.SuitabilityFor(1),
			SlopeClass:      terrain.SlopeFlat,
			RiskFactors:     []string{},
			Recommendations: []string{},
		},
	}
}

// Adjustments are the terrain-derived corrections to the base prediction.
type Adjustments struct {
	// BurstHeightM is how much higher the burst must be to clear every obstacle.
	BurstHeightM float64 `json:"burst_height_m"`

	TrajectoryDeviationKm float64 `json:"trajectory_deviation_km"`
	LandingShiftKm        float64 `json:"landing_shift_km"`

	// ConfidenceFactor scales prediction confidence, in [0.5, 1].
	ConfidenceFactor float64 `json:"confidence_factor"`

	FlightTime time.Duration `json:"flight_time"`

	// AscentRateFactor is the complexity-banded ascent-rate factor and
	// AdjustedAscentRate the resulting rate. Both are advisory.
	AscentRateFactor   float64 `json:"ascent_rate_factor"`
	AdjustedAscentRate float64 `json:"adjusted_ascent_rate_ms"`
}

func neutralAdjustments(specs trajectory.BalloonSpecs) Adjustments {
	return Adjustments{ConfidenceFactor: 1, AscentRateFactor: 1, AdjustedAscentRate: specs.AscentRate}
}

// Result is a complete prediction. It is built once and not modified after
// it is returned.
type Result struct {
	Ascent  []trajectory.Point `json:"ascent"`
	Descent []trajectory.Point `json:"descent"`
	Burst   trajectory.Point   `json:"burst"`
	Landing trajectory.Point   `json:"landing"`

	FlightDuration time.Duration          `json:"flight_duration"`
	Specs          trajectory.BalloonSpecs `json:"specs"`

	WeatherImpact   WeatherImpact         `json:"weather_impact"`
	Terrain         Terrain               `json:"terrain"`
	Adjustments     Adjustments           `json:"adjustments"`
	Recommendations []terrain.LandingSite `json:"recommendations"`
	Warnings        []Warning             `json:"warnings"`

	Confidence float64 `json:"confidence"`

	// Fallback marks a physics-only result built after a pipeline failure.
	Fallback       bool   `json:"fallback"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	Window          *forecast.Window         `json:"forecast_window"`
	Model           *forecast.ModelSelection `json:"model,omitempty"`
	WeatherQuality  *quality.Assessment      `json:"weather_quality"`
	WeatherProvider string                   `json:"weather_provider,omitempty"`

	// States lists the pipeline steps taken.
	States []State `json:"states"`
}

// Trajectory returns the full path from launch to landing with the burst
// point once.
func (r *Result) Trajectory() []trajectory.Point {
	p := trajectory.Prediction{Ascent: r.Ascent, Descent: r.Descent}
	return p.Trajectory()
}
