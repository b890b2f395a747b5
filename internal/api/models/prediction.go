// Package models defines the JSON bodies of the stratotrack API.
package models

import (
	"time"

	"github.com/stratotrack/stratotrack/internal/prediction"
	"github.com/stratotrack/stratotrack/internal/quality"
	"github.com/stratotrack/stratotrack/internal/terrain"
)

// Coordinate is a request location. Alt is meters above sea level.
type Coordinate struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Alt *float64 `json:"alt,omitempty" validate:"omitempty,gte=-500,lte=9000"`
}

// BalloonSpecs describes the flight train.
type BalloonSpecs struct {
	VolumeM3        float64 `json:"volume_m3" validate:"gte=0"`
	BalloonMassKg   float64 `json:"balloon_mass_kg" validate:"gte=0"`
	PayloadMassKg   float64 `json:"payload_mass_kg" validate:"gt=0,lte=50"`
	BurstAltitudeM  float64 `json:"burst_altitude_m" validate:"gt=0,lte=60000"`
	AscentRateMS    float64 `json:"ascent_rate_ms" validate:"gt=0,lte=20"`
	DragCoefficient float64 `json:"drag_coefficient,omitempty" validate:"gte=0,lte=5"`
	ParachuteAreaM2 float64 `json:"parachute_area_m2,omitempty" validate:"gte=0"`
}

// PredictionRequest is the body of POST /v1/predictions.
type PredictionRequest struct {
	Launch     Coordinate   `json:"launch"`
	LaunchTime *time.Time   `json:"launch_time,omitempty"`
	Balloon    BalloonSpecs `json:"balloon"`

	TerrainResolutionM       *float64 `json:"terrain_resolution_m,omitempty" validate:"omitempty,gt=0,lte=5000"`
	AnalysisRadiusKm         *float64 `json:"analysis_radius_km,omitempty" validate:"omitempty,gt=0,lte=50"`
	InterpolationMethod      string   `json:"interpolation_method,omitempty" validate:"omitempty,oneof=linear cubic spline"`
	UncertaintyMarginMinutes int      `json:"uncertainty_margin_minutes,omitempty" validate:"gte=0,lte=1440"`
}

// TrajectoryPoint is one point of the flight path.
type TrajectoryPoint struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AltitudeM float64   `json:"altitude_m"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
}

// Adjustments are the terrain corrections with durations in seconds.
type Adjustments struct {
	BurstHeightM          float64 `json:"burst_height_m"`
	TrajectoryDeviationKm float64 `json:"trajectory_deviation_km"`
	LandingShiftKm        float64 `json:"landing_shift_km"`
	ConfidenceFactor      float64 `json:"confidence_factor"`
	FlightTimeSeconds     float64 `json:"flight_time_seconds"`
	AscentRateFactor      float64 `json:"ascent_rate_factor"`
	AdjustedAscentRateMS  float64 `json:"adjusted_ascent_rate_ms"`
}

// PredictionResponse is the body returned by POST /v1/predictions.
type PredictionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Launch  TrajectoryPoint   `json:"launch"`
	Burst   TrajectoryPoint   `json:"burst"`
	Landing TrajectoryPoint   `json:"landing"`
	Ascent  []TrajectoryPoint `json:"ascent"`
	Descent []TrajectoryPoint `json:"descent"`

	// Polyline is the full path in Google encoded polyline format (precision 5).
	Polyline string `json:"polyline"`

	FlightDurationSeconds float64 `json:"flight_duration_seconds"`

	WeatherImpact   prediction.WeatherImpact `json:"weather_impact"`
	Terrain         prediction.Terrain       `json:"terrain"`
	Adjustments     Adjustments              `json:"adjustments"`
	Recommendations []terrain.LandingSite    `json:"recommendations"`
	Warnings        []prediction.Warning     `json:"warnings"`

	Confidence     float64 `json:"confidence"`
	Fallback       bool    `json:"fallback"`
	FallbackReason string  `json:"fallback_reason,omitempty"`

	ForecastWindow  *ForecastWindow     `json:"forecast_window,omitempty"`
	Model           *ModelSelection     `json:"model,omitempty"`
	WeatherQuality  *quality.Assessment `json:"weather_quality,omitempty"`
	WeatherProvider string              `json:"weather_provider,omitempty"`

	States []string `json:"states"`
}
