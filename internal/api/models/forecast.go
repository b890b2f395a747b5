package models

import "time"

// ForecastWindowRequest is the body of POST /v1/forecast-windows.
type ForecastWindowRequest struct {
	Launch     Coordinate   `json:"launch"`
	LaunchTime *time.Time   `json:"launch_time,omitempty"`
	Balloon    BalloonSpecs `json:"balloon"`

	UncertaintyMarginMinutes int    `json:"uncertainty_margin_minutes,omitempty" validate:"gte=0,lte=1440"`
	Resolution               string `json:"resolution,omitempty" validate:"omitempty,oneof=hourly 3hourly 6hourly"`
}

// ForecastWindow is a weather time range with its quality.
type ForecastWindow struct {
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	DurationHours         int       `json:"duration_hours"`
	Resolution            string    `json:"resolution"`
	SafetyMarginMinutes   int       `json:"safety_margin_minutes"`
	Confidence            string    `json:"confidence"`
	UncertaintyFactor     float64   `json:"uncertainty_factor"`
	Notes                 []string  `json:"notes,omitempty"`
	FlightDurationSeconds float64   `json:"flight_duration_seconds"`
	Fallback              bool      `json:"fallback"`
}

// ForecastModel is a numerical weather model summary.
type ForecastModel struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	UpdateCycleHours    float64 `json:"update_cycle_hours"`
	MaxHorizonHours     float64 `json:"max_horizon_hours"`
	TemporalResolution  string  `json:"temporal_resolution"`
	SpatialResolutionKm float64 `json:"spatial_resolution_km"`
}

// ModelCandidate is a scored alternative model.
type ModelCandidate struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// ModelSelection is the chosen forecast model.
type ModelSelection struct {
	Model        ForecastModel    `json:"model"`
	Score        int              `json:"score"`
	Reasoning    []string         `json:"reasoning"`
	Alternatives []ModelCandidate `json:"alternatives"`
}

// ForecastWindowResponse is the body returned by POST /v1/forecast-windows.
// Model is absent when no model covers the window.
type ForecastWindowResponse struct {
	Window ForecastWindow  `json:"window"`
	Model  *ModelSelection `json:"model,omitempty"`
}
