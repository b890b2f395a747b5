package models

import "time"

// HealthStatus is a coarse health state.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the body of the liveness and readiness endpoints.
type Health struct {
	Status  HealthStatus      `json:"status"`
	Time    time.Time         `json:"time"`
	Details map[string]string `json:"details,omitempty"`
}

// SystemStatus is the body of GET /v1/ops/status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       time.Time         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus is the state of an internal dependency.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// ProviderStatus is the state of an external data provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time   `json:"lastFailureAt,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
}

// ElevationResponse is the body of GET /v1/elevation.
type ElevationResponse struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ElevationM float64   `json:"elevation_m"`
	Provider   string    `json:"provider"`
	FromCache  bool      `json:"from_cache"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// ElevationQuery holds the GET /v1/elevation query parameters.
type ElevationQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}
