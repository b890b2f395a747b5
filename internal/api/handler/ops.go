package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/stratotrack/stratotrack/internal/api/models"
	"github.com/stratotrack/stratotrack/internal/api/response"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

const checkTimeout = 2 * time.Second

// ReadinessCheck checks one internal dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    []ReadinessCheck
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, checks ...ReadinessCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		checks:    checks,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   h.now().UTC(),
		Details: map[string]string{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{Status: models.HealthStatusOK, Time: h.now().UTC()}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusFail {
			continue
		}
		if health.Details == nil {
			health.Details = make(map[string]string)
		}
		health.Details[s.Name] = s.Detail
		health.Status = models.HealthStatusFail
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	out := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       h.now().UTC(),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range out.Subsystems {
		if s.Status == models.HealthStatusFail {
			out.Status = models.HealthStatusFail
		}
	}

	if h.registry != nil {
		unhealthy := 0
		for _, ph := range h.registry.GetAllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK {
				unhealthy++
			}
			out.Providers = append(out.Providers, ps)
		}
		switch {
		case unhealthy == 0:
		case unhealthy == len(out.Providers):
			out.Status = models.HealthStatusFail
		case out.Status == models.HealthStatusOK:
			out.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, out)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, len(h.checks))

	var wg sync.WaitGroup
	for i, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			out[i] = models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
			if err := c.Check(cctx); err != nil {
				out[i].Status = models.HealthStatusFail
				out[i].Detail = err.Error()
			}
		}()
	}
	wg.Wait()
	return out
}

func toProviderStatus(h *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            h.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        h.CircuitState.String(),
		ConsecutiveFailures: h.Counts.ConsecutiveFailures,
		LastSuccessAt:       h.LastSuccessAt,
		LastFailureAt:       h.LastFailureAt,
		LastError:           h.LastError,
	}
	switch h.CircuitState {
	case gobreaker.StateOpen:
		ps.Status = models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		ps.Status = models.HealthStatusDegraded
	}
	return ps
}
