package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/api/models"
	"github.com/stratotrack/stratotrack/internal/api/response"
	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

// ElevationResolver looks up single elevations.
type ElevationResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (*elevation.Resolution, error)
}

// ElevationHandler serves GET /v1/elevation.
type ElevationHandler struct {
	resolver ElevationResolver
}

// NewElevationHandler creates a new ElevationHandler.
func NewElevationHandler(r ElevationResolver) *ElevationHandler {
	return &ElevationHandler{resolver: r}
}

// GetElevation handles GET /v1/elevation?lat=&lon=.
func (h *ElevationHandler) GetElevation(w http.ResponseWriter, r *http.Request) {
	var (
		q    models.ElevationQuery
		errs []models.FieldError
	)
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"lat", &q.Lat}, {"lon", &q.Lon}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			errs = append(errs, models.FieldError{Field: p.name, Message: "is required", Code: "required"})
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, models.FieldError{Field: p.name, Message: "must be a number", Code: "number"})
			continue
		}
		*p.dst = v
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}
	if !check(w, r, q) {
		return
	}

	res, err := h.resolver.Resolve(r.Context(), q.Lat, q.Lon)
	if err != nil {
		switch {
		case errors.Is(err, resilience.ErrAllProvidersFailed):
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("elevation unavailable")
			response.ServiceUnavailable(w, r, "no elevation provider could serve the location")
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			response.GatewayTimeout(w, r, "elevation lookup did not complete in time")
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("elevation lookup failed")
			response.InternalError(w, r, "elevation lookup failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.ElevationResponse{
		Lat:        res.Sample.Lat,
		Lon:        res.Sample.Lon,
		ElevationM: res.Sample.Elevation,
		Provider:   res.Provider,
		FromCache:  res.FromCache || res.FromStore,
		FetchedAt:  res.Sample.Timestamp,
	})
}
