package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/api/models"
	"github.com/stratotrack/stratotrack/internal/api/response"
	"github.com/stratotrack/stratotrack/internal/forecast"
)

// WindowSelector sizes forecast windows and picks models.
type WindowSelector interface {
	SelectWindow(req forecast.Request) *forecast.Window
	SelectModel(w *forecast.Window, now time.Time) (*forecast.ModelSelection, error)
}

// ForecastHandler serves POST /v1/forecast-windows.
type ForecastHandler struct {
	selector WindowSelector
	now      func() time.Time
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(s WindowSelector) *ForecastHandler {
	return &ForecastHandler{selector: s, now: time.Now}
}

// CreateForecastWindow handles POST /v1/forecast-windows.
func (h *ForecastHandler) CreateForecastWindow(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastWindowRequest
	if !decode(w, r, &req) {
		return
	}

	specs := toSpecs(req.Balloon)
	if err := specs.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "balloon", Message: err.Error()}})
		return
	}

	now := h.now().UTC()
	freq := forecast.Request{
		LaunchTime:        now,
		Launch:            toPoint(req.Launch),
		Specs:             specs,
		UncertaintyMargin: time.Duration(req.UncertaintyMarginMinutes) * time.Minute,
	}
	if req.LaunchTime != nil {
		freq.LaunchTime = req.LaunchTime.UTC()
	}
	if req.Resolution != "" {
		res := forecast.Resolution(req.Resolution)
		freq.Resolution = &res
	}

	window := h.selector.SelectWindow(freq)
	out := models.ForecastWindowResponse{Window: *toWindow(window)}

	sel, err := h.selector.SelectModel(window, now)
	if err != nil {
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("no forecast model for window")
	} else {
		out.Model = toModelSelection(sel)
	}

	response.JSON(w, r, http.StatusOK, out)
}
