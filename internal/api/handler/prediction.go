package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/api/models"
	"github.com/stratotrack/stratotrack/internal/api/response"
	"github.com/stratotrack/stratotrack/internal/interpolation"
	"github.com/stratotrack/stratotrack/internal/prediction"
)

// Predictor runs flight predictions.
type Predictor interface {
	Predict(ctx context.Context, in prediction.Input) (*prediction.Result, error)
}

// PredictionDefaults fill request fields the caller omits.
type PredictionDefaults struct {
	// TerrainResolution is the grid spacing in meters (default: 500).
	TerrainResolution float64

	// AnalysisRadius is the grid radius in kilometers (default: 5).
	AnalysisRadius float64

	// Timeout bounds one prediction (default: 45 seconds).
	Timeout time.Duration
}

// PredictionHandler serves POST /v1/predictions.
type PredictionHandler struct {
	predictor Predictor
	defaults  PredictionDefaults
	now       func() time.Time
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(p Predictor, defaults PredictionDefaults) *PredictionHandler {
	if defaults.TerrainResolution <= 0 {
		defaults.TerrainResolution = 500
	}
	if defaults.AnalysisRadius <= 0 {
		defaults.AnalysisRadius = 5
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = 45 * time.Second
	}
	return &PredictionHandler{predictor: p, defaults: defaults, now: time.Now}
}

// CreatePrediction handles POST /v1/predictions.
func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req models.PredictionRequest
	if !decode(w, r, &req) {
		return
	}

	in := prediction.Input{
		Launch:            toPoint(req.Launch),
		Specs:             toSpecs(req.Balloon),
		TerrainResolution: h.defaults.TerrainResolution,
		AnalysisRadius:    h.defaults.AnalysisRadius,
		Method:            interpolation.Method(req.InterpolationMethod),
		UncertaintyMargin: time.Duration(req.UncertaintyMarginMinutes) * time.Minute,
	}
	if req.LaunchTime != nil {
		in.LaunchTime = req.LaunchTime.UTC()
	}
	if req.TerrainResolutionM != nil {
		in.TerrainResolution = *req.TerrainResolutionM
	}
	if req.AnalysisRadiusKm != nil {
		in.AnalysisRadius = *req.AnalysisRadiusKm
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.defaults.Timeout)
	defer cancel()

	log := zerolog.Ctx(r.Context())
	res, err := h.predictor.Predict(ctx, in)
	if err != nil {
		var verr *prediction.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, verr.Error(), []models.FieldError{{Field: verr.Field, Message: verr.Reason}})
		case errors.Is(err, prediction.ErrTimeout):
			log.Warn().Err(err).Msg("prediction timed out")
			response.GatewayTimeout(w, r, "prediction did not complete in time")
		default:
			log.Error().Err(err).Msg("prediction failed")
			response.InternalError(w, r, "prediction failed")
		}
		return
	}

	if res.Fallback {
		log.Warn().Str("reason", res.FallbackReason).Msg("served fallback prediction")
	}

	id := "pred_" + uuid.NewString()
	response.JSON(w, r, http.StatusOK, toPredictionResponse(id, h.now().UTC(), res))
}
