package handler

import (
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/stratotrack/stratotrack/internal/api/models"
	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/prediction"
	"github.com/stratotrack/stratotrack/internal/trajectory"
)

func toPoint(c models.Coordinate) geo.Point {
	p := geo.NewPoint(*c.Lat, *c.Lon)
	if c.Alt != nil {
		p = p.WithAlt(*c.Alt)
	}
	return p
}

func toSpecs(b models.BalloonSpecs) trajectory.BalloonSpecs {
	return trajectory.BalloonSpecs{
		VolumeM3:        b.VolumeM3,
		BalloonMassKg:   b.BalloonMassKg,
		PayloadMassKg:   b.PayloadMassKg,
		BurstAltitude:   b.BurstAltitudeM,
		AscentRate:      b.AscentRateMS,
		DragCoefficient: b.DragCoefficient,
		ParachuteAreaM2: b.ParachuteAreaM2,
	}
}

func toTrajectoryPoint(p trajectory.Point) models.TrajectoryPoint {
	return models.TrajectoryPoint{
		Lat:       p.Lat,
		Lon:       p.Lon,
		AltitudeM: p.Altitude,
		Timestamp: p.Timestamp,
		Phase:     string(p.Phase),
	}
}

func toTrajectoryPoints(ps []trajectory.Point) []models.TrajectoryPoint {
	out := make([]models.TrajectoryPoint, len(ps))
	for i, p := range ps {
		out[i] = toTrajectoryPoint(p)
	}
	return out
}

// encodePolyline encodes the path as a precision-5 polyline.
func encodePolyline(ps []trajectory.Point) string {
	coords := make([][]float64, len(ps))
	for i, p := range ps {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

func toWindow(w *forecast.Window) *models.ForecastWindow {
	if w == nil {
		return nil
	}
	return &models.ForecastWindow{
		Start:                 w.Start,
		End:                   w.End,
		DurationHours:         w.DurationHours,
		Resolution:            string(w.Resolution),
		SafetyMarginMinutes:   w.SafetyMarginMinutes,
		Confidence:            string(w.Quality.Confidence),
		UncertaintyFactor:     w.Quality.UncertaintyFactor,
		Notes:                 w.Quality.Notes,
		FlightDurationSeconds: w.FlightDuration.Seconds(),
		Fallback:              w.Fallback,
	}
}

func toModelSelection(s *forecast.ModelSelection) *models.ModelSelection {
	if s == nil {
		return nil
	}
	out := &models.ModelSelection{
		Model: models.ForecastModel{
			ID:                  s.Model.ID,
			Name:                s.Model.Name,
			UpdateCycleHours:    s.Model.UpdateCycle.Hours(),
			MaxHorizonHours:     s.Model.MaxHorizon.Hours(),
			TemporalResolution:  string(s.Model.TemporalResolution),
			SpatialResolutionKm: s.Model.SpatialResolutionKm,
		},
		Score:        s.Score,
		Reasoning:    s.Reasoning,
		Alternatives: make([]models.ModelCandidate, 0, len(s.Alternatives)),
	}
	for _, c := range s.Alternatives {
		out.Alternatives = append(out.Alternatives, models.ModelCandidate{ID: c.Model.ID, Score: c.Score})
	}
	return out
}

func toPredictionResponse(id string, created time.Time, res *prediction.Result) models.PredictionResponse {
	path := res.Trajectory()

	out := models.PredictionResponse{
		ID:                    id,
		CreatedAt:             created,
		Burst:                 toTrajectoryPoint(res.Burst),
		Landing:               toTrajectoryPoint(res.Landing),
		Ascent:                toTrajectoryPoints(res.Ascent),
		Descent:               toTrajectoryPoints(res.Descent),
		Polyline:              encodePolyline(path),
		FlightDurationSeconds: res.FlightDuration.Seconds(),
		WeatherImpact:         res.WeatherImpact,
		Terrain:               res.Terrain,
		Adjustments: models.Adjustments{
			BurstHeightM:          res.Adjustments.BurstHeightM,
			TrajectoryDeviationKm: res.Adjustments.TrajectoryDeviationKm,
			LandingShiftKm:        res.Adjustments.LandingShiftKm,
			ConfidenceFactor:      res.Adjustments.ConfidenceFactor,
			FlightTimeSeconds:     res.Adjustments.FlightTime.Seconds(),
			AscentRateFactor:      res.Adjustments.AscentRateFactor,
			AdjustedAscentRateMS:  res.Adjustments.AdjustedAscentRate,
		},
		Recommendations: res.Recommendations,
		Warnings:        res.Warnings,
		Confidence:      res.Confidence,
		Fallback:        res.Fallback,
		FallbackReason:  res.FallbackReason,
		ForecastWindow:  toWindow(res.Window),
		Model:           toModelSelection(res.Model),
		WeatherQuality:  res.WeatherQuality,
		WeatherProvider: res.WeatherProvider,
		States:          make([]string, len(res.States)),
	}
	if len(path) > 0 {
		out.Launch = toTrajectoryPoint(path[0])
	}
	for i, s := range res.States {
		out.States[i] = string(s)
	}
	return out
}
