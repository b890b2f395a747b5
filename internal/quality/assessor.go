// Package quality scores how far a weather forecast can be trusted for a
// flight.
package quality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidInput is returned by Validate for inputs that cannot be assessed.
var ErrInvalidInput = errors.New("invalid quality input")

// Class is the overall quality class.
type Class string

const (
	Excellent Class = "excellent"
	Good      Class = "good"
	Fair      Class = "fair"
	Poor      Class = "poor"
)

// Level is a coarse confidence level.
type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"
)

// IssueKind identifies a detected weakness.
type IssueKind string

const (
	IssueStaleData      IssueKind = "stale_data"
	IssueBeyondHorizon  IssueKind = "beyond_horizon"
	IssueLowConfidence  IssueKind = "low_confidence"
	IssueUnknownModel   IssueKind = "unknown_model"
	IssueAssessmentFail IssueKind = "assessment_failed"
)

// Issue is an advisory finding.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// ModelCharacteristics describes the forecast model that produced the data.
type ModelCharacteristics struct {
	Name                string
	SkillScores         map[string]float64
	UpdateFrequency     time.Duration
	MaxReliableHorizon  time.Duration
	SpatialResolutionKm float64
	VerticalLevels      int
}

// Input is what the assessor scores.
type Input struct {
	// ForecastAge is the time since the model run was issued.
	ForecastAge time.Duration

	// ForecastHorizon is how far ahead of the run the flight ends.
	ForecastHorizon time.Duration

	Model ModelCharacteristics

	Latitude    float64
	MinAltitude float64
	MaxAltitude float64

	// EnsembleSize is zero when no ensemble is available.
	EnsembleSize       int
	EnsembleSpread     *float64
	HistoricalAccuracy *float64
}

// Validate checks that the input can be scored.
func (in Input) Validate() error {
	switch {
	case in.ForecastAge < 0:
		return fmt.Errorf("%w: negative forecast age %s", ErrInvalidInput, in.ForecastAge)
	case in.ForecastHorizon < 0:
		return fmt.Errorf("%w: negative forecast horizon %s", ErrInvalidInput, in.ForecastHorizon)
	case math.IsNaN(in.Latitude) || in.Latitude < -90 || in.Latitude > 90:
		return fmt.Errorf("%w: latitude %v", ErrInvalidInput, in.Latitude)
	case math.IsNaN(in.MinAltitude) || math.IsNaN(in.MaxAltitude) || in.MaxAltitude < in.MinAltitude:
		return fmt.Errorf("%w: altitude range %v..%v", ErrInvalidInput, in.MinAltitude, in.MaxAltitude)
	case in.EnsembleSize < 0:
		return fmt.Errorf("%w: negative ensemble size", ErrInvalidInput)
	case in.EnsembleSpread != nil && (math.IsNaN(*in.EnsembleSpread) || *in.EnsembleSpread < 0):
		return fmt.Errorf("%w: ensemble spread %v", ErrInvalidInput, *in.EnsembleSpread)
	case in.HistoricalAccuracy != nil && (math.IsNaN(*in.HistoricalAccuracy) || *in.HistoricalAccuracy < 0 || *in.HistoricalAccuracy > 1):
		return fmt.Errorf("%w: historical accuracy %v", ErrInvalidInput, *in.HistoricalAccuracy)
	}
	return nil
}

// Assessment is the scored forecast quality.
type Assessment struct {
	Overall         Class   `json:"overall"`
	ConfidenceLevel Level   `json:"confidence_level"`
	Temporal        float64 `json:"temporal"`
	Spatial         float64 `json:"spatial"`
	Confidence      float64 `json:"confidence"`
	Uncertainty     float64 `json:"uncertainty"`

	Issues          []Issue  `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	// Fallback is set when the input could not be assessed.
	Fallback bool `json:"fallback"`
}

// Fallback returns the fixed assessment used when scoring fails.
func Fallback(reason string) *Assessment {
	return &Assessment{
		Overall:         Poor,
		ConfidenceLevel: Low,
		Confidence:      0.1,
		Uncertainty:     0.9,
		Issues:          []Issue{{Kind: IssueAssessmentFail, Message: reason}},
		Recommendations: []string{"treat the prediction as indicative only and re-run closer to launch"},
		Fallback:        true,
	}
}

// Config holds configuration for the assessor.
type Config struct {
	// StaleAge is the age beyond which data is stale regardless of model cycle (default: 24h).
	StaleAge time.Duration

	// DefaultSkill is used when the model has no skill scores (default: 0.5).
	DefaultSkill float64

	// Logger for assessment warnings.
	Logger zerolog.Logger
}

// Assessor scores forecast quality.
type Assessor struct {
	staleAge     time.Duration
	defaultSkill float64
	logger       zerolog.Logger
}

// NewAssessor creates a new assessor.
func NewAssessor(cfg Config) *Assessor {
	if cfg.StaleAge <= 0 {
		cfg.StaleAge = 24 * time.Hour
	}
	if cfg.DefaultSkill <= 0 {
		cfg.DefaultSkill = 0.5
	}
	return &Assessor{staleAge: cfg.StaleAge, defaultSkill: cfg.DefaultSkill, logger: cfg.Logger}
}

// Assess scores the input. It never fails: invalid input yields Fallback.
func (a *Assessor) Assess(in Input) (out *Assessment) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("quality assessment panicked")
			out = Fallback(fmt.Sprintf("assessment failed: %v", r))
		}
	}()

	if err := in.Validate(); err != nil {
		a.logger.Warn().Err(err).Msg("quality assessment skipped")
		return Fallback(err.Error())
	}

	out = &Assessment{}
	skill, known := a.skill(in.Model)

	out.Temporal = a.temporal(in, out)
	out.Spatial = spatial(in)
	out.Confidence = confidence(in, out.Temporal, out.Spatial, skill)
	out.Uncertainty = uncertainty(in, skill)
	out.ConfidenceLevel = levelFor(out.Confidence)
	out.Overall = classFor((out.Temporal + out.Spatial + out.Confidence) / 3)

	if !known {
		out.addIssue(IssueUnknownModel,
			"forecast model is not characterised; default skill assumed",
			"prefer a catalogued model such as GFS or ECMWF")
	}
	if out.Confidence < 0.5 {
		out.addIssue(IssueLowConfidence,
			fmt.Sprintf("overall confidence %.2f is low", out.Confidence),
			"widen the landing search area and plan for a larger recovery radius")
	}

	a.logger.Debug().
		Str("overall", string(out.Overall)).
		Float64("temporal", out.Temporal).
		Float64("spatial", out.Spatial).
		Float64("confidence", out.Confidence).
		Float64("uncertainty", out.Uncertainty).
		Int("issues", len(out.Issues)).
		Msg("assessed forecast quality")

	return out
}

func (out *Assessment) addIssue(kind IssueKind, msg, rec string) {
	out.Issues = append(out.Issues, Issue{Kind: kind, Message: msg})
	out.Recommendations = append(out.Recommendations, rec)
}

func (a *Assessor) skill(m ModelCharacteristics) (float64, bool) {
	if m.Name == "" || len(m.SkillScores) == 0 {
		return a.defaultSkill, false
	}
	var sum float64
	for _, s := range m.SkillScores {
		sum += s
	}
	return clamp01(sum / float64(len(m.SkillScores))), true
}

// temporal applies the horizon and staleness penalty chains.
func (a *Assessor) temporal(in Input, out *Assessment) float64 {
	score := 1.0
	h := in.ForecastHorizon

	switch {
	case in.Model.MaxReliableHorizon > 0 && h > in.Model.MaxReliableHorizon:
		score *= 0.5
		out.addIssue(IssueBeyondHorizon,
			fmt.Sprintf("flight ends %s ahead, beyond the model's reliable horizon of %s", h.Round(time.Hour), in.Model.MaxReliableHorizon),
			"re-run the prediction when the launch is within the reliable horizon")
	case h > 72*time.Hour:
		score *= 0.7
	case h > 48*time.Hour:
		score *= 0.8
	case h > 24*time.Hour:
		score *= 0.9
	case h > 12*time.Hour:
		score *= 0.95
	}

	age := in.ForecastAge
	if cycle := in.Model.UpdateFrequency; cycle > 0 {
		switch {
		case age > 2*cycle:
			score *= 0.7
			out.addIssue(IssueStaleData,
				fmt.Sprintf("forecast is %s old, more than two update cycles", age.Round(time.Minute)),
				"refresh weather data from the latest model run")
		case age > cycle:
			score *= 0.85
		}
	}
	if age > a.staleAge {
		score *= 0.6
		if !out.has(IssueStaleData) {
			out.addIssue(IssueStaleData,
				fmt.Sprintf("forecast is %s old", age.Round(time.Minute)),
				"refresh weather data from the latest model run")
		}
	}

	return clamp01(score)
}

func (out *Assessment) has(kind IssueKind) bool {
	for _, i := range out.Issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

// spatial applies the resolution, latitude and altitude penalty chains.
func spatial(in Input) float64 {
	score := 1.0

	switch res := in.Model.SpatialResolutionKm; {
	case res > 25:
		score *= 0.8
	case res > 12:
		score *= 0.9
	}

	switch lat := math.Abs(in.Latitude); {
	case lat > 60:
		score *= 0.85
	case lat > 45:
		score *= 0.95
	}

	switch span := in.MaxAltitude - in.MinAltitude; {
	case span > 30000:
		score *= 0.85
	case span > 20000:
		score *= 0.9
	}

	if levels := in.Model.VerticalLevels; levels > 0 {
		switch {
		case levels < 20:
			score *= 0.8
		case levels < 40:
			score *= 0.9
		}
	}

	return clamp01(score)
}

func confidence(in Input, temporal, spatial, skill float64) float64 {
	c := 0.6*temporal + 0.4*spatial

	switch n := in.EnsembleSize; {
	case n >= 20:
		c *= 1.05
	case n >= 1 && n <= 9:
		c *= 0.95
	}
	if in.EnsembleSpread != nil {
		switch s := *in.EnsembleSpread; {
		case s > 5:
			c *= 0.8
		case s > 2:
			c *= 0.9
		}
	}
	if in.HistoricalAccuracy != nil {
		c *= 0.5 + 0.5*(*in.HistoricalAccuracy)
	}
	c *= 0.7 + 0.3*skill

	return clamp01(c)
}

func uncertainty(in Input, skill float64) float64 {
	u := 0.1

	switch h := in.ForecastHorizon; {
	case h <= 12*time.Hour:
	case h <= 24*time.Hour:
		u += 0.05
	case h <= 48*time.Hour:
		u += 0.1
	case h <= 72*time.Hour:
		u += 0.15
	default:
		u += 0.25
	}

	if in.EnsembleSpread != nil {
		u += math.Min(0.3, 0.05*(*in.EnsembleSpread))
	} else {
		u += 0.1
	}

	u += 0.2 * (1 - skill)
	return clamp01(u)
}

func levelFor(c float64) Level {
	switch {
	case c >= 0.7:
		return High
	case c >= 0.5:
		return Medium
	default:
		return Low
	}
}

func classFor(score float64) Class {
	switch {
	case score >= 0.8:
		return Excellent
	case score >= 0.6:
		return Good
	case score >= 0.4:
		return Fair
	default:
		return Poor
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
