// Package forecast sizes the weather window a flight needs and picks the
// forecast model best suited to it.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/trajectory"
)

// Resolution is the temporal resolution of forecast data.
type Resolution string

const (
	Hourly      Resolution = "hourly"
	ThreeHourly Resolution = "3hourly"
	SixHourly   Resolution = "6hourly"
)

// resolutions are ordered finest first.
var resolutions = []Resolution{Hourly, ThreeHourly, SixHourly}

// Step returns the interval between forecast steps.
func (r Resolution) Step() time.Duration {
	switch r {
	case Hourly:
		return time.Hour
	case ThreeHourly:
		return 3 * time.Hour
	case SixHourly:
		return 6 * time.Hour
	}
	return 0
}

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	return r.Step() > 0
}

func (r Resolution) rank() int {
	for i, v := range resolutions {
		if v == r {
			return i
		}
	}
	return -1
}

// Confidence is a coarse confidence class.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Quality describes how much to trust a window.
type Quality struct {
	Confidence        Confidence `json:"confidence"`
	UncertaintyFactor float64    `json:"uncertainty_factor"`
	Notes             []string   `json:"notes,omitempty"`
}

// Window is the weather time range a flight needs.
type Window struct {
	Start               time.Time  `json:"start"`
	End                 time.Time  `json:"end"`
	DurationHours       int        `json:"duration_hours"`
	Resolution          Resolution `json:"resolution"`
	SafetyMarginMinutes int        `json:"safety_margin_minutes"`
	Quality             Quality    `json:"quality"`

	// Location is the launch site the window was sized for.
	Location geo.Point `json:"location"`

	// FlightDuration is the estimated launch-to-landing time; zero for fallback windows.
	FlightDuration time.Duration `json:"flight_duration"`

	// Fallback is set when the window is the fixed conservative default.
	Fallback bool `json:"fallback"`
}

// Span returns End - Start.
func (w *Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// Request asks for a forecast window.
type Request struct {
	LaunchTime time.Time
	Launch     geo.Point
	Specs      trajectory.BalloonSpecs

	// UncertaintyMargin extends the window on both sides.
	UncertaintyMargin time.Duration

	// Resolution forces a temporal resolution when set.
	Resolution *Resolution
}

// SelectorConfig holds configuration for the window selector.
type SelectorConfig struct {
	// SafetyMargin pads the window on both sides (default: 60 minutes).
	SafetyMargin time.Duration

	// Models is the model catalog (default: Catalog()).
	Models []Model

	// Logger for selector operations.
	Logger zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Selector computes forecast windows and model choices.
type Selector struct {
	safety time.Duration
	models []Model
	logger zerolog.Logger
	now    func() time.Time
}

// NewSelector creates a new forecast window selector.
func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 60 * time.Minute
	}
	if cfg.Models == nil {
		cfg.Models = Catalog()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Selector{safety: cfg.SafetyMargin, models: cfg.Models, logger: cfg.Logger, now: cfg.Now}
}

// SelectWindow returns the recommended window for a flight. It never fails:
// when the flight cannot be estimated the fixed fallback window is returned.
func (s *Selector) SelectWindow(req Request) *Window {
	w, err := s.window(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("forecast window selection failed, using fallback window")
		launch := req.LaunchTime
		if launch.IsZero() {
			launch = s.now().UTC()
		}
		return FallbackWindow(launch, req.Launch)
	}
	return w
}

// FallbackWindow is the conservative default: 3h lookback, 24h lookahead,
// 3-hourly, low confidence.
func FallbackWindow(launch time.Time, location geo.Point) *Window {
	start := launch.Add(-3 * time.Hour)
	end := launch.Add(24 * time.Hour)
	return &Window{
		Start:         start,
		End:           end,
		DurationHours: durationHours(end.Sub(start)),
		Resolution:    ThreeHourly,
		Quality: Quality{
			Confidence:        Low,
			UncertaintyFactor: 0.8,
			Notes:             []string{"flight duration could not be estimated; using conservative default window"},
		},
		Location: location,
		Fallback: true,
	}
}

func (s *Selector) window(req Request) (*Window, error) {
	if req.LaunchTime.IsZero() {
		return nil, fmt.Errorf("%w: launch time is required", ErrInvalidRequest)
	}
	if err := req.Launch.Validate(); err != nil {
		return nil, err
	}
	if req.UncertaintyMargin < 0 {
		return nil, fmt.Errorf("%w: negative uncertainty margin %s", ErrInvalidRequest, req.UncertaintyMargin)
	}

	est, err := trajectory.EstimateFlight(req.Specs, req.Launch.AltOr(0))
	if err != nil {
		return nil, fmt.Errorf("estimating flight: %w", err)
	}
	if est.Total <= 0 {
		return nil, fmt.Errorf("non-positive flight duration %s", est.Total)
	}

	estConfidence := estimateConfidence(est.UncertaintyRatio)

	resolution := chooseResolution(est.Total, estConfidence)
	if req.Resolution != nil {
		if !req.Resolution.Valid() {
			return nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidRequest, *req.Resolution)
		}
		resolution = *req.Resolution
	}

	start := req.LaunchTime.Add(-s.safety - req.UncertaintyMargin)
	end := req.LaunchTime.Add(est.Total + s.safety + req.UncertaintyMargin)

	w := &Window{
		Start:               start,
		End:                 end,
		DurationHours:       durationHours(end.Sub(start)),
		Resolution:          resolution,
		SafetyMarginMinutes: int(s.safety / time.Minute),
		Quality:             assessWindow(est, s.safety, resolution, estConfidence),
		Location:            req.Launch,
		FlightDuration:      est.Total,
	}

	s.logger.Debug().
		Time("start", w.Start).
		Time("end", w.End).
		Str("resolution", string(w.Resolution)).
		Str("confidence", string(w.Quality.Confidence)).
		Float64("uncertainty", w.Quality.UncertaintyFactor).
		Msg("selected forecast window")

	return w, nil
}

func estimateConfidence(ratio float64) Confidence {
	switch {
	case ratio < 0.2:
		return High
	case ratio < 0.35:
		return Medium
	default:
		return Low
	}
}

func chooseResolution(total time.Duration, c Confidence) Resolution {
	switch {
	case total <= 120*time.Minute && c == High:
		return Hourly
	case total <= 360*time.Minute:
		return ThreeHourly
	default:
		return SixHourly
	}
}

func assessWindow(est trajectory.Estimate, safety time.Duration, res Resolution, c Confidence) Quality {
	q := Quality{Confidence: c, UncertaintyFactor: est.UncertaintyRatio}

	safetyRatio := safety.Minutes() / est.Total.Minutes()
	switch {
	case safetyRatio < 0.2:
		q.UncertaintyFactor += 0.15
		q.Notes = append(q.Notes, "safety margin is small relative to flight duration")
	case safetyRatio > 1.5:
		q.UncertaintyFactor += 0.05
		q.Notes = append(q.Notes, "safety margin exceeds flight duration; window is wider than needed")
	}
	if res.Step() > est.Total/4 {
		q.UncertaintyFactor += 0.10
		q.Notes = append(q.Notes, fmt.Sprintf("%s resolution is coarse for a %s flight", res, est.Total.Round(time.Minute)))
	}
	q.UncertaintyFactor = math.Max(0, math.Min(1, q.UncertaintyFactor))

	switch {
	case q.UncertaintyFactor > 0.7:
		q.Confidence = Low
	case q.UncertaintyFactor > 0.4 && q.Confidence == High:
		q.Confidence = Medium
	}
	return q
}

func durationHours(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}
