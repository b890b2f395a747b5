package forecast

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/stratotrack/stratotrack/internal/geo"
)

// Forecast errors.
var (
	ErrInvalidRequest       = errors.New("invalid forecast request")
	ErrNoModelCoversHorizon = errors.New("no forecast model covers the required horizon")
)

// Model describes a numerical weather prediction model.
type Model struct {
	// ID is the short identifier passed to weather providers as a model hint.
	ID   string `json:"id"`
	Name string `json:"name"`

	UpdateCycle time.Duration `json:"update_cycle"`
	Latency     time.Duration `json:"latency"`
	MaxHorizon  time.Duration `json:"max_horizon"`

	TemporalResolution  Resolution `json:"temporal_resolution"`
	SpatialResolutionKm float64    `json:"spatial_resolution_km"`
	VerticalLevels      int        `json:"vertical_levels"`

	// MaxReliableHorizon is where skill drops off noticeably.
	MaxReliableHorizon time.Duration `json:"max_reliable_horizon"`

	// SkillScores are verification scores per variable, 0-1.
	SkillScores map[string]float64 `json:"skill_scores,omitempty"`

	// Coverage limits a regional model; nil means global.
	Coverage *geo.Region `json:"-"`
}

// Covers reports whether the model has data at the location.
func (m Model) Covers(p geo.Point) bool {
	return m.Coverage == nil || m.Coverage.Contains(p.Lat, p.Lon)
}

// Catalog returns the known forecast models in preference order.
func Catalog() []Model {
	return []Model{
		{
			ID: "gfs", Name: "GFS",
			UpdateCycle: 6 * time.Hour, Latency: 4 * time.Hour, MaxHorizon: 384 * time.Hour,
			TemporalResolution: Hourly, SpatialResolutionKm: 25, VerticalLevels: 41,
			MaxReliableHorizon: 120 * time.Hour,
			SkillScores:        map[string]float64{"wind": 0.78, "temperature": 0.82, "pressure": 0.85},
		},
		{
			ID: "ecmwf", Name: "ECMWF IFS",
			UpdateCycle: 6 * time.Hour, Latency: 6 * time.Hour, MaxHorizon: 240 * time.Hour,
			TemporalResolution: ThreeHourly, SpatialResolutionKm: 9, VerticalLevels: 137,
			MaxReliableHorizon: 168 * time.Hour,
			SkillScores:        map[string]float64{"wind": 0.85, "temperature": 0.88, "pressure": 0.9},
		},
		{
			ID: "icon", Name: "ICON",
			UpdateCycle: 6 * time.Hour, Latency: 4 * time.Hour, MaxHorizon: 180 * time.Hour,
			TemporalResolution: Hourly, SpatialResolutionKm: 13, VerticalLevels: 120,
			MaxReliableHorizon: 120 * time.Hour,
			SkillScores:        map[string]float64{"wind": 0.8, "temperature": 0.84, "pressure": 0.86},
		},
		{
			ID: "hrrr", Name: "HRRR",
			UpdateCycle: time.Hour, Latency: time.Hour, MaxHorizon: 48 * time.Hour,
			TemporalResolution: Hourly, SpatialResolutionKm: 3, VerticalLevels: 50,
			MaxReliableHorizon: 18 * time.Hour,
			SkillScores:        map[string]float64{"wind": 0.83, "temperature": 0.86, "pressure": 0.87},
			Coverage:           &geo.ContiguousUS,
		},
		{
			ID: "nam", Name: "NAM",
			UpdateCycle: 6 * time.Hour, Latency: 2 * time.Hour, MaxHorizon: 84 * time.Hour,
			TemporalResolution: Hourly, SpatialResolutionKm: 12, VerticalLevels: 60,
			MaxReliableHorizon: 48 * time.Hour,
			SkillScores:        map[string]float64{"wind": 0.79, "temperature": 0.83, "pressure": 0.85},
			Coverage:           &geo.ContiguousUS,
		},
	}
}

// Candidate is a scored model.
type Candidate struct {
	Model Model `json:"model"`
	Score int   `json:"score"`
}

// ModelSelection is the chosen model with its reasoning.
type ModelSelection struct {
	Model        Model       `json:"model"`
	Score        int         `json:"score"`
	Reasoning    []string    `json:"reasoning"`
	Alternatives []Candidate `json:"alternatives"`
}

// SelectModel picks the model whose horizon covers the window and that best
// matches its resolution and timeliness. Ties keep catalog order.
func (s *Selector) SelectModel(w *Window, now time.Time) (*ModelSelection, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil window", ErrInvalidRequest)
	}

	required := w.End.Sub(now)
	if required < 0 {
		required = 0
	}
	located := w.Location.Lat != 0 || w.Location.Lon != 0

	type scored struct {
		Candidate
		reasons []string
		index   int
	}
	var candidates []scored

	for i, m := range s.models {
		if m.MaxHorizon < required {
			continue
		}
		if located && !m.Covers(w.Location) {
			continue
		}
		score, reasons := scoreModel(m, w)
		candidates = append(candidates, scored{Candidate: Candidate{Model: m, Score: score}, reasons: reasons, index: i})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: need %s", ErrNoModelCoversHorizon, required.Round(time.Hour))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].index < candidates[j].index
	})

	best := candidates[0]
	sel := &ModelSelection{
		Model:     best.Model,
		Score:     best.Score,
		Reasoning: append([]string{fmt.Sprintf("horizon %s covers the %s needed", best.Model.MaxHorizon, required.Round(time.Hour))}, best.reasons...),
	}
	for _, c := range candidates[1:] {
		sel.Alternatives = append(sel.Alternatives, c.Candidate)
	}

	s.logger.Debug().
		Str("model", sel.Model.Name).
		Int("score", sel.Score).
		Int("alternatives", len(sel.Alternatives)).
		Msg("selected forecast model")

	return sel, nil
}

func scoreModel(m Model, w *Window) (int, []string) {
	var (
		score   int
		reasons []string
	)

	switch diff := w.Resolution.rank() - m.TemporalResolution.rank(); {
	case diff == 0:
		score += 3
		reasons = append(reasons, fmt.Sprintf("%s output matches the requested resolution", m.TemporalResolution))
	case diff == 1:
		score += 2
		reasons = append(reasons, fmt.Sprintf("%s output is one step finer than requested", m.TemporalResolution))
	default:
		score++
	}

	switch {
	case m.Latency <= 2*time.Hour:
		score += 2
		reasons = append(reasons, fmt.Sprintf("low latency (%s)", m.Latency))
	case m.Latency <= 4*time.Hour:
		score++
	}

	switch {
	case w.Span() <= 12*time.Hour && m.UpdateCycle <= 6*time.Hour:
		score += 2
		reasons = append(reasons, fmt.Sprintf("updates every %s, suited to a short window", m.UpdateCycle))
	case m.UpdateCycle <= 12*time.Hour:
		score++
	}

	if m.SpatialResolutionKm <= 15 {
		score++
		reasons = append(reasons, fmt.Sprintf("fine grid (%.0f km)", m.SpatialResolutionKm))
	}

	return score, reasons
}
