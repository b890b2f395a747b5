package quality_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/quality"
)

func ecmwf() quality.ModelCharacteristics {
	return quality.ModelCharacteristics{
		Name:                "ECMWF IFS",
		SkillScores:         map[string]float64{"wind": 0.85, "temperature": 0.88, "pressure": 0.9},
		UpdateFrequency:     6 * time.Hour,
		MaxReliableHorizon:  168 * time.Hour,
		SpatialResolutionKm: 9,
		VerticalLevels:      137,
	}
}

func baseInput() quality.Input {
	return quality.Input{
		ForecastAge:     3 * time.Hour,
		ForecastHorizon: 10 * time.Hour,
		Model:           ecmwf(),
		Latitude:        40,
		MinAltitude:     0,
		MaxAltitude:     30000,
	}
}

func newAssessor() *quality.Assessor {
	return quality.NewAssessor(quality.Config{Logger: zerolog.Nop()})
}

func kinds(a *quality.Assessment) []quality.IssueKind {
	var out []quality.IssueKind
	for _, i := range a.Issues {
		out = append(out, i.Kind)
	}
	return out
}

func TestAssess_FreshForecast(t *testing.T) {
	a := newAssessor().Assess(baseInput())

	skill := (0.85 + 0.88 + 0.9) / 3
	assert.InDelta(t, 1.0, a.Temporal, 1e-9)
	assert.InDelta(t, 0.9, a.Spatial, 1e-9)
	assert.InDelta(t, 0.96*(0.7+0.3*skill), a.Confidence, 1e-9)
	assert.InDelta(t, 0.1+0.1+0.2*(1-skill), a.Uncertainty, 1e-9)
	assert.Equal(t, quality.Excellent, a.Overall)
	assert.Equal(t, quality.High, a.ConfidenceLevel)
	assert.Empty(t, a.Issues)
	assert.False(t, a.Fallback)
}

func TestAssess_StaleData(t *testing.T) {
	in := baseInput()
	in.ForecastAge = 30 * time.Hour

	a := newAssessor().Assess(in)

	assert.InDelta(t, 0.7*0.6, a.Temporal, 1e-9)
	assert.Equal(t, []quality.IssueKind{quality.IssueStaleData}, kinds(a))
	assert.Len(t, a.Recommendations, 1)
	assert.Equal(t, quality.Medium, a.ConfidenceLevel)
}

func TestAssess_BeyondReliableHorizon(t *testing.T) {
	in := baseInput()
	in.Model.MaxReliableHorizon = 18 * time.Hour
	in.ForecastHorizon = 30 * time.Hour

	a := newAssessor().Assess(in)

	assert.InDelta(t, 0.5, a.Temporal, 1e-9)
	assert.Contains(t, kinds(a), quality.IssueBeyondHorizon)
}

func TestAssess_UnknownModel(t *testing.T) {
	in := baseInput()
	in.Model = quality.ModelCharacteristics{}
	in.MaxAltitude = 0

	a := newAssessor().Assess(in)

	assert.InDelta(t, 1.0, a.Spatial, 1e-9)
	assert.InDelta(t, 0.85, a.Confidence, 1e-9)
	assert.InDelta(t, 0.3, a.Uncertainty, 1e-9)
	assert.Equal(t, []quality.IssueKind{quality.IssueUnknownModel}, kinds(a))
}

func TestAssess_EnsembleAndHistory(t *testing.T) {
	spread, acc := 6.0, 0.2
	in := baseInput()
	in.ForecastHorizon = 100 * time.Hour
	in.EnsembleSize = 5
	in.EnsembleSpread = &spread
	in.HistoricalAccuracy = &acc

	a := newAssessor().Assess(in)

	skill := (0.85 + 0.88 + 0.9) / 3
	assert.InDelta(t, 0.7, a.Temporal, 1e-9)
	assert.InDelta(t, 0.78*0.95*0.8*0.6*(0.7+0.3*skill), a.Confidence, 1e-9)
	assert.InDelta(t, 0.1+0.25+0.3+0.2*(1-skill), a.Uncertainty, 1e-9)
	assert.Equal(t, quality.Low, a.ConfidenceLevel)
	assert.Contains(t, kinds(a), quality.IssueLowConfidence)
}

func TestAssess_LargeEnsembleBoostIsClamped(t *testing.T) {
	in := baseInput()
	in.MaxAltitude = 1000
	in.EnsembleSize = 50
	in.Model.SkillScores = map[string]float64{"wind": 1}

	a := newAssessor().Assess(in)
	assert.Equal(t, 1.0, a.Confidence)
}

func TestAssess_InvalidInputFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		patch func(*quality.Input)
	}{
		{"negative age", func(in *quality.Input) { in.ForecastAge = -time.Minute }},
		{"negative horizon", func(in *quality.Input) { in.ForecastHorizon = -time.Minute }},
		{"latitude out of range", func(in *quality.Input) { in.Latitude = 91 }},
		{"inverted altitude range", func(in *quality.Input) { in.MinAltitude = 5000; in.MaxAltitude = 10 }},
		{"accuracy above one", func(in *quality.Input) { acc := 1.5; in.HistoricalAccuracy = &acc }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.patch(&in)

			require.Error(t, in.Validate())
			a := newAssessor().Assess(in)

			assert.True(t, a.Fallback)
			assert.Equal(t, quality.Poor, a.Overall)
			assert.Equal(t, quality.Low, a.ConfidenceLevel)
			assert.Equal(t, 0.1, a.Confidence)
			assert.Equal(t, 0.9, a.Uncertainty)
		})
	}
}
