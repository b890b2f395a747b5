package forecast_test

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/trajectory"
)

var launchTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newSelector() *forecast.Selector {
	return forecast.NewSelector(forecast.SelectorConfig{Logger: zerolog.Nop()})
}

func specs(burst, rate, drag float64) trajectory.BalloonSpecs {
	return trajectory.BalloonSpecs{
		VolumeM3:        4,
		BalloonMassKg:   1.2,
		PayloadMassKg:   2,
		BurstAltitude:   burst,
		AscentRate:      rate,
		DragCoefficient: drag,
	}
}

func TestSelectWindow_StandardFlight(t *testing.T) {
	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime: launchTime,
		Launch:     geo.NewPoint(52.1, 5.1),
		Specs:      specs(30000, 5, 0),
	})

	require.False(t, w.Fallback)
	assert.Greater(t, w.FlightDuration, 100*time.Minute)
	assert.Equal(t, launchTime.Add(-time.Hour), w.Start)
	assert.Equal(t, launchTime.Add(w.FlightDuration+time.Hour), w.End)
	assert.Equal(t, int(math.Ceil(w.Span().Hours())), w.DurationHours)
	assert.Equal(t, forecast.ThreeHourly, w.Resolution)
	assert.Equal(t, 60, w.SafetyMarginMinutes)

	// 0.15 from the estimate (default drag) + 0.10 for a 3h step on a ~2.5h flight.
	assert.InDelta(t, 0.25, w.Quality.UncertaintyFactor, 1e-9)
	assert.Equal(t, forecast.High, w.Quality.Confidence)
}

func TestSelectWindow_ShortFlightIsHourly(t *testing.T) {
	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime: launchTime,
		Launch:     geo.NewPoint(52.1, 5.1),
		Specs:      specs(8000, 5, 1.5),
	})

	assert.LessOrEqual(t, w.FlightDuration, 120*time.Minute)
	assert.Equal(t, forecast.Hourly, w.Resolution)
	assert.InDelta(t, 0.2, w.Quality.UncertaintyFactor, 1e-9)
	assert.Equal(t, forecast.High, w.Quality.Confidence)
}

func TestSelectWindow_WideSafetyMarginNoted(t *testing.T) {
	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime: launchTime,
		Launch:     geo.NewPoint(52.1, 5.1),
		Specs:      specs(3000, 6, 1.5),
	})

	assert.InDelta(t, 0.25, w.Quality.UncertaintyFactor, 1e-9)
	assert.Len(t, w.Quality.Notes, 2)
}

func TestSelectWindow_SlowHighFlight(t *testing.T) {
	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime: launchTime,
		Launch:     geo.NewPoint(52.1, 5.1),
		Specs:      specs(38000, 1.5, 1.5),
	})

	assert.Greater(t, w.FlightDuration, 360*time.Minute)
	assert.Equal(t, forecast.SixHourly, w.Resolution)
	assert.InDelta(t, 0.55, w.Quality.UncertaintyFactor, 1e-9)
	assert.Equal(t, forecast.Medium, w.Quality.Confidence)
}

func TestSelectWindow_UncertaintyMarginAndForcedResolution(t *testing.T) {
	res := forecast.Hourly
	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime:        launchTime,
		Launch:            geo.NewPoint(52.1, 5.1),
		Specs:             specs(30000, 5, 0),
		UncertaintyMargin: 30 * time.Minute,
		Resolution:        &res,
	})

	assert.Equal(t, launchTime.Add(-90*time.Minute), w.Start)
	assert.Equal(t, launchTime.Add(w.FlightDuration+90*time.Minute), w.End)
	assert.Equal(t, forecast.Hourly, w.Resolution)
}

func TestSelectWindow_FallbackOnInvalidSpecs(t *testing.T) {
	bad := specs(30000, 5, 0)
	bad.PayloadMassKg = 0

	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime: launchTime,
		Launch:     geo.NewPoint(52.1, 5.1),
		Specs:      bad,
	})

	assert.True(t, w.Fallback)
	assert.Equal(t, launchTime.Add(-3*time.Hour), w.Start)
	assert.Equal(t, launchTime.Add(24*time.Hour), w.End)
	assert.Equal(t, 27, w.DurationHours)
	assert.Equal(t, forecast.ThreeHourly, w.Resolution)
	assert.Equal(t, forecast.Low, w.Quality.Confidence)
	assert.Equal(t, 0.8, w.Quality.UncertaintyFactor)
}

func TestSelectWindow_FallbackOnUnknownResolution(t *testing.T) {
	res := forecast.Resolution("weekly")
	w := newSelector().SelectWindow(forecast.Request{
		LaunchTime: launchTime,
		Launch:     geo.NewPoint(52.1, 5.1),
		Specs:      specs(30000, 5, 0),
		Resolution: &res,
	})
	assert.True(t, w.Fallback)
}

func shortWindow(location geo.Point) *forecast.Window {
	return &forecast.Window{
		Start:      launchTime.Add(-time.Hour),
		End:        launchTime.Add(3*time.Hour + 30*time.Minute),
		Resolution: forecast.ThreeHourly,
		Location:   location,
	}
}

func TestSelectModel_RegionalModelInsideCoverage(t *testing.T) {
	sel, err := newSelector().SelectModel(shortWindow(geo.NewPoint(39.74, -104.98)), launchTime.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "HRRR", sel.Model.Name)
	assert.Equal(t, 7, sel.Score)
	assert.NotEmpty(t, sel.Reasoning)

	require.Len(t, sel.Alternatives, 4)
	assert.Equal(t, "NAM", sel.Alternatives[0].Model.Name)
	assert.Equal(t, 7, sel.Alternatives[0].Score)
	assert.Equal(t, "GFS", sel.Alternatives[3].Model.Name)
	assert.Equal(t, 5, sel.Alternatives[3].Score)
}

func TestSelectModel_GlobalOutsideRegionalCoverage(t *testing.T) {
	sel, err := newSelector().SelectModel(shortWindow(geo.NewPoint(52.37, 4.89)), launchTime.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "ECMWF IFS", sel.Model.Name, "ties keep catalog order")
	require.Len(t, sel.Alternatives, 2)
	assert.Equal(t, "ICON", sel.Alternatives[0].Model.Name)
}

func TestSelectModel_HorizonFilter(t *testing.T) {
	w := shortWindow(geo.NewPoint(52.37, 4.89))

	sel, err := newSelector().SelectModel(w, w.End.Add(-300*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "GFS", sel.Model.Name)
	assert.Empty(t, sel.Alternatives)

	_, err = newSelector().SelectModel(w, w.End.Add(-400*time.Hour))
	assert.ErrorIs(t, err, forecast.ErrNoModelCoversHorizon)
}
