package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/weather"
	"github.com/stratotrack/stratotrack/internal/weather/openmeteo"
)

const forecastPayload = `{
  "latitude": 39.74,
  "longitude": -104.99,
  "elevation": 1600.0,
  "hourly": {
    "time": ["2026-06-01T12:00", "2026-06-01T13:00"],
    "temperature_2m": [25.0, null],
    "relative_humidity_2m": [30.0, 28.0],
    "surface_pressure": [835.0, 834.0],
    "wind_speed_10m": [3.0, 4.0],
    "wind_direction_10m": [180.0, 190.0],
    "temperature_850hPa": [20.0, 21.0],
    "relative_humidity_850hPa": [35.0, 33.0],
    "wind_speed_850hPa": [5.0, 6.0],
    "wind_direction_850hPa": [200.0, 205.0],
    "geopotential_height_850hPa": [1500.0, 1505.0],
    "temperature_500hPa": [-10.0, -9.5],
    "relative_humidity_500hPa": [20.0, 22.0],
    "wind_speed_500hPa": [20.0, null],
    "wind_direction_500hPa": [250.0, 255.0],
    "geopotential_height_500hPa": [5800.0, 5810.0]
  }
}`

func TestParseForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "39.7400", q.Get("latitude"))
		assert.Equal(t, "UTC", q.Get("timezone"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Equal(t, "gfs_seamless", q.Get("models"))
		assert.Contains(t, q.Get("hourly"), "geopotential_height_500hPa")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastPayload))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL})
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	samples, err := client.GetWeather(context.Background(), weather.Request{
		Lat: 39.74, Lon: -104.99, Start: start, End: start.Add(2 * time.Hour), Model: "GFS",
	})
	require.NoError(t, err)

	// Hour 12: surface + 500 hPa (850 hPa lies below ground). Hour 13: surface
	// temperature and 500 hPa wind are null, 850 hPa is below ground.
	require.Len(t, samples, 2)

	surface := samples[0]
	assert.Equal(t, start, surface.Timestamp)
	assert.InDelta(t, 1602.0, surface.Altitude, 1e-9)
	assert.Equal(t, 835.0, surface.Pressure)

	upper := samples[1]
	assert.Equal(t, 5800.0, upper.Altitude)
	assert.Equal(t, 500.0, upper.Pressure)
	assert.Equal(t, -10.0, upper.Temperature)
	assert.Equal(t, 20.0, upper.WindSpeed)
	assert.Equal(t, openmeteo.ProviderName, upper.Source)
}

func TestParseForecast_MissingTimeAxis(t *testing.T) {
	_, err := openmeteo.ParseForecast(&openmeteo.ForecastResponse{})
	assert.Error(t, err)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL})
	_, err := client.GetWeather(context.Background(), weather.Request{
		Lat: 1, Lon: 1, Start: time.Now(), End: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
}
