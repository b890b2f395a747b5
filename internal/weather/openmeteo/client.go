// Package openmeteo implements a weather.Provider backed by the Open-Meteo
// forecast API, using its pressure-level variables for upper-air winds.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/provider/resilience"
	"github.com/stratotrack/stratotrack/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo forecast API base URL.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	timeLayout = "2006-01-02T15:04"

	pressureLevelQuality = 0.9
	surfaceQuality       = 0.85
)

// PressureLevels are the isobaric levels requested, in hPa.
var PressureLevels = []int{1000, 975, 950, 925, 900, 850, 800, 700, 600, 500, 400, 300, 250, 200, 150, 100, 70, 50, 30}

// modelNames maps model hints to Open-Meteo model identifiers.
var modelNames = map[string]string{
	"gfs":   "gfs_seamless",
	"ecmwf": "ecmwf_ifs025",
	"icon":  "icon_seamless",
	"hrrr":  "gfs_hrrr",
	"nam":   "ncep_nam_conus",
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// RateLimit is the soft requests-per-minute limit reported to callers (default: 600).
	RateLimit int

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo forecast API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	rateLimit  int
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo weather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 600
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		rateLimit:  rateLimit,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// Covers reports global coverage.
func (c *Client) Covers(_, _ float64) bool { return true }

// Regional returns false; Open-Meteo is global.
func (c *Client) Regional() bool { return false }

// RateLimitPerMinute returns the soft rate limit.
func (c *Client) RateLimitPerMinute() int { return c.rateLimit }

// GetWeather fetches hourly surface and pressure-level samples.
func (c *Client) GetWeather(ctx context.Context, req weather.Request) ([]weather.Sample, error) {
	reqURL := c.buildURL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var fr ForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	samples, err := ParseForecast(&fr)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Float64("lat", req.Lat).
		Float64("lon", req.Lon).
		Int("samples", len(samples)).
		Msg("parsed open-meteo forecast")

	return samples, nil
}

func (c *Client) buildURL(req weather.Request) string {
	hourly := []string{"temperature_2m", "relative_humidity_2m", "surface_pressure", "wind_speed_10m", "wind_direction_10m"}
	for _, lvl := range PressureLevels {
		for _, v := range []string{"temperature", "relative_humidity", "wind_speed", "wind_direction", "geopotential_height"} {
			hourly = append(hourly, fmt.Sprintf("%s_%dhPa", v, lvl))
		}
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", req.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", req.Lon))
	q.Set("hourly", strings.Join(hourly, ","))
	q.Set("start_date", req.Start.UTC().Format("2006-01-02"))
	q.Set("end_date", req.End.UTC().Format("2006-01-02"))
	q.Set("timezone", "UTC")
	q.Set("wind_speed_unit", "ms")
	if m, ok := modelNames[strings.ToLower(req.Model)]; ok {
		q.Set("models", m)
	}

	return c.baseURL + "?" + q.Encode()
}

// ForecastResponse is the Open-Meteo forecast payload.
type ForecastResponse struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Elevation float64                    `json:"elevation"`
	Hourly    map[string]json.RawMessage `json:"hourly"`
}

// ParseForecast converts an Open-Meteo payload into samples. Any (hour,
// level) entry with a null field is skipped.
func ParseForecast(fr *ForecastResponse) ([]weather.Sample, error) {
	var times []string
	raw, ok := fr.Hourly["time"]
	if !ok {
		return nil, fmt.Errorf("decoding response: missing hourly time axis")
	}
	if err := json.Unmarshal(raw, &times); err != nil {
		return nil, fmt.Errorf("decoding time axis: %w", err)
	}

	series := func(name string) []*float64 {
		raw, ok := fr.Hourly[name]
		if !ok {
			return nil
		}
		var vals []*float64
		if err := json.Unmarshal(raw, &vals); err != nil {
			return nil
		}
		return vals
	}
	at := func(vals []*float64, i int) (float64, bool) {
		if i >= len(vals) || vals[i] == nil {
			return 0, false
		}
		return *vals[i], true
	}

	surfT := series("temperature_2m")
	surfH := series("relative_humidity_2m")
	surfP := series("surface_pressure")
	surfWS := series("wind_speed_10m")
	surfWD := series("wind_direction_10m")

	type levelSeries struct {
		pressure           float64
		t, rh, ws, wd, gph []*float64
	}
	levels := make([]levelSeries, 0, len(PressureLevels))
	for _, lvl := range PressureLevels {
		levels = append(levels, levelSeries{
			pressure: float64(lvl),
			t:        series(fmt.Sprintf("temperature_%dhPa", lvl)),
			rh:       series(fmt.Sprintf("relative_humidity_%dhPa", lvl)),
			ws:       series(fmt.Sprintf("wind_speed_%dhPa", lvl)),
			wd:       series(fmt.Sprintf("wind_direction_%dhPa", lvl)),
			gph:      series(fmt.Sprintf("geopotential_height_%dhPa", lvl)),
		})
	}

	samples := make([]weather.Sample, 0, len(times)*(len(levels)+1))
	for i, ts := range times {
		t, err := time.ParseInLocation(timeLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing time %q: %w", ts, err)
		}

		surfaceAlt := fr.Elevation + 2
		if temp, ok1 := at(surfT, i); ok1 {
			rh, ok2 := at(surfH, i)
			p, ok3 := at(surfP, i)
			ws, ok4 := at(surfWS, i)
			wd, ok5 := at(surfWD, i)
			if ok2 && ok3 && ok4 && ok5 {
				samples = append(samples, weather.Sample{
					Timestamp:   t,
					Altitude:    surfaceAlt,
					Temperature: temp,
					Pressure:    p,
					Humidity:    rh,
					Quality:     surfaceQuality,
					Source:      ProviderName,
				}.WithWind(ws, wd))
			}
		}

		for _, lv := range levels {
			temp, ok1 := at(lv.t, i)
			rh, ok2 := at(lv.rh, i)
			ws, ok3 := at(lv.ws, i)
			wd, ok4 := at(lv.wd, i)
			gph, ok5 := at(lv.gph, i)
			if !(ok1 && ok2 && ok3 && ok4 && ok5) {
				continue
			}
			// Levels below ground are extrapolated by the model; skip them.
			if gph < surfaceAlt {
				continue
			}
			samples = append(samples, weather.Sample{
				Timestamp:   t,
				Altitude:    gph,
				Temperature: temp,
				Pressure:    lv.pressure,
				Humidity:    rh,
				Quality:     pressureLevelQuality,
				Source:      ProviderName,
			}.WithWind(ws, wd))
		}
	}

	return samples, nil
}
