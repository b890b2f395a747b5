// Package openweathermap implements a surface-level weather.Provider backed
// by the OpenWeatherMap OneCall API.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/provider/resilience"
	"github.com/stratotrack/stratotrack/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultOneCallURL is the OpenWeatherMap OneCall API 3.0 base URL.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

	// Surface data without upper-air levels is a weaker input for drift.
	sampleQuality = 0.7
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key. Without it the provider covers nothing.
	APIKey string

	// OneCallURL is the OneCall API URL (optional, defaults to OneCall 3.0).
	OneCallURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// RateLimit is the soft requests-per-minute limit (default: 60).
	RateLimit int

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	oneCallURL string
	httpClient *resilience.Client
	rateLimit  int
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 60
	}

	return &Client{
		apiKey:     cfg.APIKey,
		oneCallURL: oneCallURL,
		httpClient: httpClient,
		rateLimit:  rateLimit,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Covers reports global coverage when an API key is configured.
func (c *Client) Covers(_, _ float64) bool {
	return c.apiKey != ""
}

// Regional returns false.
func (c *Client) Regional() bool {
	return false
}

// RateLimitPerMinute returns the soft rate limit.
func (c *Client) RateLimitPerMinute() int {
	return c.rateLimit
}

// GetWeather fetches hourly sea-level samples for the request window.
func (c *Client) GetWeather(ctx context.Context, req weather.Request) ([]weather.Sample, error) {
	url := fmt.Sprintf("%s?lat=%.6f&lon=%.6f&appid=%s&units=metric&exclude=current,minutely,daily,alerts",
		c.oneCallURL, req.Lat, req.Lon, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
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

	var owmResp oneCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	samples := toSamples(&owmResp)
	if len(samples) == 0 {
		return nil, &resilience.DataUnavailableError{
			Provider: ProviderName, Lat: req.Lat, Lon: req.Lon, Reason: "no complete hourly entries",
		}
	}

	c.logger.Debug().
		Float64("lat", req.Lat).
		Float64("lon", req.Lon).
		Int("samples", len(samples)).
		Msg("parsed openweathermap forecast")

	return weather.FilterRange(samples, req.Start, req.End), nil
}

// toSamples converts hourly entries, skipping any with a missing field.
// OneCall pressure is reduced to sea level, so samples sit at altitude 0.
func toSamples(resp *oneCallResponse) []weather.Sample {
	samples := make([]weather.Sample, 0, len(resp.Hourly))
	for _, h := range resp.Hourly {
		if h.Temp == nil || h.Pressure == nil || h.Humidity == nil || h.WindSpeed == nil || h.WindDeg == nil {
			continue
		}
		samples = append(samples, weather.Sample{
			Timestamp:   time.Unix(h.Dt, 0).UTC(),
			Altitude:    0,
			Temperature: *h.Temp,
			Pressure:    *h.Pressure,
			Humidity:    *h.Humidity,
			Quality:     sampleQuality,
			Source:      ProviderName,
		}.WithWind(*h.WindSpeed, *h.WindDeg))
	}
	return samples
}

// OpenWeatherMap API response structures.

type oneCallResponse struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Hourly []struct {
		Dt        int64    `json:"dt"`
		Temp      *float64 `json:"temp"`
		Pressure  *float64 `json:"pressure"`
		Humidity  *float64 `json:"humidity"`
		WindSpeed *float64 `json:"wind_speed"`
		WindDeg   *float64 `json:"wind_deg"`
		WindGust  *float64 `json:"wind_gust"`
	} `json:"hourly"`
}
