// Package openmeteo implements an elevation.BatchProvider backed by the
// Open-Meteo elevation API (Copernicus DEM, global coverage).
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

const (
	// ProviderName identifies this elevation provider.
	ProviderName = "open-meteo-elevation"

	// DefaultBaseURL is the Open-Meteo elevation API base URL.
	DefaultBaseURL = "https://api.open-meteo.com"

	// MaxBatch is the largest number of coordinates per request.
	MaxBatch = 100
)

// ClientConfig holds configuration for the Open-Meteo elevation client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// RateLimit is the soft requests-per-minute limit (default: 600).
	RateLimit int

	// Logger for client operations.
	Logger zerolog.Logger

	// Now overrides the sample timestamp clock, for tests.
	Now func() time.Time
}

// Client is an Open-Meteo elevation API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	rateLimit  int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Open-Meteo elevation client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		rateLimit:  cfg.RateLimit,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	if c.rateLimit == 0 {
		c.rateLimit = 600
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// Covers reports global coverage.
func (c *Client) Covers(_, _ float64) bool { return true }

// Regional returns false.
func (c *Client) Regional() bool { return false }

// RateLimitPerMinute returns the soft rate limit.
func (c *Client) RateLimitPerMinute() int { return c.rateLimit }

// MaxBatchSize returns the per-request coordinate limit.
func (c *Client) MaxBatchSize() int { return MaxBatch }

type elevationResponse struct {
	Elevation []*float64 `json:"elevation"`
}

// GetElevation fetches the elevation at a single coordinate.
func (c *Client) GetElevation(ctx context.Context, lat, lon float64) (elevation.Sample, error) {
	samples, err := c.GetBatchElevation(ctx, []geo.Point{geo.NewPoint(lat, lon)})
	if err != nil {
		return elevation.Sample{}, err
	}
	return samples[0], nil
}

// GetBatchElevation fetches elevations for up to MaxBatch coordinates. Any
// missing value fails the whole batch with a DataUnavailableError so the
// caller can fall back per point.
func (c *Client) GetBatchElevation(ctx context.Context, points []geo.Point) ([]elevation.Sample, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if len(points) > MaxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(points), MaxBatch)
	}

	lats := make([]string, len(points))
	lons := make([]string, len(points))
	for i, p := range points {
		lats[i] = strconv.FormatFloat(p.Lat, 'f', 6, 64)
		lons[i] = strconv.FormatFloat(p.Lon, 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("latitude", strings.Join(lats, ","))
	q.Set("longitude", strings.Join(lons, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/elevation?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(body.Elevation) != len(points) {
		return nil, fmt.Errorf("%w: got %d values for %d points", elevation.ErrBatchMismatch, len(body.Elevation), len(points))
	}

	now := c.now().UTC()
	samples := make([]elevation.Sample, len(points))
	for i, v := range body.Elevation {
		if v == nil || math.IsNaN(*v) {
			return nil, &resilience.DataUnavailableError{
				Provider: ProviderName,
				Lat:      points[i].Lat,
				Lon:      points[i].Lon,
				Reason:   "no elevation value",
			}
		}
		samples[i] = elevation.Sample{
			Lat:        points[i].Lat,
			Lon:        points[i].Lon,
			Elevation:  *v,
			DataSource: ProviderName,
			Timestamp:  now,
		}
	}

	c.logger.Debug().Int("points", len(points)).Msg("open-meteo elevation batch")

	return samples, nil
}
