// Package openelevation implements an elevation.BatchProvider backed by an
// Open-Elevation lookup server.
package openelevation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

const (
	// ProviderName identifies this elevation provider.
	ProviderName = "open-elevation"

	// DefaultBaseURL is the public Open-Elevation server.
	DefaultBaseURL = "https://api.open-elevation.com"

	// MaxBatch is the largest number of coordinates per request.
	MaxBatch = 512

	// NoDataValue marks voids in the underlying SRTM tiles.
	NoDataValue = -32768
)

// ClientConfig holds configuration for the Open-Elevation client.
type ClientConfig struct {
	// BaseURL is the server base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// RateLimit is the soft requests-per-minute limit (default: 60).
	RateLimit int

	// Logger for client operations.
	Logger zerolog.Logger

	// Now overrides the sample timestamp clock, for tests.
	Now func() time.Time
}

// Client is an Open-Elevation client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	rateLimit  int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Open-Elevation client.
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
		c.rateLimit = 60
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

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type lookupRequest struct {
	Locations []location `json:"locations"`
}

type lookupResult struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation"`
}

type lookupResponse struct {
	Results []lookupResult `json:"results"`
}

// GetElevation fetches the elevation at a single coordinate.
func (c *Client) GetElevation(ctx context.Context, lat, lon float64) (elevation.Sample, error) {
	samples, err := c.GetBatchElevation(ctx, []geo.Point{geo.NewPoint(lat, lon)})
	if err != nil {
		return elevation.Sample{}, err
	}
	return samples[0], nil
}

// GetBatchElevation posts up to MaxBatch coordinates in one lookup.
func (c *Client) GetBatchElevation(ctx context.Context, points []geo.Point) ([]elevation.Sample, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if len(points) > MaxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(points), MaxBatch)
	}

	body := lookupRequest{Locations: make([]location, len(points))}
	for i, p := range points {
		body.Locations[i] = location{Latitude: p.Lat, Longitude: p.Lon}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/lookup", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(lr.Results) != len(points) {
		return nil, fmt.Errorf("%w: got %d results for %d points", elevation.ErrBatchMismatch, len(lr.Results), len(points))
	}

	now := c.now().UTC()
	samples := make([]elevation.Sample, len(points))
	for i, r := range lr.Results {
		if r.Elevation == nil || *r.Elevation <= NoDataValue {
			return nil, &resilience.DataUnavailableError{
				Provider: ProviderName,
				Lat:      points[i].Lat,
				Lon:      points[i].Lon,
				Reason:   "void in elevation data",
			}
		}
		samples[i] = elevation.Sample{
			Lat:        points[i].Lat,
			Lon:        points[i].Lon,
			Elevation:  *r.Elevation,
			DataSource: ProviderName,
			Timestamp:  now,
		}
	}

	c.logger.Debug().Int("points", len(points)).Msg("open-elevation lookup")

	return samples, nil
}
