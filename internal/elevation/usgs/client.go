// Package usgs implements an elevation.Provider backed by the USGS Elevation
// Point Query Service, which covers the contiguous United States.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	ProviderName = "usgs"

	// DefaultBaseURL is the EPQS base URL.
	DefaultBaseURL = "https://epqs.nationalmap.gov"

	// NoDataValue is returned by EPQS for points outside its coverage.
	NoDataValue = -1000000
)

// ClientConfig holds configuration for the USGS client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Region bounds the provider coverage (default: contiguous US).
	Region *geo.Region

	// RateLimit is the soft requests-per-minute limit (default: 600).
	RateLimit int

	// Logger for client operations.
	Logger zerolog.Logger

	// Now overrides the sample timestamp clock, for tests.
	Now func() time.Time
}

// Client is a USGS EPQS client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	region     geo.Region
	rateLimit  int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new USGS elevation client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		region:     geo.ContiguousUS,
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
	if cfg.Region != nil {
		c.region = *cfg.Region
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

// Covers reports whether the point lies inside the service region.
func (c *Client) Covers(lat, lon float64) bool { return c.region.Contains(lat, lon) }

// Regional returns true.
func (c *Client) Regional() bool { return true }

// RateLimitPerMinute returns the soft rate limit.
func (c *Client) RateLimitPerMinute() int { return c.rateLimit }

// pointResponse is the EPQS JSON body. Value is a number or a numeric string
// depending on the service version.
type pointResponse struct {
	Value json.RawMessage `json:"value"`
}

// GetElevation fetches the elevation at a single coordinate.
func (c *Client) GetElevation(ctx context.Context, lat, lon float64) (elevation.Sample, error) {
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("units", "Meters")
	q.Set("wkid", "4326")
	q.Set("includeDate", "false")

	reqURL := c.baseURL + "/v1/json?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return elevation.Sample{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return elevation.Sample{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return elevation.Sample{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body pointResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return elevation.Sample{}, fmt.Errorf("decoding response: %w", err)
	}

	value, err := parseValue(body.Value)
	if err != nil {
		return elevation.Sample{}, &resilience.DataUnavailableError{Provider: ProviderName, Lat: lat, Lon: lon, Reason: err.Error()}
	}
	if value <= NoDataValue {
		return elevation.Sample{}, &resilience.DataUnavailableError{Provider: ProviderName, Lat: lat, Lon: lon, Reason: "no data at location"}
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("elevation", value).
		Msg("usgs elevation")

	return elevation.Sample{
		Lat:        lat,
		Lon:        lon,
		Elevation:  value,
		DataSource: ProviderName,
		Timestamp:  c.now().UTC(),
	}, nil
}

func parseValue(raw json.RawMessage) (float64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}
