// Package worker provides background cache warming for stratotrack.
package worker

import (
	"time"

	"github.com/stratotrack/stratotrack/internal/config"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/trajectory"
)

// WarmConfig holds configuration for the cache warming job.
type WarmConfig struct {
	// Sites are the launch sites to warm.
	// If empty, uses DefaultSites.
	Sites []config.Site

	// Concurrency is the number of sites warmed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the warming of one site.
	// Default: 60 seconds
	Timeout time.Duration

	// GridRadius and GridSpacing size the elevation grid around each site, in
	// meters. A zero radius warms the site point only.
	// Default: 5000 and 500 (DefaultWarmConfig)
	GridRadius  float64
	GridSpacing float64

	// Horizon is how far ahead of the next full hour weather is warmed.
	// Default: 24 hours
	Horizon time.Duration

	// LaunchInterval spaces the launch times warmed within the horizon.
	// Default: 6 hours
	LaunchInterval time.Duration

	// Specs is the reference flight used to size weather windows.
	// Default: DefaultSpecs
	Specs trajectory.BalloonSpecs
}

// DefaultWarmConfig returns the default warming configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Sites:          DefaultSites(),
		Concurrency:    3,
		Timeout:        60 * time.Second,
		GridRadius:     5000,
		GridSpacing:    500,
		Horizon:        24 * time.Hour,
		LaunchInterval: 6 * time.Hour,
		Specs:          DefaultSpecs(),
	}
}

// DefaultSites returns frequently used launch sites.
func DefaultSites() []config.Site {
	return []config.Site{
		{Name: "Denver", Point: geo.NewPoint(39.7392, -104.9903)},
		{Name: "Bern", Point: geo.NewPoint(46.9480, 7.4474)},
		{Name: "Albuquerque", Point: geo.NewPoint(35.0844, -106.6504)},
	}
}

// DefaultSpecs is a typical 1200 g latex sounding flight.
func DefaultSpecs() trajectory.BalloonSpecs {
	return trajectory.BalloonSpecs{
		VolumeM3:      3.5,
		BalloonMassKg: 1.2,
		PayloadMassKg: 1.5,
		BurstAltitude: 30000,
		AscentRate:    5,
	}
}

// FromConfig builds a WarmConfig from the worker environment settings.
func FromConfig(c config.WorkerConfig) WarmConfig {
	out := DefaultWarmConfig()
	if len(c.LaunchSites) > 0 {
		out.Sites = c.LaunchSites
	}
	if c.Concurrency > 0 {
		out.Concurrency = c.Concurrency
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	if c.GridRadius > 0 {
		out.GridRadius = c.GridRadius
	}
	if c.GridSpacing > 0 {
		out.GridSpacing = c.GridSpacing
	}
	if c.Horizon > 0 {
		out.Horizon = c.Horizon
	}
	return out
}

// Grid returns the elevation points warmed around site.
func (c WarmConfig) Grid(site config.Site) []geo.Point {
	return geo.Grid(site.Point, c.GridRadius, c.GridSpacing)
}

// LaunchTimes returns the launch times warmed for a run starting at now:
// the next full hour and every LaunchInterval after it within the horizon.
func (c WarmConfig) LaunchTimes(now time.Time) []time.Time {
	first := now.UTC().Truncate(time.Hour).Add(time.Hour)
	if c.LaunchInterval <= 0 {
		return []time.Time{first}
	}
	var out []time.Time
	for t := first; !t.After(first.Add(c.Horizon)); t = t.Add(c.LaunchInterval) {
		out = append(out, t)
	}
	return out
}

// TotalPoints returns the number of elevation points warmed per run.
func (c WarmConfig) TotalPoints() int {
	total := 0
	for _, site := range c.Sites {
		total += len(c.Grid(site))
	}
	return total
}

func (c WarmConfig) withDefaults() WarmConfig {
	def := DefaultWarmConfig()
	if len(c.Sites) == 0 {
		c.Sites = def.Sites
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.GridRadius < 0 {
		c.GridRadius = 0
	}
	if c.GridSpacing <= 0 {
		c.GridSpacing = def.GridSpacing
	}
	if c.Horizon <= 0 {
		c.Horizon = def.Horizon
	}
	if c.LaunchInterval <= 0 {
		c.LaunchInterval = def.LaunchInterval
	}
	if c.Specs == (trajectory.BalloonSpecs{}) {
		c.Specs = def.Specs
	}
	return c
}
