package terrain

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/geo"
)

const (
	highAltitude = 3000.0

	// Sample-to-sample distances are scaled by this to form the neighbourhood radius.
	defaultNeighbourFactor = 1.5

	// nearEqualShare is the fraction of an obstacle's height within which a
	// neighbour counts as part of the same ridge line.
	nearEqualShare = 0.1

	// densityCeiling is the obstacle density (per km²) that maxes out its
	// difficulty contribution.
	densityCeiling = 5.0
)

// Config holds configuration for the terrain analyzer.
type Config struct {
	// MinObstacleHeight is the minimum height above the surrounding terrain
	// for a peak to count as an obstacle (default: 20 m).
	MinObstacleHeight float64

	// ClearanceMargin is added to obstacle elevations to get the required
	// clearance (default: 150 m).
	ClearanceMargin float64

	// NeighbourFactor scales the estimated sample spacing into the
	// neighbourhood radius (default: 1.5).
	NeighbourFactor float64

	// Logger for analyzer operations.
	Logger zerolog.Logger
}

// Analyzer derives terrain attributes from elevation samples. It holds no
// per-call state and is safe for concurrent use.
type Analyzer struct {
	minObstacle float64
	clearance   float64
	factor      float64
	logger      zerolog.Logger
}

// NewAnalyzer creates a new terrain analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.MinObstacleHeight <= 0 {
		cfg.MinObstacleHeight = 20
	}
	if cfg.ClearanceMargin <= 0 {
		cfg.ClearanceMargin = 150
	}
	if cfg.NeighbourFactor <= 0 {
		cfg.NeighbourFactor = defaultNeighbourFactor
	}
	return &Analyzer{
		minObstacle: cfg.MinObstacleHeight,
		clearance:   cfg.ClearanceMargin,
		factor:      cfg.NeighbourFactor,
		logger:      cfg.Logger,
	}
}

// ClearanceMargin returns the configured obstacle clearance.
func (a *Analyzer) ClearanceMargin() float64 {
	return a.clearance
}

// Analyze computes terrain attributes, obstacles, difficulty and complexity
// for a sample set.
func (a *Analyzer) Analyze(samples []elevation.Sample) (*Analysis, error) {
	res, _, err := a.analyze(samples)
	return res, err
}

func (a *Analyzer) analyze(samples []elevation.Sample) (*Analysis, *index, error) {
	if len(samples) == 0 {
		return nil, nil, ErrNoSamples
	}

	coords := make([]geo.Point, len(samples))
	for i, s := range samples {
		if err := geo.Validate(s.Lat, s.Lon); err != nil {
			return nil, nil, fmt.Errorf("%w %d: %w", ErrInvalidSample, i, err)
		}
		if math.IsNaN(s.Elevation) || math.IsInf(s.Elevation, 0) {
			return nil, nil, fmt.Errorf("%w %d: elevation %v", ErrInvalidSample, i, s.Elevation)
		}
		coords[i] = geo.NewPoint(s.Lat, s.Lon)
	}

	ix := newIndex(coords)
	spacing := ix.spacing()
	radius := spacing * a.factor

	res := &Analysis{
		Points:       make([]Point, len(samples)),
		Spacing:      spacing,
		MinElevation: math.Inf(1),
		MaxElevation: math.Inf(-1),
		AreaKm2:      geo.AreaKm2(coords),
	}

	neighbours := make([][]neighbour, len(samples))
	for i, s := range samples {
		neighbours[i] = ix.within(coords[i], radius, i)
		p := a.point(s, samples, neighbours[i])
		res.Points[i] = p

		res.MeanSlope += p.Slope
		res.MaxSlope = math.Max(res.MaxSlope, p.Slope)
		res.MeanRoughness += p.Roughness
		res.MeanAccessibility += p.Accessibility
		res.MinElevation = math.Min(res.MinElevation, s.Elevation)
		res.MaxElevation = math.Max(res.MaxElevation, s.Elevation)
	}

	n := float64(len(samples))
	res.MeanSlope /= n
	res.MeanRoughness /= n
	res.MeanAccessibility /= n

	for i := range samples {
		if o, ok := a.obstacle(i, res.Points, neighbours[i]); ok {
			res.Obstacles = append(res.Obstacles, o)
		}
	}
	if res.AreaKm2 > 0 {
		res.ObstacleDensity = float64(len(res.Obstacles)) / res.AreaKm2
	}

	res.Difficulty = Difficulty(res.MeanSlope, res.MeanRoughness, res.MeanAccessibility, res.ObstacleDensity)
	res.Complexity = ClassifyComplexity(res.Variation(), res.MeanRoughness)

	a.logger.Debug().
		Int("points", len(res.Points)).
		Float64("spacing_m", spacing).
		Int("obstacles", len(res.Obstacles)).
		Int("difficulty", res.Difficulty).
		Str("complexity", string(res.Complexity)).
		Msg("analyzed terrain")

	return res, ix, nil
}

func (a *Analyzer) point(s elevation.Sample, samples []elevation.Sample, ns []neighbour) Point {
	p := Point{Lat: s.Lat, Lon: s.Lon, Elevation: s.Elevation}

	elevations := []float64{s.Elevation}
	for _, n := range ns {
		other := samples[n.idx].Elevation
		elevations = append(elevations, other)
		if n.dist > 0 {
			p.Slope = math.Max(p.Slope, math.Atan(math.Abs(other-s.Elevation)/n.dist)*180/math.Pi)
		}
	}

	p.SlopeClass = ClassifySlope(p.Slope)
	p.Roughness = clamp01(stddev(elevations) / 100)

	acc := 1 - 0.6*p.Slope/45 - 0.4*p.Roughness
	if s.Elevation > highAltitude {
		acc -= 0.1
	}
	p.Accessibility = clamp01(acc)
	return p
}

// obstacle reports whether point i is a local maximum standing at least the
// minimum obstacle height above its lowest neighbour.
func (a *Analyzer) obstacle(i int, points []Point, ns []neighbour) (Obstacle, bool) {
	if len(ns) == 0 {
		return Obstacle{}, false
	}
	p := points[i]
	lowest := p.Elevation
	for _, n := range ns {
		e := points[n.idx].Elevation
		if e >= p.Elevation {
			return Obstacle{}, false
		}
		lowest = math.Min(lowest, e)
	}

	height := p.Elevation - lowest
	if height < a.minObstacle {
		return Obstacle{}, false
	}

	nearEqual := 0
	for _, n := range ns {
		if p.Elevation-points[n.idx].Elevation <= nearEqualShare*height {
			nearEqual++
		}
	}

	var kind ObstacleType
	switch {
	case height >= 300:
		kind = Mountain
	case height >= 100:
		kind = Hill
	case nearEqual >= 2:
		kind = Ridge
	case p.Slope >= 60:
		kind = Tower
	case p.Slope >= 45:
		kind = Building
	default:
		kind = Hill
	}

	return Obstacle{
		Lat:               p.Lat,
		Lon:               p.Lon,
		Elevation:         p.Elevation,
		Height:            height,
		Type:              kind,
		RequiredClearance: p.Elevation + a.clearance,
		Impact:            ImpactFor(height),
	}, true
}

// Difficulty rates terrain 1 (easy) to 10 (hardest) from slope in degrees,
// roughness, accessibility and obstacle density per km².
func Difficulty(slope, roughness, accessibility, density float64) int {
	score := 0.3*math.Min(1, slope/45) +
		0.25*clamp01(roughness) +
		0.25*(1-clamp01(accessibility)) +
		0.2*math.Min(1, density/densityCeiling)
	d := 1 + int(math.Round(9*score))
	return max(1, min(10, d))
}

// AnalyzeLandingSite analyses the suitability of site using samples around
// it.
func (a *Analyzer) AnalyzeLandingSite(site geo.Point, samples []elevation.Sample) (*LandingSite, *Analysis, error) {
	if err := site.Validate(); err != nil {
		return nil, nil, err
	}
	res, ix, err := a.analyze(samples)
	if err != nil {
		return nil, nil, err
	}

	idx, _ := ix.nearest(site, res.Spacing)
	ls := a.landingSite(res.Points[idx], res)
	ls.Lat, ls.Lon = site.Lat, site.Lon
	return &ls, res, nil
}

// RankLandingSites returns up to n sample points ordered from easiest to
// hardest landing.
func (a *Analyzer) RankLandingSites(res *Analysis, n int) []LandingSite {
	if res == nil || n <= 0 {
		return nil
	}
	sites := make([]LandingSite, len(res.Points))
	for i, p := range res.Points {
		sites[i] = a.landingSite(p, res)
	}
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].Difficulty != sites[j].Difficulty {
			return sites[i].Difficulty < sites[j].Difficulty
		}
		return sites[i].AccessibilityScore > sites[j].AccessibilityScore
	})
	if len(sites) > n {
		sites = sites[:n]
	}
	return sites
}

func (a *Analyzer) landingSite(p Point, res *Analysis) LandingSite {
	nearby := a.obstaclesNear(p.Geo(), res.Obstacles, 1000)
	density := res.ObstacleDensity

	ls := LandingSite{
		Lat:                p.Lat,
		Lon:                p.Lon,
		Elevation:          p.Elevation,
		Difficulty:         Difficulty(p.Slope, p.Roughness, p.Accessibility, density),
		AccessibilityScore: p.Accessibility,
		SlopeClass:         p.SlopeClass,
		Roughness:          p.Roughness,
		RiskFactors:        []string{},
		Recommendations:    []string{},
	}
	ls.Suitability = SuitabilityFor(ls.Difficulty)

	add := func(risk, rec string) {
		ls.RiskFactors = append(ls.RiskFactors, risk)
		ls.Recommendations = append(ls.Recommendations, rec)
	}

	switch p.SlopeClass {
	case SlopeCliff:
		add(fmt.Sprintf("cliff-grade slope (%.0f°)", p.Slope), "avoid recovery on foot; plan a rope-assisted or aerial recovery")
	case SlopeSteep:
		add(fmt.Sprintf("steep slope (%.0f°)", p.Slope), "expect the payload to slide or roll after touchdown")
	}
	if p.Roughness > 0.5 {
		add("rough, broken terrain", "bring gear for off-trail recovery")
	}
	if p.Accessibility < 0.4 {
		add("poor ground access", "identify the nearest road or trail before launch")
	}
	if p.Elevation > highAltitude {
		add(fmt.Sprintf("high elevation (%.0f m)", p.Elevation), "prepare for cold and thin air at the recovery site")
	}
	if len(nearby) > 0 {
		add(fmt.Sprintf("%d terrain obstacle(s) within 1 km", len(nearby)), "check the parachute line for snag hazards on nearby peaks")
	}
	if len(ls.RiskFactors) == 0 {
		ls.Recommendations = append(ls.Recommendations, "no terrain hazards detected; standard recovery")
	}
	return ls
}

func (a *Analyzer) obstaclesNear(p geo.Point, obstacles []Obstacle, radius float64) []Obstacle {
	var out []Obstacle
	for _, o := range obstacles {
		if geo.DistanceMeters(p, o.Geo()) <= radius {
			out = append(out, o)
		}
	}
	return out
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
