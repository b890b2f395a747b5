package terrain_test

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/terrain"
)

var centre = geo.NewPoint(46.5, 8.0)

func newAnalyzer() *terrain.Analyzer {
	return terrain.NewAnalyzer(terrain.Config{Logger: zerolog.Nop()})
}

// grid builds a (2n+1)² square grid around centre with elevations from elev(i, j),
// where i counts east and j north.
func grid(n int, spacing float64, elev func(i, j int) float64) []elevation.Sample {
	var out []elevation.Sample
	for j := -n; j <= n; j++ {
		for i := -n; i <= n; i++ {
			p := geo.Offset(centre, float64(i)*spacing, float64(j)*spacing)
			out = append(out, elevation.Sample{Lat: p.Lat, Lon: p.Lon, Elevation: elev(i, j), DataSource: "test"})
		}
	}
	return out
}

func peak(height float64) func(i, j int) float64 {
	return func(i, j int) float64 {
		if i == 0 && j == 0 {
			return 100 + height
		}
		return 100
	}
}

func TestAnalyze_FlatTerrain(t *testing.T) {
	res, err := newAnalyzer().Analyze(grid(2, 500, func(int, int) float64 { return 120 }))
	require.NoError(t, err)

	assert.Len(t, res.Points, 25)
	assert.InDelta(t, 500, res.Spacing, 1)
	assert.Zero(t, res.MaxSlope)
	assert.Zero(t, res.MeanRoughness)
	assert.Equal(t, 1.0, res.MeanAccessibility)
	assert.Empty(t, res.Obstacles)
	assert.Equal(t, 1, res.Difficulty)
	assert.Equal(t, terrain.ComplexityFlat, res.Complexity)
	assert.InDelta(t, 4, res.AreaKm2, 0.1)
	for _, p := range res.Points {
		assert.Equal(t, terrain.SlopeFlat, p.SlopeClass)
	}
}

func TestAnalyze_IsolatedHill(t *testing.T) {
	res, err := newAnalyzer().Analyze(grid(2, 500, peak(100)))
	require.NoError(t, err)

	require.Len(t, res.Obstacles, 1)
	o := res.Obstacles[0]
	assert.Equal(t, terrain.Hill, o.Type)
	assert.InDelta(t, 100, o.Height, 1e-9)
	assert.Equal(t, terrain.ImpactBlocking, o.Impact)
	assert.InDelta(t, 350, o.RequiredClearance, 1e-9)

	top := res.Points[12]
	assert.InDelta(t, math.Atan(100.0/500)*180/math.Pi, top.Slope, 0.05)
	assert.Equal(t, terrain.SlopeGentle, top.SlopeClass)
	assert.Greater(t, top.Roughness, 0.0)
	assert.Less(t, top.Accessibility, 1.0)
	assert.Equal(t, 100.0, res.Variation())
}

func TestAnalyze_ObstacleTypes(t *testing.T) {
	tests := []struct {
		name     string
		spacing  float64
		elev     func(i, j int) float64
		expected terrain.ObstacleType
		impact   terrain.Impact
	}{
		{"mountain", 1000, peak(400), terrain.Mountain, terrain.ImpactBlocking},
		{"tower", 10, peak(30), terrain.Tower, terrain.ImpactModerate},
		{"building", 20, peak(25), terrain.Building, terrain.ImpactModerate},
		{"ridge", 500, func(i, j int) float64 {
			switch {
			case j == 0 && i == 0:
				return 160
			case j == 0 && (i == -1 || i == 1):
				return 155
			}
			return 100
		}, terrain.Ridge, terrain.ImpactMajor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newAnalyzer().Analyze(grid(2, tt.spacing, tt.elev))
			require.NoError(t, err)
			require.Len(t, res.Obstacles, 1)
			assert.Equal(t, tt.expected, res.Obstacles[0].Type)
			assert.Equal(t, tt.impact, res.Obstacles[0].Impact)
		})
	}
}

func TestAnalyze_SmallBumpIsNotAnObstacle(t *testing.T) {
	res, err := newAnalyzer().Analyze(grid(2, 500, peak(15)))
	require.NoError(t, err)
	assert.Empty(t, res.Obstacles)
}

func TestAnalyze_ExtremeTerrain(t *testing.T) {
	res, err := newAnalyzer().Analyze(grid(3, 500, func(i, j int) float64 {
		if (i+j)%2 == 0 {
			return 500
		}
		return 3000
	}))
	require.NoError(t, err)

	assert.Equal(t, terrain.ComplexityExtreme, res.Complexity)
	assert.Equal(t, 1.0, res.MeanRoughness)
	assert.Equal(t, terrain.SlopeCliff, terrain.ClassifySlope(res.MaxSlope))
	assert.GreaterOrEqual(t, res.Difficulty, 8)
}

func TestAnalyze_SingleSample(t *testing.T) {
	res, err := newAnalyzer().Analyze([]elevation.Sample{{Lat: 40, Lon: -105, Elevation: 1600}})
	require.NoError(t, err)

	assert.Len(t, res.Points, 1)
	assert.Zero(t, res.Points[0].Slope)
	assert.Empty(t, res.Obstacles)
	assert.Equal(t, 1, res.Difficulty)
}

func TestAnalyze_InvalidSamples(t *testing.T) {
	_, err := newAnalyzer().Analyze(nil)
	assert.ErrorIs(t, err, terrain.ErrNoSamples)

	_, err = newAnalyzer().Analyze([]elevation.Sample{{Lat: 40, Lon: -105, Elevation: math.NaN()}})
	assert.ErrorIs(t, err, terrain.ErrInvalidSample)

	_, err = newAnalyzer().Analyze([]elevation.Sample{{Lat: 95, Lon: -105, Elevation: 10}})
	assert.ErrorIs(t, err, terrain.ErrInvalidSample)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		variation, roughness float64
		expected             terrain.Complexity
	}{
		{10, 0.1, terrain.ComplexityFlat},
		{60, 0.1, terrain.ComplexityGentle},
		{10, 0.3, terrain.ComplexityGentle},
		{400, 0.1, terrain.ComplexityModerate},
		{1200, 0.1, terrain.ComplexityMountainous},
		{2500, 0.7, terrain.ComplexityMountainous},
		{2500, 0.9, terrain.ComplexityExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, terrain.ClassifyComplexity(tt.variation, tt.roughness))
	}
}

func TestDifficultyAndSuitability(t *testing.T) {
	assert.Equal(t, 1, terrain.Difficulty(0, 0, 1, 0))
	assert.Equal(t, 10, terrain.Difficulty(90, 1, 0, 50))
	assert.Equal(t, 6, terrain.Difficulty(45, 0.5, 0.5, 0))

	assert.Equal(t, terrain.Excellent, terrain.SuitabilityFor(3))
	assert.Equal(t, terrain.Good, terrain.SuitabilityFor(4))
	assert.Equal(t, terrain.Fair, terrain.SuitabilityFor(7))
	assert.Equal(t, terrain.Poor, terrain.SuitabilityFor(8))
}

func TestAnalyzeLandingSite(t *testing.T) {
	a := newAnalyzer()

	site, _, err := a.AnalyzeLandingSite(centre, grid(2, 500, func(int, int) float64 { return 120 }))
	require.NoError(t, err)
	assert.Equal(t, terrain.Excellent, site.Suitability)
	assert.Empty(t, site.RiskFactors)
	assert.Equal(t, 1.0, site.AccessibilityScore)
	assert.NotEmpty(t, site.Recommendations)

	site, res, err := a.AnalyzeLandingSite(centre, grid(2, 500, peak(100)))
	require.NoError(t, err)
	require.Len(t, res.Obstacles, 1)
	assert.InDelta(t, 200, site.Elevation, 1e-9)
	assert.NotEmpty(t, site.RiskFactors)
	assert.Len(t, site.Recommendations, len(site.RiskFactors))
}

func TestRankLandingSites(t *testing.T) {
	a := newAnalyzer()
	res, err := a.Analyze(grid(2, 500, peak(100)))
	require.NoError(t, err)

	sites := a.RankLandingSites(res, 3)
	require.Len(t, sites, 3)
	for i := 1; i < len(sites); i++ {
		assert.LessOrEqual(t, sites[i-1].Difficulty, sites[i].Difficulty)
	}
	for _, s := range sites {
		assert.NotEqual(t, 200.0, s.Elevation, "the hill top is the hardest site")
	}
	assert.Nil(t, a.RankLandingSites(nil, 3))
}
