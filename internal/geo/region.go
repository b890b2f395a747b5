package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Region is a named coverage polygon used to decide which providers serve a point.
type Region struct {
	Name    string
	Polygon orb.Polygon
}

// Contains reports whether the point lies inside the region.
func (r Region) Contains(lat, lon float64) bool {
	if len(r.Polygon) == 0 {
		return false
	}
	pt := orb.Point{lon, lat}
	if !r.Polygon.Bound().Contains(pt) {
		return false
	}
	return planar.PolygonContains(r.Polygon, pt)
}

// ContiguousUS is a coarse outline of the contiguous United States.
var ContiguousUS = Region{
	Name: "contiguous_us",
	Polygon: orb.Polygon{orb.Ring{
		{-124.8, 48.4}, {-123.2, 49.0}, {-95.2, 49.0}, {-94.8, 49.4},
		{-89.6, 48.0}, {-84.8, 46.5}, {-82.4, 45.3}, {-82.5, 42.3},
		{-79.0, 43.3}, {-76.8, 43.7}, {-74.7, 45.0}, {-71.5, 45.0},
		{-69.2, 47.5}, {-67.8, 47.1}, {-66.9, 44.8}, {-70.0, 41.5},
		{-73.9, 40.4}, {-75.5, 35.2}, {-80.0, 32.0}, {-80.0, 26.5},
		{-80.4, 25.0}, {-81.8, 24.5}, {-82.7, 27.5}, {-84.3, 29.9},
		{-89.4, 29.0}, {-94.0, 29.6}, {-97.2, 25.9}, {-99.5, 27.5},
		{-101.4, 29.8}, {-104.5, 29.6}, {-106.5, 31.8}, {-108.2, 31.3},
		{-111.1, 31.3}, {-114.8, 32.5}, {-117.1, 32.5}, {-120.6, 34.6},
		{-123.8, 39.8}, {-124.4, 42.0}, {-124.8, 48.4},
	}},
}

// AreaKm2 returns the area covered by the bounding box of the given points.
func AreaKm2(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.Orb())
	}
	return orbgeo.Area(mp.Bound().ToPolygon()) / 1e6
}
