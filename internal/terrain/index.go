package terrain

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/stratotrack/stratotrack/internal/geo"
)

const (
	metersPerDegree = geo.EarthRadius * math.Pi / 180

	// minSpacing stops degenerate sample sets from collapsing the search radius.
	minSpacing = 1.0
)

type neighbour struct {
	idx  int
	dist float64
}

// index answers radius and nearest queries over a fixed set of coordinates.
type index struct {
	tr     rtree.RTreeG[int]
	points []geo.Point
}

func newIndex(points []geo.Point) *index {
	ix := &index{points: points}
	for i, p := range points {
		pt := [2]float64{p.Lon, p.Lat}
		ix.tr.Insert(pt, pt, i)
	}
	return ix
}

// box returns the lon/lat bounds of a circle of radius meters around p.
func box(p geo.Point, radius float64) (minB, maxB [2]float64) {
	dLat := radius / metersPerDegree
	cos := math.Max(math.Cos(p.Lat*math.Pi/180), 1e-6)
	dLon := dLat / cos
	return [2]float64{p.Lon - dLon, p.Lat - dLat}, [2]float64{p.Lon + dLon, p.Lat + dLat}
}

// within returns the points within radius meters of p, nearest first,
// excluding skip.
func (ix *index) within(p geo.Point, radius float64, skip int) []neighbour {
	minB, maxB := box(p, radius)
	var out []neighbour
	ix.tr.Search(minB, maxB, func(_, _ [2]float64, i int) bool {
		if i == skip {
			return true
		}
		if d := geo.DistanceMeters(p, ix.points[i]); d <= radius {
			out = append(out, neighbour{idx: i, dist: d})
		}
		return true
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].dist != out[b].dist {
			return out[a].dist < out[b].dist
		}
		return out[a].idx < out[b].idx
	})
	return out
}

// nearest returns the index of the point closest to p, widening the search
// from start meters until something is found.
func (ix *index) nearest(p geo.Point, start float64) (int, float64) {
	if len(ix.points) == 0 {
		return -1, 0
	}
	radius := math.Max(start, minSpacing)
	for range 32 {
		if ns := ix.within(p, radius, -1); len(ns) > 0 {
			return ns[0].idx, ns[0].dist
		}
		radius *= 2
	}

	best, bestDist := 0, math.Inf(1)
	for i, q := range ix.points {
		if d := geo.DistanceMeters(p, q); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// spacing estimates the typical distance between neighbouring samples as the
// median nearest-neighbour distance.
func (ix *index) spacing() float64 {
	n := len(ix.points)
	if n < 2 {
		return minSpacing
	}

	guess := math.Sqrt(geo.AreaKm2(ix.points) * 1e6 / float64(n))
	if guess < minSpacing {
		// Collinear or clustered samples: fall back to the extent per point.
		guess = math.Max(minSpacing, geo.DistanceMeters(ix.points[0], ix.points[n-1])/float64(n-1))
	}

	dists := make([]float64, 0, n)
	for i, p := range ix.points {
		if ns := ix.within(p, 2*guess, i); len(ns) > 0 {
			dists = append(dists, ns[0].dist)
		}
	}
	if len(dists) == 0 {
		return guess
	}
	sort.Float64s(dists)
	return math.Max(minSpacing, dists[len(dists)/2])
}
