package resilience

import "sort"

// Rankable is the subset of a data provider needed for ranking.
type Rankable interface {
	Name() string
	Covers(lat, lon float64) bool
	Regional() bool
}

// Rank returns the providers that cover the point, regional providers first,
// then by position in priority. Providers missing from priority keep their
// registration order after the listed ones.
func Rank[P Rankable](providers []P, priority []string, lat, lon float64) []P {
	order := make(map[string]int, len(priority))
	for i, name := range priority {
		order[name] = i
	}
	position := func(idx int, p P) int {
		if i, ok := order[p.Name()]; ok {
			return i
		}
		return len(priority) + idx
	}

	type ranked struct {
		p        P
		regional bool
		pos      int
	}
	candidates := make([]ranked, 0, len(providers))
	for i, p := range providers {
		if !p.Covers(lat, lon) {
			continue
		}
		candidates = append(candidates, ranked{p: p, regional: p.Regional(), pos: position(i, p)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].regional != candidates[j].regional {
			return candidates[i].regional
		}
		return candidates[i].pos < candidates[j].pos
	})

	out := make([]P, len(candidates))
	for i, c := range candidates {
		out[i] = c.p
	}
	return out
}
