// Package geo resolves report text or raw coordinates to named sub-regions
// using a static gazetteer of places with centroids and aliases.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// Place is one gazetteer entry: a sub-region or landmark with a centroid.
type Place struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Centroid Centroid `json:"centroid"`
}

// Centroid is a point location.
type Centroid struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Gazetteer is an immutable lookup of known places. Load once, read
// everywhere.
type Gazetteer struct {
	places  []Place
	byName  map[string]*Place // lowercased name or alias
	phrases []string          // all names/aliases, longest first
}

// Load reads one or more gazetteer JSON files (arrays of Place) and merges
// them into a single lookup.
func Load(paths ...string) (*Gazetteer, error) {
	g := &Gazetteer{byName: make(map[string]*Place)}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read gazetteer %s: %w", path, err)
		}
		var places []Place
		if err := json.Unmarshal(data, &places); err != nil {
			return nil, fmt.Errorf("parse gazetteer %s: %w", path, err)
		}
		g.places = append(g.places, places...)
	}

	for i := range g.places {
		p := &g.places[i]
		g.index(p.Name, p)
		for _, a := range p.Aliases {
			g.index(a, p)
		}
	}

	// Longest-match semantics: try longer phrases before shorter ones.
	sort.Slice(g.phrases, func(i, j int) bool {
		return len(g.phrases[i]) > len(g.phrases[j])
	})

	return g, nil
}

func (g *Gazetteer) index(name string, p *Place) {
	key := strings.ToLower(name)
	if _, dup := g.byName[key]; dup {
		return
	}
	g.byName[key] = p
	g.phrases = append(g.phrases, key)
}

// Lookup returns the place for a name or alias, case-insensitive.
func (g *Gazetteer) Lookup(name string) (*Place, bool) {
	p, ok := g.byName[strings.ToLower(name)]
	return p, ok
}

// Len returns the number of places loaded.
func (g *Gazetteer) Len() int { return len(g.places) }

// Nearest returns the place whose centroid is closest to the point, and
// the distance in km. Returns nil for an empty gazetteer.
func (g *Gazetteer) Nearest(lat, lon float64) (*Place, float64) {
	var best *Place
	bestDist := math.Inf(1)
	for i := range g.places {
		p := &g.places[i]
		d := HaversineKm(lat, lon, p.Centroid.Lat, p.Centroid.Lon)
		if d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best, bestDist
}

// HaversineKm computes the great-circle distance in km between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
