// Package region assigns each report to one monitored region. Correlation
// never crosses region boundaries, so tagging must be deterministic.
package region

import (
	"strings"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/geo"
)

// Tagger maps reports to region names using coverage circles first and
// locale keywords second. Construct once from the loaded locales.
type Tagger struct {
	locales []*config.Locale
}

// NewTagger builds a Tagger. Locale order is the tie-break order for
// keyword matching.
func NewTagger(locales []*config.Locale) *Tagger {
	return &Tagger{locales: locales}
}

// Tag assigns a region to a report. Coordinates win over text: a point
// inside any locale's coverage circle tags that locale. Otherwise the
// locale with the most keyword hits in the text wins, earlier locales
// winning ties. Returns "" when nothing matches.
func (t *Tagger) Tag(text string, lat, lon *float64) string {
	if lat != nil && lon != nil {
		for _, loc := range t.locales {
			for _, c := range loc.Centers {
				if geo.HaversineKm(*lat, *lon, c.Lat, c.Lon) <= c.RadiusKm {
					return loc.Name
				}
			}
		}
	}

	lower := strings.ToLower(text)
	best := ""
	bestHits := 0
	for _, loc := range t.locales {
		hits := 0
		for _, kw := range loc.GeoKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = loc.Name
		}
	}
	return best
}
