package correlate

import (
	"time"

	"github.com/sightwatch/sightwatch/internal/geo"
	"github.com/sightwatch/sightwatch/internal/report"
)

const (
	// attachThreshold is the minimum best score against an existing
	// member for a report to join an active cluster.
	attachThreshold = 0.35

	// edgeThreshold is the minimum pairwise score that links two
	// unclustered reports when forming new clusters.
	edgeThreshold = 0.40

	// trustedSingleConfidence is the fixed confidence assigned to a
	// single-member cluster from a pre-vetted source.
	trustedSingleConfidence = 0.65

	temporalWeight = 0.30
	geoWeight      = 0.35
	contentWeight  = 0.35
)

// pairScore combines temporal, geographic and content evidence for two
// reports. Pairs separated by more than the window are disqualified
// outright and score 0 regardless of the other components.
func pairScore(a, b *report.Processed, content float64, window time.Duration, proximityKm float64) float64 {
	dt := a.Timestamp.Sub(b.Timestamp)
	if dt < 0 {
		dt = -dt
	}
	if dt > window {
		return 0
	}
	temporal := 1 - float64(dt)/float64(window)
	return temporalWeight*temporal + geoWeight*geoScore(a, b, proximityKm) + contentWeight*content
}

// geoScore grades geographic agreement. Coordinates are the strongest
// evidence; named places rank below them; reports with no location at all
// get a neutral baseline.
func geoScore(a, b *report.Processed, proximityKm float64) float64 {
	if a.HasCoordinates() && b.HasCoordinates() {
		d := geo.HaversineKm(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
		switch {
		case d <= proximityKm:
			return 1.0
		case d <= 3*proximityKm:
			return 0.5
		default:
			return 0.2
		}
	}
	if a.Place != "" && b.Place != "" {
		if a.Place == b.Place {
			return 1.0
		}
		return 0.5
	}
	return 0.3
}
