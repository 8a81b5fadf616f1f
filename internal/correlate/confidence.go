package correlate

import (
	"math"
	"time"

	"github.com/sightwatch/sightwatch/internal/report"
)

// confidence scores a cluster's membership in [0, 1]:
// corroboration volume (30%), source diversity (25%), temporal tightness
// (25%) and location resolution coverage (20%). Rounded to three decimals
// so scores are stable across store round-trips.
func confidence(members []report.Processed, window time.Duration) float64 {
	n := len(members)
	if n == 0 {
		return 0
	}

	sizeScore := math.Min(float64(n)/4.0, 1.0)

	types := make(map[report.SourceType]bool, n)
	resolved := 0
	earliest, latest := members[0].Timestamp, members[0].Timestamp
	for i := range members {
		m := &members[i]
		types[m.SourceType] = true
		if m.Place != "" {
			resolved++
		}
		if m.Timestamp.Before(earliest) {
			earliest = m.Timestamp
		}
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	typeScore := math.Min(float64(len(types))/3.0, 1.0)

	tightness := 0.5
	if n > 1 {
		span := float64(latest.Sub(earliest)) / float64(window)
		if span > 1 {
			span = 1
		}
		tightness = 1 - span
	}

	geoFraction := float64(resolved) / float64(n)

	score := 0.30*sizeScore + 0.25*typeScore + 0.25*tightness + 0.20*geoFraction
	return math.Round(score*1000) / 1000
}
