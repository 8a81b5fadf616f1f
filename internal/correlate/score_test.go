package correlate

import (
	"math"
	"testing"
	"time"

	"github.com/sightwatch/sightwatch/internal/report"
)

func ptr(f float64) *float64 { return &f }

func atCoords(lat, lon float64, ts time.Time) *report.Processed {
	return &report.Processed{Latitude: &lat, Longitude: &lon, Timestamp: ts}
}

func TestGeoScoreTiers(t *testing.T) {
	now := time.Now()
	base := atCoords(40.7128, -74.0060, now)

	tests := []struct {
		name string
		b    *report.Processed
		want float64
	}{
		{"within proximity", atCoords(40.7130, -74.0062, now), 1.0},
		{"within 3x proximity", atCoords(40.7700, -74.0060, now), 0.5}, // ~6.4 km
		{"far apart", atCoords(41.0, -74.0, now), 0.2},
		{"same place no coords", &report.Processed{Place: "Riverside Plaza"}, 1.0},
		{"different places", &report.Processed{Place: "Eastgate Market"}, 0.5},
		{"no location evidence", &report.Processed{}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			if !tt.b.HasCoordinates() {
				a = &report.Processed{Place: "Riverside Plaza"}
				if tt.b.Place == "" {
					a = &report.Processed{}
				}
			}
			if got := geoScore(a, tt.b, 3.0); got != tt.want {
				t.Errorf("geoScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPairScoreWindowDisqualifies(t *testing.T) {
	now := time.Now()
	window := 3 * time.Hour
	a := atCoords(40.7128, -74.0060, now)
	b := atCoords(40.7128, -74.0060, now.Add(-window-time.Minute))

	if got := pairScore(a, b, 1.0, window, 3.0); got != 0 {
		t.Errorf("pair outside window scored %v, want 0", got)
	}
	// Just inside the window still scores.
	b.Timestamp = now.Add(-window + time.Minute)
	if got := pairScore(a, b, 1.0, window, 3.0); got <= 0 {
		t.Errorf("pair inside window scored %v", got)
	}
}

func TestPairScoreWeights(t *testing.T) {
	now := time.Now()
	a := atCoords(40.7128, -74.0060, now)
	b := atCoords(40.7128, -74.0060, now)

	// Zero time gap, co-located, identical content: the maximum score.
	if got := pairScore(a, b, 1.0, 3*time.Hour, 3.0); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("maximum pair score = %v, want 1.0", got)
	}
}

func TestConfidenceSingleMember(t *testing.T) {
	now := time.Now()
	members := []report.Processed{
		{SourceType: report.SourceBluesky, Timestamp: now},
	}
	// size 0.25*0.30 + types 1/3*0.25 + tightness 0.5*0.25 + geo 0*0.20
	want := 0.283
	if got := confidence(members, 3*time.Hour); got != want {
		t.Errorf("confidence = %v, want %v", got, want)
	}
}

func TestConfidenceGrowsWithCorroboration(t *testing.T) {
	now := time.Now()
	window := 3 * time.Hour
	two := []report.Processed{
		{SourceType: report.SourceBluesky, Timestamp: now},
		{SourceType: report.SourceReddit, Timestamp: now.Add(5 * time.Minute)},
	}
	four := append([]report.Processed{}, two...)
	four = append(four,
		report.Processed{SourceType: report.SourceRSS, Timestamp: now.Add(10 * time.Minute)},
		report.Processed{SourceType: report.SourceFieldNet, Timestamp: now.Add(15 * time.Minute), Latitude: ptr(40.7), Longitude: ptr(-74.0)},
	)

	c2 := confidence(two, window)
	c4 := confidence(four, window)
	if c4 <= c2 {
		t.Errorf("confidence did not grow: 2 members %v, 4 members %v", c2, c4)
	}
	if c4 > 1.0 {
		t.Errorf("confidence %v exceeds 1.0", c4)
	}
}

func TestConfidenceRounded(t *testing.T) {
	now := time.Now()
	members := []report.Processed{
		{SourceType: report.SourceBluesky, Timestamp: now},
		{SourceType: report.SourceReddit, Timestamp: now.Add(7 * time.Minute)},
		{SourceType: report.SourceBluesky, Timestamp: now.Add(13 * time.Minute)},
	}
	got := confidence(members, 3*time.Hour)
	if math.Abs(got*1000-math.Round(got*1000)) > 1e-6 {
		t.Errorf("confidence %v not rounded to 3 decimals", got)
	}
}

func TestUnionFindComponents(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)
	uf.union(3, 4)

	comps := uf.components()
	if len(comps) != 2 {
		t.Fatalf("components = %d, want 2", len(comps))
	}
	sizes := map[int]bool{}
	for _, c := range comps {
		sizes[len(c)] = true
	}
	if !sizes[3] || !sizes[2] {
		t.Errorf("component sizes wrong: %v", comps)
	}
}

func TestSimilarityIndex(t *testing.T) {
	reports := []report.Processed{
		{ID: 1, CleanedText: "federal agents spotted near riverside plaza unmarked van"},
		{ID: 2, CleanedText: "unmarked van and federal agents at riverside plaza right now"},
		{ID: 3, CleanedText: "great pizza downtown tonight totally unrelated chatter"},
	}
	sim := newSimilarityIndex(reports)

	if got := sim.cosine(1, 1); got < 0.999 {
		t.Errorf("self similarity = %v", got)
	}
	near := sim.cosine(1, 2)
	far := sim.cosine(1, 3)
	if near <= far {
		t.Errorf("similar pair %v not above dissimilar pair %v", near, far)
	}
	if far > 0.2 {
		t.Errorf("dissimilar pair scored %v", far)
	}
}
