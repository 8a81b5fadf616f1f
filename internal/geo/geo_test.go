package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeGazetteer(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testPlaces = `[
	{"name": "Riverside Plaza", "aliases": ["the plaza"], "centroid": {"lat": 40.7128, "lon": -74.0060}},
	{"name": "Eastgate Market", "centroid": {"lat": 40.7200, "lon": -74.0000}},
	{"name": "Northside", "centroid": {"lat": 40.8000, "lon": -73.9500}}
]`

func testGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	g, err := Load(writeGazetteer(t, "places.json", testPlaces))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestLoadMergesFiles(t *testing.T) {
	a := writeGazetteer(t, "a.json", `[{"name": "Alpha", "centroid": {"lat": 1, "lon": 2}}]`)
	b := writeGazetteer(t, "b.json", `[{"name": "Beta", "centroid": {"lat": 3, "lon": 4}}]`)
	g, err := Load(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	if _, ok := g.Lookup("alpha"); !ok {
		t.Error("Lookup(alpha) missed")
	}
	if _, ok := g.Lookup("Beta"); !ok {
		t.Error("Lookup(Beta) missed")
	}
}

func TestLookupAlias(t *testing.T) {
	g := testGazetteer(t)
	p, ok := g.Lookup("THE PLAZA")
	if !ok {
		t.Fatal("alias lookup missed")
	}
	if p.Name != "Riverside Plaza" {
		t.Errorf("alias resolved to %q", p.Name)
	}
}

func TestHaversineKm(t *testing.T) {
	// Same point.
	if d := HaversineKm(40.0, -74.0, 40.0, -74.0); d != 0 {
		t.Errorf("zero distance = %v", d)
	}
	// One degree of latitude is roughly 111 km.
	d := HaversineKm(40.0, -74.0, 41.0, -74.0)
	if math.Abs(d-111.2) > 1.0 {
		t.Errorf("1 degree latitude = %.2f km, want ~111.2", d)
	}
}

func TestNearest(t *testing.T) {
	g := testGazetteer(t)
	p, dist := g.Nearest(40.7130, -74.0062)
	if p == nil || p.Name != "Riverside Plaza" {
		t.Fatalf("Nearest = %+v", p)
	}
	if dist > 0.1 {
		t.Errorf("dist = %.3f km, want <0.1", dist)
	}
}

func TestExtractGazetteerPhrase(t *testing.T) {
	r := NewResolver(testGazetteer(t))
	cands := r.Extract("agents spotted near riverside plaza this morning")
	if len(cands) == 0 {
		t.Fatal("no candidates")
	}
	c := cands[0]
	if c.Place != "Riverside Plaza" {
		t.Errorf("Place = %q", c.Place)
	}
	if c.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", c.Confidence)
	}
	if c.Lat == nil || c.Lon == nil {
		t.Error("expected coordinates")
	}
}

func TestExtractWordBoundary(t *testing.T) {
	r := NewResolver(testGazetteer(t))
	// "northsider" must not match "Northside".
	for _, c := range r.Extract("a true northsider knows better") {
		if c.Place == "Northside" {
			t.Errorf("matched inside a longer word: %+v", c)
		}
	}
}

func TestExtractEntityFallback(t *testing.T) {
	r := NewResolver(testGazetteer(t))
	cands := r.Extract("checkpoint reported near Oakwood Terminal")
	var found *Candidate
	for i := range cands {
		if cands[i].Text == "Oakwood Terminal" {
			found = &cands[i]
		}
	}
	if found == nil {
		t.Fatal("entity span not extracted")
	}
	if found.Place != "" || found.Confidence != 0.3 {
		t.Errorf("unknown entity = %+v, want unnamed at 0.3", *found)
	}
	if found.Lat != nil {
		t.Error("unknown entity must not carry coordinates")
	}
}

func TestExtractEntityKnownToGazetteer(t *testing.T) {
	r := NewResolver(testGazetteer(t))
	cands := r.Extract("Crowd gathering at Eastgate Market")
	for _, c := range cands {
		if c.Place == "Eastgate Market" && c.Confidence >= 0.7 {
			return
		}
	}
	t.Fatalf("known entity not resolved: %+v", cands)
}

func TestPrimaryPrefersNamedPlace(t *testing.T) {
	r := NewResolver(testGazetteer(t))
	lat, lon := 40.72, -74.0
	cands := []Candidate{
		{Text: "somewhere vague", Confidence: 0.3},
		{Text: "eastgate market", Place: "Eastgate Market", Lat: &lat, Lon: &lon, Confidence: 0.7},
	}
	place, gotLat, _ := r.Primary(cands)
	if place != "Eastgate Market" {
		t.Errorf("Primary place = %q", place)
	}
	if gotLat == nil || *gotLat != lat {
		t.Error("Primary dropped coordinates")
	}
}

func TestPrimaryEmpty(t *testing.T) {
	r := NewResolver(testGazetteer(t))
	place, lat, lon := r.Primary(nil)
	if place != "" || lat != nil || lon != nil {
		t.Error("Primary(nil) must return zero values")
	}
}

func TestResolveCoordinates(t *testing.T) {
	r := NewResolver(testGazetteer(t))

	if name, ok := r.ResolveCoordinates(40.7128, -74.0060); !ok || name != "Riverside Plaza" {
		t.Errorf("ResolveCoordinates at centroid = %q, %v", name, ok)
	}
	// 1 degree away is far outside the snap radius.
	if _, ok := r.ResolveCoordinates(41.8, -74.0); ok {
		t.Error("snapped to a place far outside the radius")
	}
}
