package ingest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/geo"
	"github.com/sightwatch/sightwatch/internal/region"
	"github.com/sightwatch/sightwatch/internal/relevance"
	"github.com/sightwatch/sightwatch/internal/report"
	"github.com/sightwatch/sightwatch/internal/store"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 3; i++ {
		q.Push(i)
	}
	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %d, %v, want %d", got, ok, want)
		}
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Close()
	q.Push("late") // dropped

	if got, ok := q.Pop(); !ok || got != "a" {
		t.Fatalf("Pop after close = %q, %v", got, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on drained closed queue returned an item")
	}
}

func TestQueueUnblocksWaitingConsumer(t *testing.T) {
	q := NewQueue[int]()
	var wg sync.WaitGroup
	wg.Add(1)
	var got int
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = q.Pop()
	}()
	time.Sleep(10 * time.Millisecond)
	q.Push(42)
	wg.Wait()
	if !ok || got != 42 {
		t.Fatalf("Pop = %d, %v", got, ok)
	}
}

func testPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	gazPath := filepath.Join(t.TempDir(), "places.json")
	places := `[{"name": "Riverside Plaza", "centroid": {"lat": 40.7128, "lon": -74.0060}}]`
	if err := os.WriteFile(gazPath, []byte(places), 0o644); err != nil {
		t.Fatal(err)
	}
	gaz, err := geo.Load(gazPath)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CorrelationWindowSeconds: 10800,
		ReportMaxAgeSeconds:      10800,
		TrustedSources:           []string{"fieldnet"},
		CuratedSources:           []string{"rss"},
		Locales: []*config.Locale{{
			Name:        "metrotown",
			DisplayName: "Metrotown",
			Centers:     []config.Center{{Lat: 40.71, Lon: -74.00, RadiusKm: 25}},
			GeoKeywords: []string{"metrotown", "riverside"},
		}},
	}

	kw := relevance.DefaultKeywords()
	kw.Geo = []string{"metrotown", "riverside"}
	p := NewPipeline(s, cfg, relevance.NewChecker(kw), geo.NewResolver(gaz), region.NewTagger(cfg.Locales))
	return p, s
}

func TestProcessAccepted(t *testing.T) {
	p, s := testPipeline(t)
	now := time.Now().UTC()

	outcome, err := p.Process(report.Raw{
		SourceType: report.SourceBluesky,
		SourceID:   "p1",
		Author:     "alice",
		Text:       "Federal agents spotted near riverside plaza right now",
		Timestamp:  now.Add(-10 * time.Minute),
		Collected:  now,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeAccepted {
		t.Fatalf("outcome = %q", outcome)
	}

	got, err := s.RecentRelevant(now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("stored %d relevant reports", len(got))
	}
	r := got[0]
	if r.Place != "Riverside Plaza" {
		t.Errorf("Place = %q", r.Place)
	}
	if !r.HasCoordinates() {
		t.Error("gazetteer coordinates not applied")
	}
	if r.Region != "metrotown" {
		t.Errorf("Region = %q", r.Region)
	}
	if len(r.Keywords) == 0 {
		t.Error("no keywords recorded")
	}
}

func TestProcessStale(t *testing.T) {
	p, s := testPipeline(t)
	now := time.Now().UTC()

	outcome, err := p.Process(report.Raw{
		SourceType: report.SourceBluesky,
		SourceID:   "old",
		Text:       "federal agents near riverside plaza",
		Timestamp:  now.Add(-4 * time.Hour),
		Collected:  now,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeStale {
		t.Fatalf("outcome = %q", outcome)
	}
	if n, _ := s.ReportCount(); n != 0 {
		t.Error("stale report was stored")
	}
}

func TestProcessTrustedStalenessWindow(t *testing.T) {
	p, _ := testPipeline(t)
	now := time.Now().UTC()

	// 4 hours is stale for a community source but fine for a trusted one.
	outcome, err := p.Process(report.Raw{
		SourceType: report.SourceFieldNet,
		SourceID:   "t1",
		Text:       "activity confirmed",
		Timestamp:  now.Add(-4 * time.Hour),
		Collected:  now,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeAccepted {
		t.Fatalf("outcome = %q", outcome)
	}

	outcome, err = p.Process(report.Raw{
		SourceType: report.SourceFieldNet,
		SourceID:   "t2",
		Text:       "activity confirmed",
		Timestamp:  now.Add(-7 * time.Hour),
		Collected:  now,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeStale {
		t.Fatalf("outcome past trusted horizon = %q", outcome)
	}
}

func TestProcessDuplicate(t *testing.T) {
	p, s := testPipeline(t)
	now := time.Now().UTC()

	raw := report.Raw{
		SourceType: report.SourceBluesky,
		SourceID:   "p1",
		Text:       "federal agents spotted near riverside plaza",
		Timestamp:  now.Add(-10 * time.Minute),
		Collected:  now,
	}
	if _, err := p.Process(raw, now); err != nil {
		t.Fatal(err)
	}
	outcome, err := p.Process(raw, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %q", outcome)
	}
	if n, _ := s.ReportCount(); n != 1 {
		t.Errorf("ReportCount = %d", n)
	}
}

func TestProcessIrrelevant(t *testing.T) {
	p, s := testPipeline(t)
	now := time.Now().UTC()

	outcome, err := p.Process(report.Raw{
		SourceType: report.SourceBluesky,
		SourceID:   "noise",
		Text:       "beat the raid boss last night in riverside, what a game",
		Timestamp:  now.Add(-10 * time.Minute),
		Collected:  now,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeIrrelevant {
		t.Fatalf("outcome = %q", outcome)
	}
	// Stored, so re-delivery dedups, but never surfaces as relevant.
	if n, _ := s.ReportCount(); n != 1 {
		t.Errorf("ReportCount = %d", n)
	}
	if got, _ := s.RecentRelevant(now.Add(-time.Hour)); len(got) != 0 {
		t.Errorf("irrelevant report surfaced: %+v", got)
	}
}

func TestProcessTrustedBypassAndMarker(t *testing.T) {
	p, s := testPipeline(t)
	now := time.Now().UTC()

	// No topic keywords at all; a trusted source is accepted anyway.
	outcome, err := p.Process(report.Raw{
		SourceType: report.SourceFieldNet,
		SourceID:   "t1",
		Text:       "Confirmed at Main St and 5th",
		Timestamp:  now.Add(-10 * time.Minute),
		Collected:  now,
		Metadata: map[string]any{
			"latitude":             40.7128,
			"longitude":            -74.0060,
			"location_description": "Main St and 5th",
		},
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeAccepted {
		t.Fatalf("outcome = %q", outcome)
	}

	got, _ := s.RecentRelevant(now.Add(-time.Hour))
	if len(got) != 1 {
		t.Fatalf("stored %d relevant reports", len(got))
	}
	r := got[0]
	if len(r.Keywords) != 1 || r.Keywords[0] != "fieldnet report" {
		t.Errorf("Keywords = %v, want provenance marker", r.Keywords)
	}
	// Structured coordinates snap to the nearby gazetteer entry.
	if r.Place != "Riverside Plaza" {
		t.Errorf("Place = %q", r.Place)
	}
	if r.Region != "metrotown" {
		t.Errorf("Region = %q", r.Region)
	}
}

func TestProcessCoordinatesFallBackToDescription(t *testing.T) {
	p, s := testPipeline(t)
	now := time.Now().UTC()

	// Coordinates far from any gazetteer entry keep the source's own
	// description.
	_, err := p.Process(report.Raw{
		SourceType: report.SourceFieldNet,
		SourceID:   "t1",
		Text:       "Confirmed sighting",
		Timestamp:  now.Add(-10 * time.Minute),
		Collected:  now,
		Metadata: map[string]any{
			"latitude":             40.60,
			"longitude":            -74.20,
			"location_description": "Harbor Yard lot",
		},
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.RecentRelevant(now.Add(-time.Hour))
	if len(got) != 1 {
		t.Fatalf("stored %d relevant reports", len(got))
	}
	if got[0].Place != "Harbor Yard lot" {
		t.Errorf("Place = %q, want source description", got[0].Place)
	}
}
