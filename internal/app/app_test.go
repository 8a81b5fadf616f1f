package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/report"
	"github.com/sightwatch/sightwatch/internal/store"
)

func testApp(t *testing.T, dryRun bool) *App {
	t.Helper()
	cfg := &config.Config{
		DBPath:                          ":memory:",
		DryRun:                          dryRun,
		CorrelationWindowSeconds:        10800,
		MinCorroborationSources:         2,
		GeoProximityKm:                  3.0,
		CorrelationCheckIntervalSeconds: 60,
		ClusterExpiryHours:              6.0,
		ReportMaxAgeSeconds:             10800,
		RetentionDays:                   7,
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.store.Close() })
	return a
}

func seedCluster(t *testing.T, s *store.Store) (int64, []int64) {
	t.Helper()
	now := time.Now().UTC()
	var ids []int64
	for _, sid := range []string{"a", "b"} {
		id, _, err := s.InsertRaw(report.Raw{
			SourceType: report.SourceBluesky,
			SourceID:   sid,
			Text:       "report",
			Timestamp:  now,
			Collected:  now,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	cid, err := s.CreateClusterWithMembers(&store.Cluster{
		Region: "metrotown", Location: "Riverside Plaza",
		Confidence: 0.6, MemberCount: 2,
		Earliest: now, Latest: now,
	}, ids)
	if err != nil {
		t.Fatal(err)
	}
	return cid, ids
}

func incidentFor(cid int64, ids []int64) report.Incident {
	members := make([]report.Processed, len(ids))
	for i, id := range ids {
		members[i] = report.Processed{ID: id}
	}
	return report.Incident{
		ClusterID:   cid,
		Reports:     members,
		NewReports:  members,
		Location:    "Riverside Plaza",
		MemberCount: len(ids),
		Type:        report.IncidentNew,
		Region:      "metrotown",
	}
}

func TestHandleIncidentsRecordsBookkeeping(t *testing.T) {
	a := testApp(t, false)
	cid, ids := seedCluster(t, a.store)

	a.handleIncidents(context.Background(), []report.Incident{incidentFor(cid, ids)})

	c, err := a.store.GetCluster(cid)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || !c.Notified {
		t.Error("cluster not marked notified")
	}
	notified, _ := a.store.NotifiedMemberIDs(cid)
	if len(notified) != 2 {
		t.Errorf("notified members = %d, want 2", len(notified))
	}
	if n, _ := a.store.NotificationCount(cid); n != 1 {
		t.Errorf("NotificationCount = %d, want 1", n)
	}
}

func TestHandleIncidentsDryRun(t *testing.T) {
	a := testApp(t, true)
	cid, ids := seedCluster(t, a.store)

	a.handleIncidents(context.Background(), []report.Incident{incidentFor(cid, ids)})

	c, _ := a.store.GetCluster(cid)
	if c.Notified {
		t.Error("dry run marked cluster notified")
	}
	if n, _ := a.store.NotificationCount(cid); n != 0 {
		t.Errorf("dry run logged %d notifications", n)
	}
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, report.Incident) error {
	return errors.New("channel down")
}

func TestHandleIncidentsFailureLeavesStatePending(t *testing.T) {
	a := testApp(t, false)
	a.notifier = failingNotifier{}
	cid, ids := seedCluster(t, a.store)

	a.handleIncidents(context.Background(), []report.Incident{incidentFor(cid, ids)})

	// No delivery recorded, so the next cycle can retry.
	c, _ := a.store.GetCluster(cid)
	if c.Notified {
		t.Error("failed notification still marked cluster notified")
	}
	if n, _ := a.store.NotificationCount(cid); n != 0 {
		t.Errorf("failed notification counted %d deliveries", n)
	}
}
