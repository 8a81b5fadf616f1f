// Package correlate groups relevant reports into incident clusters. A
// cluster is corroboration: independent reports close in time, place and
// content. Correlation never crosses region boundaries.
package correlate

import (
	"fmt"
	"time"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/logging"
	"github.com/sightwatch/sightwatch/internal/report"
	"github.com/sightwatch/sightwatch/internal/store"
)

// Correlator runs the periodic clustering pass over recent relevant
// reports.
type Correlator struct {
	store    *store.Store
	cfg      *config.Config
	activity activityLog
}

// New builds a Correlator over the store.
func New(st *store.Store, cfg *config.Config) *Correlator {
	c := &Correlator{store: st, cfg: cfg}
	c.activity.stats.StartTime = time.Now()
	return c
}

// RecentActivity returns up to count recent correlator actions, newest
// first.
func (c *Correlator) RecentActivity(count int) []Activity {
	return c.activity.recent(count)
}

// GetStats returns a snapshot of the running counters.
func (c *Correlator) GetStats() Stats {
	c.activity.mu.Lock()
	defer c.activity.mu.Unlock()
	return c.activity.stats
}

// clusterState is one active cluster plus its full membership and the
// reports attached during the current cycle.
type clusterState struct {
	row      store.Cluster
	members  []report.Processed
	attached []int64
}

// RunCycle runs one full correlation pass as of now and returns the
// incidents that need notification. A failure in one region never blocks
// the others; the cycle error is the first region error encountered, after
// every region has run.
func (c *Correlator) RunCycle(now time.Time) ([]report.Incident, error) {
	recent, err := c.store.RecentRelevant(now.Add(-c.cfg.Window()))
	if err != nil {
		return nil, fmt.Errorf("load recent reports: %w", err)
	}
	active, err := c.store.ActiveClusters(now.Add(-c.cfg.ClusterExpiry()))
	if err != nil {
		return nil, fmt.Errorf("load active clusters: %w", err)
	}

	unclusteredByRegion := make(map[string][]report.Processed)
	for _, r := range recent {
		if r.ClusterID != nil || r.Region == "" {
			continue
		}
		unclusteredByRegion[r.Region] = append(unclusteredByRegion[r.Region], r)
	}

	clustersByRegion := make(map[string][]*clusterState)
	for _, row := range active {
		members, err := c.store.ClusterMembers(row.ID)
		if err != nil {
			return nil, fmt.Errorf("load cluster %d members: %w", row.ID, err)
		}
		clustersByRegion[row.Region] = append(clustersByRegion[row.Region],
			&clusterState{row: row, members: members})
	}

	regions := make(map[string]bool)
	for r := range unclusteredByRegion {
		regions[r] = true
	}
	for r := range clustersByRegion {
		regions[r] = true
	}

	var incidents []report.Incident
	var firstErr error
	for region := range regions {
		regionIncidents, err := c.runRegion(now, region,
			unclusteredByRegion[region], clustersByRegion[region])
		if err != nil {
			logging.Error("Correlation failed for region", "region", region, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		incidents = append(incidents, regionIncidents...)
	}

	c.activity.mu.Lock()
	c.activity.stats.CyclesRun++
	c.activity.stats.ReportsScored += len(recent)
	c.activity.stats.IncidentsEmitted += len(incidents)
	c.activity.mu.Unlock()

	return incidents, firstErr
}

func (c *Correlator) runRegion(now time.Time, region string, pool []report.Processed, clusters []*clusterState) ([]report.Incident, error) {
	working := make([]report.Processed, 0, len(pool))
	working = append(working, pool...)
	for _, cs := range clusters {
		working = append(working, cs.members...)
	}
	sim := newSimilarityIndex(working)

	pool = c.attachToActive(region, pool, clusters, sim)
	pool, formed := c.formClusters(region, pool, sim)
	trusted := c.trustedSingles(region, pool)

	var incidents []report.Incident

	// Persist attachments first so updated clusters reflect this cycle.
	for _, cs := range clusters {
		if len(cs.attached) == 0 {
			continue
		}
		agg := c.aggregate(region, cs.members)
		agg.ID = cs.row.ID
		if err := c.store.UpdateClusterWithMembers(agg, cs.attached); err != nil {
			return nil, err
		}
		inc, err := c.incidentFor(agg, cs.members, cs.row.Notified)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}

	for _, members := range formed {
		agg := c.aggregate(region, members)
		inc, err := c.createCluster(agg, members)
		if err != nil {
			return nil, err
		}
		c.activity.add(ActivityCluster, region,
			fmt.Sprintf("formed cluster %d with %d reports", inc.ClusterID, len(members)))
		incidents = append(incidents, inc)
	}

	for _, r := range trusted {
		members := []report.Processed{r}
		agg := c.aggregate(region, members)
		agg.Confidence = trustedSingleConfidence
		inc, err := c.createCluster(agg, members)
		if err != nil {
			return nil, err
		}
		c.activity.add(ActivityTrusted, region,
			fmt.Sprintf("trusted report %d promoted to cluster %d", r.ID, inc.ClusterID))
		incidents = append(incidents, inc)
	}

	return incidents, nil
}

// attachToActive runs phase 1: each unclustered report joins the active
// cluster it scores best against, when its best pairwise score against any
// cluster member clears the attach threshold. Returns the reports that
// stayed unclustered.
func (c *Correlator) attachToActive(region string, pool []report.Processed, clusters []*clusterState, sim *similarityIndex) []report.Processed {
	if len(clusters) == 0 {
		return pool
	}

	var remaining []report.Processed
	for i := range pool {
		r := &pool[i]
		var best *clusterState
		bestScore := 0.0
		for _, cs := range clusters {
			score := c.bestMemberScore(r, cs.members, sim)
			if score > bestScore {
				bestScore = score
				best = cs
			}
		}
		if best == nil || bestScore < attachThreshold {
			remaining = append(remaining, *r)
			continue
		}
		best.members = append(best.members, *r)
		best.attached = append(best.attached, r.ID)
		c.activity.add(ActivityAttach, region,
			fmt.Sprintf("report %d joined cluster %d (score %.2f)", r.ID, best.row.ID, bestScore))
		c.activity.mu.Lock()
		c.activity.stats.ReportsAttached++
		c.activity.mu.Unlock()
	}
	return remaining
}

func (c *Correlator) bestMemberScore(r *report.Processed, members []report.Processed, sim *similarityIndex) float64 {
	best := 0.0
	for i := range members {
		m := &members[i]
		if sameReporter(r, m) {
			continue
		}
		score := pairScore(r, m, sim.cosine(r.ID, m.ID), c.cfg.Window(), c.cfg.GeoProximityKm)
		if score > best {
			best = score
		}
	}
	return best
}

// formClusters runs phase 2: pairwise scoring over the remaining pool,
// union-find over qualifying edges, and a corroboration check on each
// component. Components without enough independent sources stay unclustered
// for the next cycle.
func (c *Correlator) formClusters(region string, pool []report.Processed, sim *similarityIndex) (remaining []report.Processed, formed [][]report.Processed) {
	if len(pool) < 2 {
		return pool, nil
	}

	uf := newUnionFind(len(pool))
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			if sameReporter(&pool[i], &pool[j]) {
				continue
			}
			score := pairScore(&pool[i], &pool[j], sim.cosine(pool[i].ID, pool[j].ID),
				c.cfg.Window(), c.cfg.GeoProximityKm)
			if score >= edgeThreshold {
				uf.union(i, j)
			}
		}
	}

	for _, comp := range uf.components() {
		members := make([]report.Processed, 0, len(comp))
		for _, idx := range comp {
			members = append(members, pool[idx])
		}
		if len(members) >= 2 && distinctSourceTypes(members) >= c.cfg.MinCorroborationSources {
			formed = append(formed, members)
			c.activity.mu.Lock()
			c.activity.stats.ClustersFormed++
			c.activity.mu.Unlock()
		} else {
			remaining = append(remaining, members...)
		}
	}
	return remaining, formed
}

// sameReporter reports whether two reports are the same voice: identical
// author on the same platform. The same voice posting twice is not
// corroboration. Authorless reports fall back to post identity, which is
// unique, so they never match each other.
func sameReporter(a, b *report.Processed) bool {
	return reporterKey(a) == reporterKey(b)
}

func reporterKey(m *report.Processed) string {
	who := m.Author
	if who == "" {
		who = m.SourceID
	}
	return string(m.SourceType) + "/" + who
}

// distinctSourceTypes counts the platforms represented in a membership.
func distinctSourceTypes(members []report.Processed) int {
	seen := make(map[report.SourceType]bool, len(members))
	for i := range members {
		seen[members[i].SourceType] = true
	}
	return len(seen)
}

// trustedSingles runs phase 3: a lone report from a pre-vetted platform is
// enough for a cluster on its own.
func (c *Correlator) trustedSingles(region string, pool []report.Processed) []report.Processed {
	var out []report.Processed
	for _, r := range pool {
		if c.cfg.TrustFor(r.SourceType) == report.TrustTrusted {
			out = append(out, r)
			c.activity.mu.Lock()
			c.activity.stats.TrustedSingles++
			c.activity.mu.Unlock()
		}
	}
	return out
}

// aggregate derives the stored cluster row from a membership: consensus
// location, coordinate centroid, confidence and time bounds.
func (c *Correlator) aggregate(region string, members []report.Processed) *store.Cluster {
	agg := &store.Cluster{
		Region:      region,
		MemberCount: len(members),
		Confidence:  confidence(members, c.cfg.Window()),
	}

	placeCounts := make(map[string]int)
	typeSeen := make(map[report.SourceType]bool)
	var latSum, lonSum float64
	coords := 0
	for i := range members {
		m := &members[i]
		if m.Place != "" {
			placeCounts[m.Place]++
		}
		if !typeSeen[m.SourceType] {
			typeSeen[m.SourceType] = true
			agg.SourceTypes = append(agg.SourceTypes, m.SourceType)
		}
		if m.HasCoordinates() {
			latSum += *m.Latitude
			lonSum += *m.Longitude
			coords++
		}
		if agg.Earliest.IsZero() || m.Timestamp.Before(agg.Earliest) {
			agg.Earliest = m.Timestamp
		}
		if m.Timestamp.After(agg.Latest) {
			agg.Latest = m.Timestamp
		}
	}

	if coords > 0 {
		lat := latSum / float64(coords)
		lon := lonSum / float64(coords)
		agg.Latitude = &lat
		agg.Longitude = &lon
	}

	agg.Location = consensusLocation(placeCounts, c.cfg.Locale(region), coords > 0, region)
	return agg
}

// consensusLocation picks the most common resolved place, falling back to
// the locale's fallback labels when no member resolved one.
func consensusLocation(placeCounts map[string]int, loc *config.Locale, hasCoords bool, region string) string {
	best := ""
	bestCount := 0
	for place, count := range placeCounts {
		if count > bestCount || (count == bestCount && place < best) {
			best = place
			bestCount = count
		}
	}
	if best != "" {
		return best
	}
	if loc != nil {
		if hasCoords {
			return loc.FallbackLocation
		}
		return loc.FallbackUnspecified
	}
	return region
}

// createCluster persists a new cluster and builds its first incident.
func (c *Correlator) createCluster(agg *store.Cluster, members []report.Processed) (report.Incident, error) {
	ids := make([]int64, len(members))
	for i := range members {
		ids[i] = members[i].ID
	}
	id, err := c.store.CreateClusterWithMembers(agg, ids)
	if err != nil {
		return report.Incident{}, err
	}
	agg.ID = id
	return report.Incident{
		ClusterID:   id,
		Reports:     members,
		NewReports:  members,
		Location:    agg.Location,
		Latitude:    agg.Latitude,
		Longitude:   agg.Longitude,
		Confidence:  agg.Confidence,
		MemberCount: agg.MemberCount,
		SourceTypes: agg.SourceTypes,
		Earliest:    agg.Earliest,
		Latest:      agg.Latest,
		Type:        report.IncidentNew,
		Region:      agg.Region,
	}, nil
}

// incidentFor builds the incident for a cluster that gained members. A
// cluster already announced gets an update carrying only the members not
// yet notified; one whose first announcement never succeeded is re-emitted
// as new.
func (c *Correlator) incidentFor(agg *store.Cluster, members []report.Processed, notified bool) (report.Incident, error) {
	kind := report.IncidentNew
	var fresh []report.Processed
	if notified {
		kind = report.IncidentUpdate
		already, err := c.store.NotifiedMemberIDs(agg.ID)
		if err != nil {
			return report.Incident{}, err
		}
		for _, m := range members {
			if !already[m.ID] {
				fresh = append(fresh, m)
			}
		}
	} else {
		fresh = members
	}

	return report.Incident{
		ClusterID:   agg.ID,
		Reports:     members,
		NewReports:  fresh,
		Location:    agg.Location,
		Latitude:    agg.Latitude,
		Longitude:   agg.Longitude,
		Confidence:  agg.Confidence,
		MemberCount: agg.MemberCount,
		SourceTypes: agg.SourceTypes,
		Earliest:    agg.Earliest,
		Latest:      agg.Latest,
		Type:        kind,
		Region:      agg.Region,
	}, nil
}
