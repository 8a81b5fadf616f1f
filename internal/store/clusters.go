package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sightwatch/sightwatch/internal/report"
)

// Cluster is a stored group of corroborated reports.
type Cluster struct {
	ID          int64
	Region      string
	Location    string
	Latitude    *float64
	Longitude   *float64
	Confidence  float64
	MemberCount int
	SourceTypes []report.SourceType
	Earliest    time.Time
	Latest      time.Time
	Notified    bool
	NotifiedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func joinSourceTypes(sts []report.SourceType) string {
	parts := make([]string, len(sts))
	for i, st := range sts {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}

func splitSourceTypes(s string) []report.SourceType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]report.SourceType, len(parts))
	for i, p := range parts {
		out[i] = report.SourceType(p)
	}
	return out
}

// CreateClusterWithMembers inserts a cluster and assigns its members in one
// transaction. Returns the new cluster id.
func (s *Store) CreateClusterWithMembers(c *Cluster, memberIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`
		INSERT INTO clusters
			(region, location, latitude, longitude, confidence, member_count,
			 source_types, earliest, latest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Region, c.Location, c.Latitude, c.Longitude, c.Confidence, c.MemberCount,
		joinSourceTypes(c.SourceTypes), c.Earliest.UTC(), c.Latest.UTC(), now, now)
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := assignMembers(tx, id, memberIDs); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// UpdateClusterWithMembers rewrites a cluster's aggregates and attaches any
// new members in one transaction.
func (s *Store) UpdateClusterWithMembers(c *Cluster, newMemberIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE clusters
		SET location = ?, latitude = ?, longitude = ?, confidence = ?,
			member_count = ?, source_types = ?, earliest = ?, latest = ?,
			updated_at = ?
		WHERE id = ?
	`, c.Location, c.Latitude, c.Longitude, c.Confidence,
		c.MemberCount, joinSourceTypes(c.SourceTypes),
		c.Earliest.UTC(), c.Latest.UTC(), time.Now().UTC(), c.ID)
	if err != nil {
		return fmt.Errorf("update cluster %d: %w", c.ID, err)
	}

	if err := assignMembers(tx, c.ID, newMemberIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func assignMembers(tx *sql.Tx, clusterID int64, memberIDs []int64) error {
	for _, rid := range memberIDs {
		if _, err := tx.Exec(
			"UPDATE raw_reports SET cluster_id = ? WHERE id = ?",
			clusterID, rid,
		); err != nil {
			return fmt.Errorf("assign report %d to cluster %d: %w", rid, clusterID, err)
		}
	}
	return nil
}

const clusterColumns = `
	id, region, location, latitude, longitude, confidence, member_count,
	source_types, earliest, latest, notified, notified_at, created_at, updated_at`

func scanCluster(rows interface{ Scan(...any) error }) (Cluster, error) {
	var c Cluster
	var lat, lon sql.NullFloat64
	var sourceTypes string
	var notified int
	var notifiedAt sql.NullTime
	err := rows.Scan(
		&c.ID, &c.Region, &c.Location, &lat, &lon, &c.Confidence, &c.MemberCount,
		&sourceTypes, &c.Earliest, &c.Latest, &notified, &notifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if lat.Valid {
		c.Latitude = &lat.Float64
	}
	if lon.Valid {
		c.Longitude = &lon.Float64
	}
	if notifiedAt.Valid {
		c.NotifiedAt = &notifiedAt.Time
	}
	c.SourceTypes = splitSourceTypes(sourceTypes)
	c.Notified = notified != 0
	return c, nil
}

// ActiveClusters returns clusters whose most recent member activity is at or
// after cutoff, newest first.
func (s *Store) ActiveClusters(cutoff time.Time) ([]Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT `+clusterColumns+`
		FROM clusters
		WHERE latest >= ?
		ORDER BY latest DESC
	`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCluster returns one cluster by id, or nil when it does not exist.
func (s *Store) GetCluster(id int64) (*Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+clusterColumns+` FROM clusters WHERE id = ?`, id)
	c, err := scanCluster(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClusterMembers returns every report assigned to a cluster, oldest first.
func (s *Store) ClusterMembers(clusterID int64) ([]report.Processed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT `+reportColumns+`
		FROM raw_reports
		WHERE cluster_id = ?
		ORDER BY reported_at ASC
	`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Processed
	for rows.Next() {
		p, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NotifiedMemberIDs returns the ids of a cluster's members that were part of
// a previous notification.
func (s *Store) NotifiedMemberIDs(clusterID int64) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id FROM raw_reports WHERE cluster_id = ? AND notified = 1",
		clusterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// MarkClusterNotified flags the cluster and all of its current members as
// notified, in one transaction.
func (s *Store) MarkClusterNotified(clusterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE clusters SET notified = 1, notified_at = ? WHERE id = ?",
		time.Now().UTC(), clusterID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE raw_reports SET notified = 1 WHERE cluster_id = ?", clusterID); err != nil {
		return err
	}
	return tx.Commit()
}

// LogNotification appends one row of notification history: the delivery
// attempt, the rendered message, and whether it went out.
func (s *Store) LogNotification(clusterID int64, kind report.IncidentType, reportIDs []int64, message string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]string, len(reportIDs))
	for i, id := range reportIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sent := 0
	if success {
		sent = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (cluster_id, kind, report_ids, message, success, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, clusterID, string(kind), strings.Join(parts, ","), message, sent, time.Now().UTC())
	return err
}

// NotificationCount returns how many notifications were delivered for a
// cluster. Failed attempts stay in the history but are not counted.
func (s *Store) NotificationCount(clusterID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE cluster_id = ? AND success = 1", clusterID,
	).Scan(&count)
	return count, err
}
