package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sightwatch/sightwatch/internal/report"
)

// InsertRaw stores a collected report if its identity has not been seen.
// Returns the row id and whether the row was newly inserted; re-delivery of
// a known (source_type, source_id) pair returns the existing id.
func (s *Store) InsertRaw(r report.Raw) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO raw_reports
			(source_type, source_id, source_url, author, original_text, reported_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(r.SourceType), r.SourceID, r.SourceURL, r.Author, r.Text,
		r.Timestamp.UTC(), r.Collected.UTC())
	if err != nil {
		return 0, false, fmt.Errorf("insert report: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		return id, true, err
	}

	var id int64
	err = s.db.QueryRow(
		"SELECT id FROM raw_reports WHERE source_type = ? AND source_id = ?",
		string(r.SourceType), r.SourceID,
	).Scan(&id)
	return id, false, err
}

// UpdateProcessing writes the pipeline annotations for a stored report:
// cleaned text, relevance verdict, keywords and resolved location.
func (s *Store) UpdateProcessing(p *report.Processed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	relevant := 0
	if p.Relevant {
		relevant = 1
	}
	_, err := s.db.Exec(`
		UPDATE raw_reports
		SET cleaned_text = ?, relevant = ?, keywords = ?,
			region = ?, place = ?, latitude = ?, longitude = ?
		WHERE id = ?
	`, p.CleanedText, relevant, joinKeywords(p.Keywords),
		p.Region, p.Place, p.Latitude, p.Longitude, p.ID)
	if err != nil {
		return fmt.Errorf("update processing %d: %w", p.ID, err)
	}
	return nil
}

const reportColumns = `
	id, source_type, source_id, source_url, author,
	original_text, cleaned_text, reported_at, collected_at,
	relevant, region, place, latitude, longitude, keywords,
	cluster_id, notified, expired`

func scanReport(rows interface{ Scan(...any) error }) (report.Processed, error) {
	var p report.Processed
	var sourceType, cleaned, keywords sql.NullString
	var lat, lon sql.NullFloat64
	var clusterID sql.NullInt64
	var relevant, notified, expired int
	err := rows.Scan(
		&p.ID, &sourceType, &p.SourceID, &p.SourceURL, &p.Author,
		&p.OriginalText, &cleaned, &p.Timestamp, &p.Collected,
		&relevant, &p.Region, &p.Place, &lat, &lon, &keywords,
		&clusterID, &notified, &expired,
	)
	if err != nil {
		return p, err
	}
	p.SourceType = report.SourceType(sourceType.String)
	p.CleanedText = cleaned.String
	p.Keywords = splitKeywords(keywords.String)
	p.Relevant = relevant != 0
	p.Notified = notified != 0
	p.Expired = expired != 0
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	if clusterID.Valid {
		p.ClusterID = &clusterID.Int64
	}
	return p, nil
}

// RecentRelevant returns unexpired relevant reports posted at or after
// since, oldest first.
func (s *Store) RecentRelevant(since time.Time) ([]report.Processed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT `+reportColumns+`
		FROM raw_reports
		WHERE relevant = 1 AND expired = 0 AND reported_at >= ?
		ORDER BY reported_at ASC
	`, since.UTC())
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

// GetReport returns one report by id, or nil when it does not exist.
func (s *Store) GetReport(id int64) (*report.Processed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+reportColumns+` FROM raw_reports WHERE id = ?`, id)
	p, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReportsAfter returns up to limit reports with id greater than afterID,
// in id order. Used for batched scans over the whole table.
func (s *Store) ReportsAfter(afterID int64, limit int) ([]report.Processed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT `+reportColumns+`
		FROM raw_reports
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
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

// ExpireReportsBefore marks unclustered reports posted before cutoff as
// expired, removing them from future correlation passes. Cluster members are
// left alone; the active-cluster horizon ages those out. Returns the number
// expired.
func (s *Store) ExpireReportsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE raw_reports SET expired = 1
		WHERE expired = 0 AND cluster_id IS NULL AND reported_at < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeOlderThan deletes reports posted before cutoff, along with clusters
// (and their notification history) whose activity ended before it.
func (s *Store) PurgeOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM raw_reports WHERE reported_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.Exec(`
		DELETE FROM notifications WHERE cluster_id IN
			(SELECT id FROM clusters WHERE latest < ?)
	`, cutoff.UTC()); err != nil {
		return 0, err
	}
	if _, err := tx.Exec("DELETE FROM clusters WHERE latest < ?", cutoff.UTC()); err != nil {
		return 0, err
	}

	return deleted, tx.Commit()
}

// ReportCount returns the total number of stored reports.
func (s *Store) ReportCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM raw_reports").Scan(&count)
	return count, err
}
