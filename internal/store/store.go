// Package store persists reports, clusters and notification history in
// SQLite. It is the single writer for all pipeline state.
package store

import (
	"database/sql"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sightwatch/sightwatch/internal/logging"
)

// Store handles persistence of reports and clusters. All methods are safe
// for concurrent use; writes are serialized on a single mutex because the
// driver allows one writer at a time.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
// ":memory:" opens a private in-memory database for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logging.Error("Failed to open database", "path", path, "error", err)
		return nil, err
	}
	// One connection keeps an in-memory database alive and private, and
	// sidesteps writer contention for file databases.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		logging.Error("Failed to migrate database", "error", err)
		db.Close()
		return nil, err
	}

	logging.Info("Database initialized", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_url TEXT,
		author TEXT,
		original_text TEXT NOT NULL,
		cleaned_text TEXT,
		reported_at DATETIME NOT NULL,
		collected_at DATETIME NOT NULL,
		relevant INTEGER DEFAULT 0,
		region TEXT DEFAULT '',
		place TEXT DEFAULT '',
		latitude REAL,
		longitude REAL,
		keywords TEXT DEFAULT '',
		cluster_id INTEGER,
		notified INTEGER DEFAULT 0,
		expired INTEGER DEFAULT 0,
		UNIQUE(source_type, source_id)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_reported ON raw_reports(reported_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_relevant ON raw_reports(relevant, expired);
	CREATE INDEX IF NOT EXISTS idx_reports_cluster ON raw_reports(cluster_id);

	CREATE TABLE IF NOT EXISTS clusters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		region TEXT NOT NULL,
		location TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		confidence REAL NOT NULL,
		member_count INTEGER NOT NULL,
		source_types TEXT NOT NULL,
		earliest DATETIME NOT NULL,
		latest DATETIME NOT NULL,
		notified INTEGER DEFAULT 0,
		notified_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_clusters_region ON clusters(region);
	CREATE INDEX IF NOT EXISTS idx_clusters_latest ON clusters(latest DESC);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cluster_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		report_ids TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 1,
		sent_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (cluster_id) REFERENCES clusters(id)
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_cluster ON notifications(cluster_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func joinKeywords(kws []string) string {
	return strings.Join(kws, ",")
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
