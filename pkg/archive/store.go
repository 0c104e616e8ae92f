// Package archive keeps a log of finished sessions in SQLite and writes
// strips that could not be uploaded to a local directory.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the sessions table.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	target      INTEGER NOT NULL,
	shots       INTEGER NOT NULL,
	skipped     INTEGER NOT NULL DEFAULT 0,
	outcome     TEXT NOT NULL,
	delivery    TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	local_path  TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	bytes       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished_at);
`

// Record is one finished session.
type Record struct {
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Target     int       `json:"target"`
	Shots      int       `json:"shots"`
	Skipped    int       `json:"skipped"`
	Outcome    string    `json:"outcome"`            // complete or failed
	Delivery   string    `json:"delivery,omitempty"` // remote or local
	URL        string    `json:"url,omitempty"`
	LocalPath  string    `json:"local_path,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Bytes      int       `json:"bytes"`
}

// Store is the session log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("archive: create db directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts r, replacing any earlier record with the same session ID.
func (s *Store) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(id, started_at, finished_at, target, shots, skipped, outcome, delivery, url, local_path, reason, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Target, r.Shots, r.Skipped, r.Outcome, r.Delivery, r.URL, r.LocalPath, r.Reason, r.Bytes,
	)
	if err != nil {
		return fmt.Errorf("archive: save %s: %w", r.SessionID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, target, shots, skipped, outcome, delivery, url, local_path, reason, bytes
		FROM sessions
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var started, finished int64
		if err := rows.Scan(&r.SessionID, &started, &finished, &r.Target, &r.Shots, &r.Skipped,
			&r.Outcome, &r.Delivery, &r.URL, &r.LocalPath, &r.Reason, &r.Bytes); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of sessions per outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM sessions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("archive: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
