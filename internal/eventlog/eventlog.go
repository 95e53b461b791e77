// Package eventlog implements the durable event log backed by a SQLite
// database. The controller writes through the async Sink so logging never
// blocks a state transition; the web layer reads recent events for display.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
)

// Record is one logged event row. The JSON form is what /api/events serves.
type Record struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        logic.EventType `json:"type"`
	Description string          `json:"description"`
	Severity    logic.Severity  `json:"severity"`
	Actor       string          `json:"actor,omitempty"`
}

// Store wraps the SQLite database holding the events table.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL DEFAULT 'INFO',
	actor       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// Open creates or opens the database at path, runs migrations, and enables
// WAL mode for concurrent reads while the sink is writing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// Per-connection pragmas ride the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite setup (%s): %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate events table: %w", err)
	}

	return &Store{db: db}, nil
}

// Append inserts one record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (timestamp, event_type, description, severity, actor)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		string(rec.Type), rec.Description, string(rec.Severity), rec.Actor)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first, optionally filtered by
// event type.
func (s *Store) Recent(ctx context.Context, limit, offset int, eventType string) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, timestamp, event_type, description, severity, actor FROM events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, strings.ToUpper(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec Record
			ts  string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Type, &rec.Description, &rec.Severity, &rec.Actor); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			rec.Timestamp = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the total number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
