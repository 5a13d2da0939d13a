// Package skipstore tracks which event IDs the resident has asked to hide
// ("skip this one"), optionally durable across restarts. Grounded in the
// teacher's internal/storage/sqlite.Store connection setup (pragmas, single
// connection), trimmed to a single inline CREATE TABLE since there is only
// one table and no schema evolution to manage — golang-migrate is dropped
// for this store (see DESIGN.md).
package skipstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog"
)

// Store records event IDs the resident has asked to suppress, each with an
// expiry so a one-off "stop reminding me about this" doesn't persist
// forever once the event has passed.
type Store interface {
	IsSkipped(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkSkipped(ctx context.Context, eventID string, until time.Time) error
	Unmark(ctx context.Context, eventID string) error
	// Snapshot returns every currently-active skip as a set, for the
	// filter stage to consult without a per-event round trip.
	Snapshot(ctx context.Context, now time.Time) (map[string]bool, error)
}

// Memory is the default, non-durable implementation: skips don't survive a
// restart, which is acceptable since the spec names no durability
// requirement for this feature, only that skips apply for the remainder of
// the process lifetime at minimum.
type Memory struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{until: make(map[string]time.Time)}
}

func (m *Memory) IsSkipped(_ context.Context, eventID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.until[eventID]
	return ok && now.Before(until), nil
}

func (m *Memory) MarkSkipped(_ context.Context, eventID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.until[eventID] = until
	return nil
}

func (m *Memory) Unmark(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.until, eventID)
	return nil
}

func (m *Memory) Snapshot(_ context.Context, now time.Time) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.until))
	for id, until := range m.until {
		if now.Before(until) {
			out[id] = true
		}
	}
	return out, nil
}

// SQLite is the optional durable implementation, for a deployment that
// wants skips to survive a restart.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLite(path string, logger zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("skipstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("skipstore: %s: %w", pragma, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS skipped_events (
		event_id TEXT PRIMARY KEY,
		until_unix INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("skipstore: create table: %w", err)
	}

	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) IsSkipped(ctx context.Context, eventID string, now time.Time) (bool, error) {
	var until int64
	err := s.db.QueryRowContext(ctx, `SELECT until_unix FROM skipped_events WHERE event_id = ?`, eventID).Scan(&until)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("skipstore: query: %w", err)
	}
	return now.Unix() < until, nil
}

func (s *SQLite) MarkSkipped(ctx context.Context, eventID string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skipped_events (event_id, until_unix) VALUES (?, ?)
		 ON CONFLICT(event_id) DO UPDATE SET until_unix = excluded.until_unix`,
		eventID, until.Unix())
	if err != nil {
		return fmt.Errorf("skipstore: insert: %w", err)
	}
	return nil
}

func (s *SQLite) Unmark(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM skipped_events WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("skipstore: delete: %w", err)
	}
	return nil
}

func (s *SQLite) Snapshot(ctx context.Context, now time.Time) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id FROM skipped_events WHERE until_unix > ?`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("skipstore: snapshot query: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("skipstore: scan: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}
