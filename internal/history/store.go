// Package history keeps a SQLite record of every rollback run and its events.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection holding rollback history.
type Store struct {
	conn   *sql.DB
	logger *zap.Logger

	// seq tracks the next event sequence number per run
	mu  sync.Mutex
	seq map[string]int
}

// Open creates or opens the history database at path. It enables WAL mode
// and foreign keys, and runs migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared across calls
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, logger: logger, seq: make(map[string]int)}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
-- One row per rollback call
CREATE TABLE IF NOT EXISTS runs (
    id                  TEXT PRIMARY KEY,
    strategy            TEXT NOT NULL,
    repo                TEXT NOT NULL,
    target_ref          TEXT NOT NULL,
    target              TEXT,
    head                TEXT,
    status              TEXT NOT NULL,
    commit_rev          TEXT,
    changed_paths       INTEGER NOT NULL DEFAULT 0,
    conflicts_resolved  INTEGER NOT NULL DEFAULT 0,
    pushed              INTEGER NOT NULL DEFAULT 0,
    started_at          DATETIME NOT NULL,
    completed_at        DATETIME,
    error               TEXT
);

-- Event log of each run, in emit order
CREATE TABLE IF NOT EXISTS events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    sequence        INTEGER NOT NULL,
    event_type      TEXT NOT NULL,
    path            TEXT,
    revision        TEXT,
    payload_json    TEXT,
    error           TEXT,
    created_at      DATETIME NOT NULL,
    UNIQUE(run_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id, sequence);
`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
