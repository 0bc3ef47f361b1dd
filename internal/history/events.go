package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RevCBH/trunkback/internal/events"
)

// AppendEvent stores e as the next event of its run.
func (s *Store) AppendEvent(ctx context.Context, e events.Event) error {
	var payload sql.NullString
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	seq := s.seq[e.Run] + 1
	s.seq[e.Run] = seq
	s.mu.Unlock()

	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO events (run_id, sequence, event_type, path, revision, payload_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Run, seq, string(e.Type), nullString(e.Path), nullString(e.Revision),
		payload, nullString(e.Error), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns the events of a run in emit order. Payloads come back
// as decoded JSON.
func (s *Store) ListEvents(ctx context.Context, runID string) ([]events.Event, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT event_type, path, revision, payload_json, error, created_at
		FROM events WHERE run_id = ? ORDER BY sequence`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e                  events.Event
			typ                string
			path, rev, payload sql.NullString
			errMsg             sql.NullString
		)
		if err := rows.Scan(&typ, &path, &rev, &payload, &errMsg, &e.Time); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = events.EventType(typ)
		e.Run = runID
		e.Path = path.String
		e.Revision = rev.String
		e.Error = errMsg.String
		if payload.Valid {
			var decoded any
			if err := json.Unmarshal([]byte(payload.String), &decoded); err != nil {
				return nil, fmt.Errorf("failed to decode payload: %w", err)
			}
			e.Payload = decoded
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
