package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a recorded rollback
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusNoOp      RunStatus = "noop"
	RunStatusDryRun    RunStatus = "dry-run"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run has finished
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("history: run not found")

// Run is one recorded rollback.
type Run struct {
	ID       string
	Strategy string
	Repo     string

	// TargetRef is the ref as requested; Target and Head are resolved IDs
	TargetRef string
	Target    string
	Head      string

	Status            RunStatus
	Commit            string
	ChangedPaths      int
	ConflictsResolved int
	Pushed            bool

	StartedAt   time.Time
	CompletedAt *time.Time
	Error       *string
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

const runColumns = `id, strategy, repo, target_ref, target, head, status, commit_rev,
	changed_paths, conflicts_resolved, pushed, started_at, completed_at, error`

// CreateRun inserts a new run.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Repo, run.TargetRef,
		nullString(run.Target), nullString(run.Head), run.Status, nullString(run.Commit),
		run.ChangedPaths, run.ConflictsResolved, run.Pushed,
		run.StartedAt.UTC(), utcPtr(run.CompletedAt), run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns ErrRunNotFound when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// setRevision records a resolved target or head.
func (s *Store) setRevision(ctx context.Context, id, column, rev string) error {
	var query string
	switch column {
	case "target":
		query = `UPDATE runs SET target = ? WHERE id = ?`
	case "head":
		query = `UPDATE runs SET head = ? WHERE id = ?`
	default:
		return fmt.Errorf("unknown revision column %q", column)
	}
	return s.exec(ctx, query, rev, id)
}

func (s *Store) setCommit(ctx context.Context, id, rev string, changed int) error {
	return s.exec(ctx, `UPDATE runs SET commit_rev = ?, changed_paths = ? WHERE id = ?`, rev, changed, id)
}

func (s *Store) setChanged(ctx context.Context, id string, changed int) error {
	return s.exec(ctx, `UPDATE runs SET changed_paths = ? WHERE id = ?`, changed, id)
}

func (s *Store) incrementConflicts(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE runs SET conflicts_resolved = conflicts_resolved + 1 WHERE id = ?`, id)
}

func (s *Store) markPushed(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE runs SET pushed = 1 WHERE id = ?`, id)
}

// FinishRun moves a run to a terminal status and stamps completed_at.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, errMsg *string, at time.Time) error {
	return s.exec(ctx, `UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, at.UTC(), id)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                  Run
		target, head, commit sql.NullString
		completedAt          sql.NullTime
		errMsg               sql.NullString
	)
	err := row.Scan(&run.ID, &run.Strategy, &run.Repo, &run.TargetRef,
		&target, &head, &run.Status, &commit,
		&run.ChangedPaths, &run.ConflictsResolved, &run.Pushed,
		&run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	run.Target = target.String
	run.Head = head.String
	run.Commit = commit.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		msg := errMsg.String
		run.Error = &msg
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
