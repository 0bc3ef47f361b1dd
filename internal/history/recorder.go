package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/events"
)

// Handler returns an event handler that records every rollback run. The
// start event creates the run, later events update it, and every event is
// appended to the run's log. Storage errors are logged, never returned: a
// broken history database must not fail a rollback.
func (s *Store) Handler() events.Handler {
	return func(e events.Event) {
		if e.Run == "" {
			return
		}
		ctx := context.Background()
		if err := s.apply(ctx, e); err != nil {
			s.logger.Warn("history: failed to record event",
				zap.String("run", e.Run), zap.String("event", string(e.Type)), zap.Error(err))
			return
		}
		if err := s.AppendEvent(ctx, e); err != nil {
			s.logger.Warn("history: failed to append event",
				zap.String("run", e.Run), zap.String("event", string(e.Type)), zap.Error(err))
		}
	}
}

func (s *Store) apply(ctx context.Context, e events.Event) error {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}

	switch e.Type {
	case events.RollbackStarted:
		return s.CreateRun(ctx, &Run{
			ID:        e.Run,
			Strategy:  e.Strategy,
			Repo:      payloadString(e.Payload, "repo"),
			TargetRef: payloadString(e.Payload, "target"),
			StartedAt: at,
		})
	case events.RevisionResolved:
		return s.setRevision(ctx, e.Run, payloadString(e.Payload, "role"), e.Revision)
	case events.ConflictResolved:
		return s.incrementConflicts(ctx, e.Run)
	case events.MergeApplied:
		return s.setChanged(ctx, e.Run, payloadInt(e.Payload, "changed"))
	case events.PlanComputed:
		return s.setChanged(ctx, e.Run, payloadInt(e.Payload, "changed"))
	case events.CommitCreated:
		return s.setCommit(ctx, e.Run, e.Revision, payloadInt(e.Payload, "changed"))
	case events.PushCompleted:
		return s.markPushed(ctx, e.Run)
	case events.RollbackCompleted:
		return s.FinishRun(ctx, e.Run, RunStatusCompleted, nil, at)
	case events.RollbackNoOp:
		return s.FinishRun(ctx, e.Run, RunStatusNoOp, nil, at)
	case events.DryRunCompleted:
		return s.FinishRun(ctx, e.Run, RunStatusDryRun, nil, at)
	case events.RollbackFailed:
		msg := e.Error
		return s.FinishRun(ctx, e.Run, RunStatusFailed, &msg, at)
	}
	return nil
}

func payloadString(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func payloadInt(payload any, key string) int {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
