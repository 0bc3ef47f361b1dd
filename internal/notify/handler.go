package notify

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// Outcome selects which finished runs produce a notice
type Outcome string

const (
	OnFailure Outcome = "failure"
	OnSuccess Outcome = "success"
)

// DefaultTimeout bounds a delivery when HandlerConfig.Timeout is zero
const DefaultTimeout = 10 * time.Second

// HandlerConfig controls which events are delivered
type HandlerConfig struct {
	Outcomes []Outcome
	Timeout  time.Duration
	Logger   *zap.Logger
}

type runInfo struct {
	repo   string
	target string
}

// Handler returns an event handler that sends a notice when a run finishes
// with one of the configured outcomes. Delivery failures are logged and never
// change the rollback result.
func Handler(n Notifier, cfg HandlerConfig) events.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	var (
		mu   sync.Mutex
		runs = map[string]runInfo{}
	)
	take := func(run string) runInfo {
		mu.Lock()
		defer mu.Unlock()
		info := runs[run]
		delete(runs, run)
		return info
	}

	return func(e events.Event) {
		var (
			notice Notice
			want   Outcome
		)
		switch e.Type {
		case events.RollbackStarted:
			mu.Lock()
			runs[e.Run] = runInfo{
				repo:   payloadString(e.Payload, "repo"),
				target: payloadString(e.Payload, "target"),
			}
			mu.Unlock()
			return
		case events.RollbackFailed:
			notice, want = failureNotice(e, take(e.Run)), OnFailure
		case events.RollbackCompleted:
			notice, want = successNotice(e, take(e.Run)), OnSuccess
		case events.RollbackNoOp, events.DryRunCompleted:
			take(e.Run)
			return
		default:
			return
		}
		if !slices.Contains(cfg.Outcomes, want) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := n.Notify(ctx, notice); err != nil {
			cfg.Logger.Warn("notification failed",
				zap.String("notifier", n.Name()),
				zap.String("run", e.Run),
				zap.Error(err))
		}
	}
}

func failureNotice(e events.Event, info runInfo) Notice {
	n := Notice{
		Severity: SeverityCritical,
		Run:      e.Run,
		Repo:     info.repo,
		Title:    "rollback failed",
		Message:  e.Error,
		Fields:   map[string]string{"strategy": e.Strategy, "target": info.target},
	}
	switch {
	case strings.Contains(e.Error, vcs.ErrPushRejected.Error()):
		n.Title = "rollback push rejected"
		n.Message = "trunk moved while the rollback was running; rerun against the new head\n" + e.Error
	case strings.Contains(e.Error, vcs.ErrRevisionNotFound.Error()):
		n.Severity = SeverityWarning
		n.Title = "rollback target not found"
	}
	return n
}

func successNotice(e events.Event, info runInfo) Notice {
	return Notice{
		Severity: SeverityInfo,
		Run:      e.Run,
		Repo:     info.repo,
		Title:    fmt.Sprintf("rolled back to %s", info.target),
		Message:  fmt.Sprintf("%d path(s) changed", payloadInt(e.Payload, "changed")),
		Fields: map[string]string{
			"strategy": e.Strategy,
			"commit":   e.Revision,
			"target":   payloadString(e.Payload, "target"),
		},
	}
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
	case float64:
		return int(v)
	}
	return 0
}
