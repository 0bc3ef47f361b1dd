// Package rollback implements the two trunk rollback strategies: applying a
// reverse merge range on a centralized server, and restoring a snapshot diff
// on a distributed repository.
//
// Both strategies are stateless apart from their injected collaborators and
// may be used concurrently; every call owns its own workspace.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/classify"
	"github.com/RevCBH/trunkback/internal/conflict"
	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/vcs"
	"github.com/RevCBH/trunkback/internal/workspace"
)

// Strategy names, as recorded in events and history.
const (
	StrategyMerge = "merge"
	StrategyDiff  = "diff"
)

// ErrEmptyTarget is returned when a request names no target revision.
var ErrEmptyTarget = errors.New("rollback: target revision is required")

// Request describes one rollback.
type Request struct {
	// Target is the ref to roll the trunk back to
	Target string

	// Message is the commit message; a trailer naming the target is always added
	Message string

	// Force allows overwriting the remote when it moved since checkout
	// (diff strategy only)
	Force bool

	// DryRun computes the changes but neither commits nor pushes
	DryRun bool
}

// Result is the outcome of a rollback. Commit.NoOp is set when there was
// nothing to roll back.
type Result struct {
	RunID    string
	Strategy string
	Repo     string

	Head   vcs.RevisionID
	Target vcs.RevisionID

	Commit vcs.CommitResult

	// Plan is the computed rollback plan (diff strategy only)
	Plan *classify.Plan

	Removed           int
	Restored          int
	ChangedPaths      int
	ConflictsResolved int

	Pushed bool
	DryRun bool

	StartedAt time.Time
	Duration  time.Duration
}

// NoOp reports whether the rollback produced no commit.
func (r *Result) NoOp() bool {
	return r.Commit.IsNoOp()
}

// Options are the collaborators shared by both strategies.
type Options struct {
	// Workspaces allocates scratch directories (default: manager in os.TempDir())
	Workspaces *workspace.Manager

	// Policy resolves merge conflicts (default: conflict.Default())
	Policy vcs.ConflictPolicy

	// Events receives progress events; may be nil
	Events *events.Bus

	Logger *zap.Logger

	// NewRunID generates run identifiers (default: uuid)
	NewRunID func() string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Workspaces == nil {
		o.Workspaces = workspace.NewManager("", o.Logger)
	}
	if o.Policy == nil {
		o.Policy = conflict.Default()
	}
	if o.NewRunID == nil {
		o.NewRunID = uuid.NewString
	}
	return o
}

// run carries the per-call state shared by the strategy implementations.
type run struct {
	opts    Options
	backend vcs.Backend
	result  *Result
	logger  *zap.Logger
}

func newRun(opts Options, backend vcs.Backend, strategy string, req Request) *run {
	result := &Result{
		RunID:     opts.NewRunID(),
		Strategy:  strategy,
		Repo:      backend.Name(),
		DryRun:    req.DryRun,
		StartedAt: time.Now(),
	}
	r := &run{
		opts:    opts,
		backend: backend,
		result:  result,
		logger: opts.Logger.With(
			zap.String("run", result.RunID),
			zap.String("strategy", strategy),
			zap.String("repo", result.Repo),
		),
	}
	r.emit(events.NewEvent(events.RollbackStarted, result.RunID).
		WithPayload(map[string]any{"target": req.Target, "repo": result.Repo}))
	r.logger.Info("rollback started", zap.String("target", req.Target))
	return r
}

func (r *run) emit(e events.Event) {
	r.opts.Events.Emit(e.WithStrategy(r.result.Strategy))
}

func (r *run) event(t events.EventType) events.Event {
	return events.NewEvent(t, r.result.RunID)
}

// finish stamps the duration and emits the terminal event.
func (r *run) finish(err error) {
	r.result.Duration = time.Since(r.result.StartedAt)
	switch {
	case err != nil:
		r.emit(r.event(events.RollbackFailed).WithError(err))
		r.logger.Warn("rollback failed", zap.Error(err), zap.Duration("duration", r.result.Duration))
	case r.result.DryRun:
		r.emit(r.event(events.DryRunCompleted).WithPayload(map[string]any{
			"changed": r.result.ChangedPaths,
		}))
		r.logger.Info("rollback dry run completed", zap.Int("changed", r.result.ChangedPaths))
	case r.result.NoOp():
		r.emit(r.event(events.RollbackNoOp).WithRevision(r.result.Target.String()))
		r.logger.Info("rollback is a no-op", zap.String("target", r.result.Target.String()))
	default:
		r.emit(r.event(events.RollbackCompleted).
			WithRevision(r.result.Commit.Revision.String()).
			WithPayload(map[string]any{
				"changed": r.result.Commit.ChangedPathCount,
				"target":  r.result.Target.String(),
			}))
		r.logger.Info("rollback completed",
			zap.String("commit", r.result.Commit.Revision.String()),
			zap.Int("changed", r.result.Commit.ChangedPathCount),
			zap.Duration("duration", r.result.Duration))
	}
}

// resolve resolves the target before the head, so a bad target aborts before
// anything else happens.
func (r *run) resolve(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrEmptyTarget
	}
	target, err := r.backend.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve target %q: %w", ref, err)
	}
	r.result.Target = target
	r.emit(r.event(events.RevisionResolved).WithRevision(target.String()).
		WithPayload(map[string]any{"role": "target", "ref": ref}))

	head, err := r.backend.Head(ctx)
	if err != nil {
		return fmt.Errorf("resolve head: %w", err)
	}
	r.result.Head = head
	r.emit(r.event(events.RevisionResolved).WithRevision(head.String()).
		WithPayload(map[string]any{"role": "head"}))
	return nil
}

// withWorkspace runs fn in a fresh workspace that is released on every exit
// path, and reports acquisition and release as events.
func (r *run) withWorkspace(ctx context.Context, fn func(ws *workspace.Workspace) error) error {
	var path string
	err := r.opts.Workspaces.With(ctx, func(ws *workspace.Workspace) error {
		path = ws.Path
		r.emit(r.event(events.WorkspaceAcquired).WithPath(ws.Path))
		return fn(ws)
	})
	if path != "" {
		r.emit(r.event(events.WorkspaceReleased).WithPath(path))
	}
	return err
}

func (r *run) checkout(ctx context.Context, ws *workspace.Workspace) (*vcs.WorkingCopy, error) {
	wc, err := r.backend.Checkout(ctx, r.result.Head, ws.Path)
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", r.result.Head, err)
	}
	r.emit(r.event(events.CheckoutCompleted).WithPath(wc.Path).WithRevision(wc.Revision.String()))
	return wc, nil
}

func (r *run) commit(ctx context.Context, wc *vcs.WorkingCopy, message string) error {
	cr, err := r.backend.Commit(ctx, wc, commitMessage(message, r.result.Target, r.result.Head))
	if err != nil {
		return fmt.Errorf("commit rollback: %w", err)
	}
	r.result.Commit = cr
	if !cr.IsNoOp() {
		r.emit(r.event(events.CommitCreated).WithRevision(cr.Revision.String()).
			WithPayload(map[string]any{"changed": cr.ChangedPathCount}))
	}
	return nil
}

// commitMessage builds the rollback commit message. The target and the head
// it replaces are always recorded as trailers.
func commitMessage(message string, target, head vcs.RevisionID) string {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("Roll back trunk to revision %s", target)
	}
	return fmt.Sprintf("%s\n\nRollback-Target: %s\nRollback-From: %s\n", message, target, head)
}
