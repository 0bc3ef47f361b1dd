package rollback

import (
	"context"
	"errors"
	"fmt"

	"github.com/RevCBH/trunkback/internal/classify"
	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/vcs"
	"github.com/RevCBH/trunkback/internal/workspace"
)

// DiffStrategy rolls back a distributed repository by diffing the target
// against head, removing paths introduced since the target, restoring every
// other changed path from the target, then committing and pushing.
type DiffStrategy struct {
	backend vcs.DistributedBackend
	opts    Options
}

// NewDiffStrategy creates a diff-based rollback bound to backend.
func NewDiffStrategy(backend vcs.DistributedBackend, opts Options) *DiffStrategy {
	return &DiffStrategy{backend: backend, opts: opts.withDefaults()}
}

// Rollback moves the trunk back to req.Target and publishes the result. A
// rejected push is returned as vcs.ErrPushRejected and the local commit is
// discarded with the workspace.
func (s *DiffStrategy) Rollback(ctx context.Context, req Request) (res *Result, err error) {
	r := newRun(s.opts, s.backend, StrategyDiff, req)
	defer func() { r.finish(err) }()

	if err := r.resolve(ctx, req.Target); err != nil {
		return r.result, err
	}
	if r.result.Head == r.result.Target {
		r.result.Commit = vcs.NoOpResult
		return r.result, nil
	}

	err = r.withWorkspace(ctx, func(ws *workspace.Workspace) error {
		wc, err := r.checkout(ctx, ws)
		if err != nil {
			return err
		}

		// Target is the old side: adds are paths created after the target.
		plan, err := classify.Classify(s.backend.Diff(ctx, r.result.Target, r.result.Head))
		if err != nil {
			return fmt.Errorf("diff %s..%s: %w", r.result.Target, r.result.Head, err)
		}
		r.result.Plan = plan
		r.result.ChangedPaths = len(plan.Paths())
		r.emit(r.event(events.PlanComputed).WithPayload(map[string]any{
			"changed":  r.result.ChangedPaths,
			"removals": len(plan.Removals()),
			"restores": len(plan.Restores()),
		}))

		if plan.Empty() {
			r.result.Commit = vcs.NoOpResult
			return nil
		}
		if req.DryRun {
			return nil
		}

		if err := s.apply(ctx, r, wc, plan); err != nil {
			return err
		}

		if err := r.commit(ctx, wc, req.Message); err != nil {
			return err
		}
		if r.result.Commit.IsNoOp() {
			return nil
		}

		if err := s.backend.Push(ctx, wc, vcs.PushOptions{Force: req.Force}); err != nil {
			r.emit(r.event(events.PushFailed).WithRevision(r.result.Commit.Revision.String()).WithError(err))
			if errors.Is(err, vcs.ErrPushRejected) {
				return fmt.Errorf("publish rollback %s: %w", r.result.Commit.Revision, err)
			}
			return fmt.Errorf("push: %w", err)
		}
		r.result.Pushed = true
		r.emit(r.event(events.PushCompleted).WithRevision(r.result.Commit.Revision.String()))
		return nil
	})
	return r.result, err
}

// apply stages every removal before any restore so a renamed path ends up
// back under its original name.
func (s *DiffStrategy) apply(ctx context.Context, r *run, wc *vcs.WorkingCopy, plan *classify.Plan) error {
	for _, a := range plan.Removals() {
		if err := s.backend.StageRemoval(ctx, wc, a.Path); err != nil {
			return fmt.Errorf("remove %s: %w", a.Path, err)
		}
		r.result.Removed++
		r.emit(r.event(events.PathRemoved).WithPath(a.Path))
	}
	for _, a := range plan.Restores() {
		if err := s.backend.ApplyPathContent(ctx, wc, a.Path, r.result.Target); err != nil {
			return fmt.Errorf("restore %s: %w", a.Path, err)
		}
		r.result.Restored++
		r.emit(r.event(events.PathRestored).WithPath(a.Path).WithRevision(r.result.Target.String()))
	}
	return nil
}
