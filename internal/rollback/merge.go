package rollback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/vcs"
	"github.com/RevCBH/trunkback/internal/workspace"
)

// MergeStrategy rolls back a centralized repository by merging the range
// head -> target into a fresh checkout of head and committing the result.
type MergeStrategy struct {
	backend vcs.CentralizedBackend
	opts    Options
}

// NewMergeStrategy creates a merge-based rollback bound to backend.
func NewMergeStrategy(backend vcs.CentralizedBackend, opts Options) *MergeStrategy {
	return &MergeStrategy{backend: backend, opts: opts.withDefaults()}
}

// Rollback moves the trunk back to req.Target. The returned result has
// Commit.NoOp set when target and head are the same revision or the merge
// changed nothing.
func (s *MergeStrategy) Rollback(ctx context.Context, req Request) (res *Result, err error) {
	r := newRun(s.opts, s.backend, StrategyMerge, req)
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

		// The trunk may have advanced between resolution and checkout.
		head, err := s.backend.Update(ctx, wc)
		if err != nil {
			return fmt.Errorf("update working copy: %w", err)
		}
		if head != r.result.Head {
			r.logger.Info("trunk advanced before merge",
				zap.String("resolved", r.result.Head.String()),
				zap.String("updated", head.String()))
			r.result.Head = head
		}
		r.emit(r.event(events.WorkingCopyUpdated).WithRevision(head.String()))

		merge, err := s.backend.MergeRange(ctx, head, r.result.Target, wc, r.observePolicy(s.opts.Policy))
		if err != nil {
			return fmt.Errorf("merge %s:%s: %w", head, r.result.Target, err)
		}
		r.result.ChangedPaths = merge.ChangedPathCount
		r.emit(r.event(events.MergeApplied).WithPayload(map[string]any{
			"changed":   merge.ChangedPathCount,
			"conflicts": r.result.ConflictsResolved,
		}))

		if merge.ChangedPathCount == 0 {
			r.result.Commit = vcs.NoOpResult
			return nil
		}
		if req.DryRun {
			return nil
		}
		return r.commit(ctx, wc, req.Message)
	})
	return r.result, err
}

// observePolicy wraps policy so every decision is counted and reported. A
// nil policy falls back to keeping the target's content.
func (r *run) observePolicy(policy vcs.ConflictPolicy) vcs.ConflictPolicy {
	return policyFunc(func(c vcs.ConflictDescriptor) vcs.Resolution {
		res := vcs.KeepTheirs
		if policy != nil {
			res = policy.Resolve(c)
		}
		r.result.ConflictsResolved++
		r.emit(r.event(events.ConflictResolved).WithPath(c.Path).WithPayload(map[string]any{
			"resolution": res.String(),
			"reason":     c.Reason,
		}))
		return res
	})
}

type policyFunc func(c vcs.ConflictDescriptor) vcs.Resolution

func (f policyFunc) Resolve(c vcs.ConflictDescriptor) vcs.Resolution {
	return f(c)
}
