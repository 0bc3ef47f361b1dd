// Package vcs defines the capabilities a version-control backend must provide
// for rollback, along with the data exchanged with it.
package vcs

import (
	"context"
	"iter"
)

// Backend is the set of operations shared by every backend. A Backend is bound
// to a single repository and trunk when constructed.
type Backend interface {
	// Name identifies the backend and repository in logs and history
	Name() string

	// Head resolves the current head of the trunk.
	Head(ctx context.Context) (RevisionID, error)

	// Resolve turns a user-supplied ref into a canonical revision.
	// Fails with ErrRevisionNotFound.
	Resolve(ctx context.Context, ref string) (RevisionID, error)

	// Checkout materializes rev into dest, which must not exist yet.
	// Fails with ErrCheckoutFailed.
	Checkout(ctx context.Context, rev RevisionID, dest string) (*WorkingCopy, error)

	// Commit records the staged changes of wc. Returns NoOpResult when
	// nothing is staged instead of creating an empty commit.
	Commit(ctx context.Context, wc *WorkingCopy, message string) (CommitResult, error)
}

// CentralizedBackend is a backend whose server applies merges to a working
// copy (server-side merge model).
type CentralizedBackend interface {
	Backend

	// Update brings wc to the latest trunk revision and returns it.
	Update(ctx context.Context, wc *WorkingCopy) (RevisionID, error)

	// MergeRange applies every change between from and to onto wc. Each
	// conflict is routed through policy before the merge completes.
	// Fails with ErrMergeFailed.
	MergeRange(ctx context.Context, from, to RevisionID, wc *WorkingCopy, policy ConflictPolicy) (MergeResult, error)
}

// DistributedBackend is a backend that exposes snapshot diffs and commits
// locally before publishing (snapshot-diff model).
type DistributedBackend interface {
	Backend

	// Diff yields the changes between from (old side) and to (new side).
	// The sequence is lazy, finite and meant to be consumed once. A failure
	// is yielded as a zero entry with a non-nil error, after which the
	// sequence stops.
	Diff(ctx context.Context, from, to RevisionID) iter.Seq2[DiffEntry, error]

	// ApplyPathContent overwrites path in wc with its content at rev.
	// Fails with ErrPathNotFoundAtRevision.
	ApplyPathContent(ctx context.Context, wc *WorkingCopy, path string, rev RevisionID) error

	// StageRemoval marks path for removal in the next commit.
	StageRemoval(ctx context.Context, wc *WorkingCopy, path string) error

	// Push publishes local commits. Fails with ErrPushRejected when the
	// remote moved since checkout; never retries.
	Push(ctx context.Context, wc *WorkingCopy, opts PushOptions) error
}
