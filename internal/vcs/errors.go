package vcs

import "errors"

// Backend errors. Backends wrap these with detail using %w.
var (
	ErrRevisionNotFound       = errors.New("vcs: revision not found")
	ErrCheckoutFailed         = errors.New("vcs: checkout failed")
	ErrWorkspaceConflict      = errors.New("vcs: workspace path already exists")
	ErrMergeFailed            = errors.New("vcs: merge failed")
	ErrPathNotFoundAtRevision = errors.New("vcs: path not found at revision")
	ErrCommitFailed           = errors.New("vcs: commit failed")
	ErrPushRejected           = errors.New("vcs: push rejected")
)
