package vcs

import "fmt"

// RevisionID identifies an immutable point in a repository's history.
// Backends return canonical IDs (full commit hash, decimal revision number),
// so two IDs produced by the same backend may be compared with ==.
type RevisionID string

// String returns the revision as a plain string.
func (r RevisionID) String() string {
	return string(r)
}

// Short returns an abbreviated form suitable for messages and logs.
func (r RevisionID) Short() string {
	if len(r) > 12 {
		return string(r[:12])
	}
	return string(r)
}

// ChangeType is the kind of path-level change reported by a diff.
type ChangeType int

const (
	ChangeUnknown ChangeType = iota
	ChangeAdd
	ChangeModify
	ChangeDelete
	ChangeCopy
	ChangeRename
)

var changeTypeNames = map[ChangeType]string{
	ChangeAdd:    "add",
	ChangeModify: "modify",
	ChangeDelete: "delete",
	ChangeCopy:   "copy",
	ChangeRename: "rename",
}

func (t ChangeType) String() string {
	if name, ok := changeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// DiffEntry is a single changed path between two revisions.
// OldPath is empty for adds, NewPath is empty for deletes.
type DiffEntry struct {
	OldPath      string
	NewPath      string
	Type         ChangeType
	OldContentID string
	NewContentID string
}

// Path returns the path the entry is best known by: the new path when present,
// otherwise the old one.
func (e DiffEntry) Path() string {
	if e.NewPath != "" {
		return e.NewPath
	}
	return e.OldPath
}

// ConflictDescriptor describes a conflict surfaced by a backend in the middle
// of a merge. Mine is the working copy (current head) side, Theirs is the side
// being merged in.
type ConflictDescriptor struct {
	Path   string
	Reason string
	Mine   string
	Theirs string
}

// Resolution is the choice a conflict policy makes for one conflict.
type Resolution int

const (
	// ResolutionNone is the zero value and means the policy gave no answer.
	ResolutionNone Resolution = iota
	KeepMine
	KeepTheirs
	Postpone
)

var resolutionNames = map[Resolution]string{
	ResolutionNone: "none",
	KeepMine:       "keep-mine",
	KeepTheirs:     "keep-theirs",
	Postpone:       "postpone",
}

func (r Resolution) String() string {
	if name, ok := resolutionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// ConflictPolicy decides how a merge conflict is resolved.
// Implementations must not block on user input.
type ConflictPolicy interface {
	Resolve(c ConflictDescriptor) Resolution
}

// WorkingCopy is a filesystem checkout bound to one repository and one
// workspace directory. It is owned by the rollback call that created it.
type WorkingCopy struct {
	// Path is the absolute workspace directory
	Path string

	// Repo identifies the repository the checkout came from
	Repo string

	// Revision is the revision the working copy was checked out at
	// (or last updated to)
	Revision RevisionID
}

// MergeResult reports the outcome of a merge range application.
type MergeResult struct {
	ChangedPathCount  int
	ConflictsResolved int
}

// CommitResult is the outcome of a commit. A result with NoOp set means no
// commit was created because nothing was staged.
type CommitResult struct {
	Revision         RevisionID
	ChangedPathCount int
	NoOp             bool
}

// NoOpResult is the distinguished result for "nothing to commit".
var NoOpResult = CommitResult{NoOp: true}

// IsNoOp reports whether the result carries no commit.
func (r CommitResult) IsNoOp() bool {
	return r.NoOp
}

// PushOptions configures publishing a commit to the remote.
type PushOptions struct {
	// Force overwrites the remote branch as long as it still points at the
	// revision the working copy was checked out from.
	Force bool
}
