package events

import (
	"fmt"
	"strings"
	"time"
)

// Event represents a single step of a rollback run
type Event struct {
	// Time is when the event occurred (set by bus on emit)
	Time time.Time `json:"time"`

	// Type identifies what happened
	Type EventType `json:"type"`

	// Run is the rollback run ID this event belongs to
	Run string `json:"run,omitempty"`

	// Strategy is "merge" or "diff"
	Strategy string `json:"strategy,omitempty"`

	// Path is the repository path this event relates to (empty for run events)
	Path string `json:"path,omitempty"`

	// Revision is the revision this event relates to, if any
	Revision string `json:"revision,omitempty"`

	// Payload contains event-specific data (type varies by event)
	Payload any `json:"payload,omitempty"`

	// Error contains error message if this is a failure event
	Error string `json:"error,omitempty"`
}

// EventType is a string constant identifying the event category
type EventType string

// Run lifecycle events
const (
	RollbackStarted   EventType = "rollback.started"
	RollbackNoOp      EventType = "rollback.noop"
	RollbackCompleted EventType = "rollback.completed"
	RollbackFailed    EventType = "rollback.failed"
	DryRunCompleted   EventType = "rollback.dryrun.completed"
)

// Revision events
const (
	// RevisionResolved payload: role ("head" or "target"), ref (string)
	RevisionResolved EventType = "revision.resolved"
)

// Workspace events
const (
	WorkspaceAcquired  EventType = "workspace.acquired"
	WorkspaceReleased  EventType = "workspace.released"
	CheckoutCompleted  EventType = "checkout.completed"
	WorkingCopyUpdated EventType = "workingcopy.updated"
)

// Merge-based strategy events
const (
	// MergeApplied payload: changed (int), conflicts (int)
	MergeApplied EventType = "merge.applied"

	// ConflictResolved payload: resolution (string), reason (string)
	ConflictResolved EventType = "conflict.resolved"
)

// Diff-based strategy events
const (
	// PlanComputed payload: changed (int), removals (int), restores (int)
	PlanComputed EventType = "plan.computed"
	PathRemoved  EventType = "path.removed"
	PathRestored EventType = "path.restored"
)

// Publish events
const (
	// CommitCreated payload: changed (int)
	CommitCreated EventType = "commit.created"
	PushCompleted EventType = "push.completed"
	PushFailed    EventType = "push.failed"
)

// NewEvent creates an event with the given type for a run
func NewEvent(eventType EventType, run string) Event {
	return Event{
		Type: eventType,
		Run:  run,
	}
}

// WithStrategy returns a copy of the event with the strategy set
func (e Event) WithStrategy(strategy string) Event {
	e.Strategy = strategy
	return e
}

// WithPath returns a copy of the event with the path set
func (e Event) WithPath(path string) Event {
	e.Path = path
	return e
}

// WithRevision returns a copy of the event with the revision set
func (e Event) WithRevision(rev string) Event {
	e.Revision = rev
	return e
}

// WithPayload returns a copy of the event with the payload set
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message set
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure returns true if this is a failure event type
func (e Event) IsFailure() bool {
	return strings.HasSuffix(string(e.Type), ".failed")
}

// String returns a human-readable representation of the event
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))

	if e.Run != "" {
		parts = append(parts, e.Run)
	}
	if e.Strategy != "" {
		parts = append(parts, "strategy="+e.Strategy)
	}
	if e.Revision != "" {
		parts = append(parts, "rev="+e.Revision)
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	return strings.Join(parts, " ")
}
