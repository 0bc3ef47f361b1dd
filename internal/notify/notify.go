package notify

import "context"

// Severity indicates how urgent a notice is
type Severity string

const (
	SeverityInfo     Severity = "info"     // rollback landed
	SeverityWarning  Severity = "warning"  // nothing changed, operator input was wrong
	SeverityCritical Severity = "critical" // trunk is in the state the rollback was meant to fix
)

// Notice reports the outcome of one rollback run
type Notice struct {
	Severity Severity
	Run      string
	Repo     string
	Title    string            // one line
	Message  string            // detail, usually the error
	Fields   map[string]string // strategy, target, commit, ...
}

// Notifier delivers notices to an operator
type Notifier interface {
	// Notify delivers n. Implementations respect ctx cancellation.
	Notify(ctx context.Context, n Notice) error

	// Name returns the notifier type for logging
	Name() string
}
