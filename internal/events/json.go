package events

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// JSONEvent is the wire format for events written as JSON lines.
type JSONEvent struct {
	// Type identifies the event (e.g., "rollback.started", "path.removed")
	Type string `json:"type"`

	// Timestamp is when the event occurred (RFC3339 format)
	Timestamp time.Time `json:"timestamp"`

	Run      string `json:"run,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Path     string `json:"path,omitempty"`
	Revision string `json:"revision,omitempty"`

	// Payload contains event-specific data (type varies by event)
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Error contains error message if this is a failure event
	Error string `json:"error,omitempty"`
}

// IsJSONMode returns true if events written to out should be JSON lines.
// Checks: (1) explicit forceJSON flag, (2) out is not a terminal.
func IsJSONMode(forceJSON bool, out io.Writer) bool {
	if forceJSON {
		return true
	}

	if f, ok := out.(*os.File); ok && f != nil {
		return !term.IsTerminal(int(f.Fd()))
	}

	return true
}

// JSONEmitter writes events as JSON lines to a writer.
// Thread-safe for concurrent Emit calls.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONEmitter creates a new JSON emitter that writes to w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{enc: json.NewEncoder(w)}
}

// Emit converts the Event to JSONEvent wire format and writes it.
func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.enc.Encode(ToJSONEvent(event))
}

// JSONEmitterHandler returns a Handler that emits events as JSON lines.
// Write errors are logged, not propagated.
func JSONEmitterHandler(emitter *JSONEmitter, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(e Event) {
		if err := emitter.Emit(e); err != nil {
			logger.Warn("failed to emit JSON event", zap.String("event", string(e.Type)), zap.Error(err))
		}
	}
}

// ToJSONEvent converts an Event to the wire format.
func ToJSONEvent(e Event) JSONEvent {
	je := JSONEvent{
		Type:      string(e.Type),
		Timestamp: e.Time,
		Run:       e.Run,
		Strategy:  e.Strategy,
		Path:      e.Path,
		Revision:  e.Revision,
		Error:     e.Error,
	}

	if e.Payload != nil {
		switch p := e.Payload.(type) {
		case map[string]interface{}:
			je.Payload = p
		default:
			je.Payload = map[string]interface{}{"value": e.Payload}
		}
	}

	return je
}
