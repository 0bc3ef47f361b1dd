package events

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// LogConfig configures the text logging handler
type LogConfig struct {
	// Writer is where logs are written (default: os.Stderr)
	Writer io.Writer

	// IncludePayload includes event payload in log output
	IncludePayload bool

	// TimeFormat is the timestamp format; empty omits the timestamp
	TimeFormat string
}

// LogHandler returns a handler that writes one line per event
// Format: [event.type] run strategy=... rev=... path=...
func LogHandler(cfg LogConfig) Handler {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	return func(e Event) {
		var buf strings.Builder
		if cfg.TimeFormat != "" && !e.Time.IsZero() {
			buf.WriteString(e.Time.Format(cfg.TimeFormat))
			buf.WriteString(" ")
		}
		buf.WriteString(e.String())
		if cfg.IncludePayload && e.Payload != nil {
			fmt.Fprintf(&buf, " payload=%v", e.Payload)
		}
		if e.Error != "" {
			fmt.Fprintf(&buf, " error=%q", e.Error)
		}
		buf.WriteString("\n")

		fmt.Fprint(cfg.Writer, buf.String())
	}
}

// ZapHandler returns a handler that logs events as structured zap entries.
// Failure events log at warn, everything else at debug except run
// completion, which logs at info.
func ZapHandler(logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(e Event) {
		fields := []zap.Field{
			zap.String("event", string(e.Type)),
			zap.Time("at", e.Time),
		}
		if e.Run != "" {
			fields = append(fields, zap.String("run", e.Run))
		}
		if e.Strategy != "" {
			fields = append(fields, zap.String("strategy", e.Strategy))
		}
		if e.Revision != "" {
			fields = append(fields, zap.String("revision", e.Revision))
		}
		if e.Path != "" {
			fields = append(fields, zap.String("path", e.Path))
		}
		if e.Payload != nil {
			fields = append(fields, zap.Any("payload", e.Payload))
		}

		switch {
		case e.IsFailure():
			logger.Warn("rollback event", append(fields, zap.String("error", e.Error))...)
		case e.Type == RollbackCompleted || e.Type == RollbackNoOp:
			logger.Info("rollback event", fields...)
		default:
			logger.Debug("rollback event", fields...)
		}
	}
}

// Collector records every event it sees. Used by tests and the dry-run
// report.
type Collector struct {
	Events []Event
}

// Handler returns the collecting handler
func (c *Collector) Handler() Handler {
	return func(e Event) {
		c.Events = append(c.Events, e)
	}
}

// Types returns the recorded event types in order
func (c *Collector) Types() []EventType {
	types := make([]EventType, len(c.Events))
	for i, e := range c.Events {
		types[i] = e.Type
	}
	return types
}

// Count returns how many recorded events have the given type
func (c *Collector) Count(t EventType) int {
	n := 0
	for _, e := range c.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}
