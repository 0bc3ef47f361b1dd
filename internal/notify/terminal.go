package notify

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
)

// Terminal writes notices to a stream, stderr by default
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a terminal notifier writing to w (nil means stderr)
func NewTerminal(w io.Writer) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	return &Terminal{w: w}
}

// Notify writes the notice
func (t *Terminal) Notify(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := "ℹ️  "
	switch n.Severity {
	case SeverityCritical:
		prefix = "🚨 "
	case SeverityWarning:
		prefix = "⚠️  "
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.w, "\n%s[%s] %s\n", prefix, n.Severity, n.Title)
	if n.Repo != "" {
		fmt.Fprintf(t.w, "   repo: %s\n", n.Repo)
	}
	fmt.Fprintf(t.w, "   run: %s\n", n.Run)
	if n.Message != "" {
		fmt.Fprintf(t.w, "   %s\n", n.Message)
	}
	for _, k := range slices.Sorted(maps.Keys(n.Fields)) {
		if v := n.Fields[k]; v != "" {
			fmt.Fprintf(t.w, "   %s: %s\n", k, v)
		}
	}
	return nil
}

// Name returns "terminal"
func (t *Terminal) Name() string {
	return "terminal"
}
