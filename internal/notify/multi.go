package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Multi fans a notice out to several notifiers
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a Multi notifier
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify delivers to every notifier concurrently and joins their errors.
func (m *Multi) Notify(ctx context.Context, n Notice) error {
	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, nt := range m.notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := nt.Notify(ctx, n); err != nil {
				errs[i] = fmt.Errorf("%s: %w", nt.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Name returns "multi"
func (m *Multi) Name() string {
	return "multi"
}
