package events

import (
	"sync"
	"time"
)

// Handler receives events from the bus
type Handler func(Event)

// Bus fans events out to subscribed handlers. Dispatch is synchronous on the
// emitting goroutine, so handlers see events in emit order and a rollback
// never leaves background work behind. A nil *Bus drops every event.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	now      func() time.Time
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers a handler for all subsequent events
func (b *Bus) Subscribe(h Handler) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit stamps the event time and delivers it to every handler
func (b *Bus) Emit(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		now := b.now
		if now == nil {
			now = time.Now
		}
		e.Time = now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
