package events

import (
	"log/slog"
	"sync"
	"time"
)

// inboxSize is the per-listener buffer. A listener that falls this far
// behind starts losing events rather than stalling emitters.
const inboxSize = 64

// Handler processes one event. Handlers run on the listener's own goroutine,
// never inline with the emitter.
type Handler func(Event)

type listener struct {
	types map[Type]bool // nil means all types
	inbox chan Event
}

// Bus fans out domain events to registered listeners. Subscribe before
// emitting begins; Close drains and stops all listener goroutines.
type Bus struct {
	mu        sync.RWMutex
	listeners []*listener
	wg        sync.WaitGroup
	closed    bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given event types (none means all
// types). The handler runs on a dedicated goroutine with a buffered inbox.
func (b *Bus) Subscribe(handler Handler, types ...Type) {
	l := &listener{inbox: make(chan Event, inboxSize)}
	if len(types) > 0 {
		l.types = make(map[Type]bool, len(types))
		for _, t := range types {
			l.types[t] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.listeners = append(b.listeners, l)
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for ev := range l.inbox {
			handler(ev)
		}
	}()
}

// Emit delivers the event to every interested listener. Never blocks: when a
// listener's inbox is full the event is dropped for that listener and a
// warning is logged.
func (b *Bus) Emit(t Type, payload any) {
	ev := Event{Type: t, Timestamp: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, l := range b.listeners {
		if l.types != nil && !l.types[t] {
			continue
		}
		select {
		case l.inbox <- ev:
		default:
			slog.Warn("Event dropped for slow listener", "event_type", t)
		}
	}
}

// Close stops delivery and waits for listener goroutines to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, l := range b.listeners {
		close(l.inbox)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
