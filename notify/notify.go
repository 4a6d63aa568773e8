package notify

import (
	"sync"
	"time"
)

// Event is a single notification delivered to subscribers.
// Events are immutable once emitted; handlers must not modify the payload.
type Event struct {
	// Kind identifies the notification type (e.g., "hit", "ruleExecuted").
	Kind string

	// Source names the component that emitted the event (e.g., "cache", "rules").
	Source string

	// Payload carries event-specific data.
	Payload map[string]any

	// Time is when the event was emitted.
	Time time.Time
}

// Handler processes a single notification event.
// Handlers are invoked synchronously on the emitting goroutine, so they
// must return quickly and must not call back into the emitting component.
type Handler func(Event)

// Bus is a synchronous in-process notification dispatcher.
//
// Subscribers register per kind (or for all kinds) and are invoked in
// subscription order. Because dispatch is synchronous, all events of one
// kind from one emitting component are observed in FIFO order.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
	all  []Handler
}

// NewBus creates an empty notification bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for events of the given kind.
func (b *Bus) Subscribe(kind string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], h)
}

// SubscribeAll registers a handler for every event kind.
// All-kind handlers run after kind-specific handlers.
func (b *Bus) SubscribeAll(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Emit dispatches an event synchronously to all matching handlers.
// It is safe to call with a nil *Bus, which makes the bus an optional
// collaborator for components that emit notifications.
func (b *Bus) Emit(kind, source string, payload map[string]any) {
	if b == nil {
		return
	}

	ev := Event{
		Kind:    kind,
		Source:  source,
		Payload: payload,
		Time:    time.Now(),
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[kind])+len(b.all))
	handlers = append(handlers, b.subs[kind]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
