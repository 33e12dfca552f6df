package events

import (
	"sync"
	"time"
)

// Bus is a fan-out subscription registry. Each emitter (queue engine,
// supervisor) owns one Bus; there are no process-wide instances. Delivery is
// per-emitter FIFO. A subscriber that falls behind its buffer has events
// dropped rather than blocking the emitter.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// DefaultBuffer is the per-subscriber channel depth used by Subscribe.
const DefaultBuffer = 256

// NewBus creates an empty fan-out bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// function. Cancelling drops the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, DefaultBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. The timestamp is stamped
// here if the caller left it zero.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop rather than stall the emitter
		}
	}
}

// Emit is shorthand for publishing a typed event with optional data
func (b *Bus) Emit(t Type, taskID string, data map[string]interface{}) {
	b.Publish(Event{Type: t, TaskID: taskID, Data: data})
}

// Close tears down all subscriptions. Further publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
