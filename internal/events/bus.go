package events

import (
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber channel depth. A slow subscriber
// drops events past this depth rather than blocking Emit.
const subscriberBuffer = 100

// Handler is called synchronously on Emit for each registered function
// subscriber. Handlers must not block.
type Handler func(Event)

// Bus distributes Event values to subscribers, either as function callbacks
// (On, invoked synchronously) or as channels (Subscribe, delivered
// asynchronously and non-blocking on a full buffer).
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	channels map[int]chan Event
	nextID   int
	closed   bool
}

// NewBus creates a new, ready-to-use event bus. The capacity parameter is
// accepted for compatibility with callers that size the bus up front; each
// channel subscriber gets its own fixed-size buffer regardless.
func NewBus(capacity int) *Bus {
	return &Bus{channels: make(map[int]chan Event)}
}

// On registers a synchronous handler. Handlers run in the goroutine that
// calls Emit, in registration order.
func (b *Bus) On(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Subscribe registers a buffered channel subscriber and returns it along
// with a cancel function that unregisters and closes it. If the channel
// fills up, subsequent events are dropped for that subscriber rather than
// blocking the emitter.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	id := b.nextID
	b.nextID++
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.channels[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.channels[id]; ok {
				delete(b.channels, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Emit broadcasts an event to every handler and channel subscriber. It sets
// Time if the caller left it zero. Emit is a no-op after Close.
func (b *Bus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	channels := make([]chan Event, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
	for _, ch := range channels {
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop rather than block the emitter.
		}
	}
}

// Publish is an alias for Emit, named to match the control-plane-facing
// EventBus shape callers outside this package depend on.
func (b *Bus) Publish(e Event) {
	b.Emit(e)
}

// Close shuts down the event bus, closing every registered channel
// subscriber. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.channels {
		delete(b.channels, id)
		close(ch)
	}
	return nil
}
