// Package notify fans store mutation events out to subscribers. Delivery
// is synchronous and in order relative to the triggering mutation; a
// failing listener is isolated so it cannot break the others or abort the
// mutation.
package notify

import (
	"log/slog"
	"sync"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

// Listener receives update events. Listeners must not block; streaming
// transports buffer internally and drop on overflow.
type Listener func(domain.StateInfo)

// Broker maintains the subscriber set.
type Broker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	logger    *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (b *Broker) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Publish delivers the event to every listener, recovering per listener.
func (b *Broker) Publish(event domain.StateInfo) {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.deliver(fn, event)
	}
}

func (b *Broker) deliver(fn Listener, event domain.StateInfo) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notify listener panicked", "panic", r)
		}
	}()
	fn(event)
}

// SubscriberCount returns the number of registered listeners.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
