package bus

import (
	"strings"
	"sync"
)

// Bus is the in-process change feed: publish/subscribe with topic-prefix
// filtering. It is the only fan-out path between store writers and live
// subscriptions, so delivery within one topic follows publish order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers an event to every subscriber whose prefix matches
// event.Kind. A subscriber with a full buffer misses the event; consumers
// re-read full snapshots on each event, so a drop only delays convergence
// until the next write.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Slow subscriber: skip rather than block the writer.
		}
	}
}

// Subscribe registers interest in all events whose Kind starts with prefix.
// Returns the receive channel and an unsubscribe function. Unsubscribe is
// idempotent and must be called on teardown; a leaked subscription keeps
// receiving events for a dismounted view.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
