// Package feed exposes live, full-snapshot subscriptions over the
// document store. Every change event triggers a complete re-read of the
// watched slice of state, so consumers replace rather than patch. This
// is the same contract a remote document store's snapshot listener gives.
package feed

import (
	"sync"

	"go.uber.org/zap"

	"chatline/internal/bus"
	"chatline/internal/store"
)

// ThreadSnapshot is the full current state of one thread document.
// Thread is nil while the document does not exist.
type ThreadSnapshot struct {
	Thread *store.Thread
}

// MessageSnapshot is the full message list of one thread, ascending.
type MessageSnapshot struct {
	Messages []store.Message
}

// StatusSnapshot is the full admin status feed, newest-first and
// unfiltered: expiry is the consumer's read-side responsibility.
type StatusSnapshot struct {
	Statuses []store.Status
}

// Feed is the store-adapter interface the synchronization controller is
// built against. Tests drive it with synthetic event orders; production
// uses Live. Each subscription returns its snapshot channel and a cancel
// function that must be called on teardown.
type Feed interface {
	SubscribeThread(phoneKey string) (<-chan ThreadSnapshot, func())
	SubscribeMessages(phoneKey string) (<-chan MessageSnapshot, func())
	SubscribeStatuses() (<-chan StatusSnapshot, func())
}

// Live implements Feed over the sqlite store and the change bus.
type Live struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewLive creates the production feed.
func NewLive(db *store.DB, b *bus.Bus, logger *zap.Logger) *Live {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Live{db: db, bus: b, logger: logger}
}

// SubscribeThread watches one thread document. An initial snapshot is
// delivered immediately, then one per change event. Snapshots coalesce:
// a slow consumer sees the latest state, never a stale backlog.
func (l *Live) SubscribeThread(phoneKey string) (<-chan ThreadSnapshot, func()) {
	out := make(chan ThreadSnapshot, 1)
	events, unsub := l.bus.Subscribe(bus.ThreadTopic(phoneKey), 16)
	stop := make(chan struct{})

	go func() {
		defer close(out)
		l.pushThread(out, phoneKey)
		for {
			select {
			case <-stop:
				return
			case <-events:
				l.pushThread(out, phoneKey)
			}
		}
	}()

	return out, cancelOnce(unsub, stop)
}

// SubscribeMessages watches a thread's message collection.
func (l *Live) SubscribeMessages(phoneKey string) (<-chan MessageSnapshot, func()) {
	out := make(chan MessageSnapshot, 1)
	events, unsub := l.bus.Subscribe(bus.MessagesTopic(phoneKey), 16)
	stop := make(chan struct{})

	go func() {
		defer close(out)
		l.pushMessages(out, phoneKey)
		for {
			select {
			case <-stop:
				return
			case <-events:
				l.pushMessages(out, phoneKey)
			}
		}
	}()

	return out, cancelOnce(unsub, stop)
}

// SubscribeStatuses watches the admin status broadcast feed.
func (l *Live) SubscribeStatuses() (<-chan StatusSnapshot, func()) {
	out := make(chan StatusSnapshot, 1)
	events, unsub := l.bus.Subscribe(bus.StatusesTopic, 16)
	stop := make(chan struct{})

	go func() {
		defer close(out)
		l.pushStatuses(out)
		for {
			select {
			case <-stop:
				return
			case <-events:
				l.pushStatuses(out)
			}
		}
	}()

	return out, cancelOnce(unsub, stop)
}

func (l *Live) pushThread(out chan ThreadSnapshot, phoneKey string) {
	t, err := l.db.GetThread(phoneKey)
	if err != nil {
		l.logger.Error("thread snapshot read failed", zap.Error(err), zap.String("phone_key", phoneKey))
		return
	}
	sendCoalesced(out, ThreadSnapshot{Thread: t})
}

func (l *Live) pushMessages(out chan MessageSnapshot, phoneKey string) {
	msgs, err := l.db.ListMessages(phoneKey)
	if err != nil {
		l.logger.Error("message snapshot read failed", zap.Error(err), zap.String("phone_key", phoneKey))
		return
	}
	sendCoalesced(out, MessageSnapshot{Messages: msgs})
}

func (l *Live) pushStatuses(out chan StatusSnapshot) {
	statuses, err := l.db.ListStatuses()
	if err != nil {
		l.logger.Error("status snapshot read failed", zap.Error(err))
		return
	}
	sendCoalesced(out, StatusSnapshot{Statuses: statuses})
}

// sendCoalesced delivers v, displacing an unconsumed older snapshot
// rather than blocking the change-feed goroutine.
func sendCoalesced[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// cancelOnce builds an idempotent teardown that unsubscribes from the
// bus and stops the snapshot goroutine together.
func cancelOnce(unsub func(), stop chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			close(stop)
		})
	}
}
