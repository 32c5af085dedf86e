// Package outbox drains queued provider dispatches. Every entry gets
// exactly one attempt; failures are terminal and surface on the thread
// through the delivery machine.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chatline/internal/bus"
	"chatline/internal/delivery"
	"chatline/internal/provider"
	"chatline/internal/store"
)

// Sender polls the outbox and dispatches pending entries.
type Sender struct {
	db       *store.DB
	dispatch provider.Dispatcher
	machine  *delivery.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, d provider.Dispatcher, m *delivery.Machine, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:       db,
		dispatch: d,
		machine:  m,
		bus:      b,
		logger:   logger,
		interval: 500 * time.Millisecond,
	}
}

// Start begins polling for queued entries.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop halts the polling loop and waits for the in-flight pass.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processPending runs one drain pass. Entries are claimed by flipping
// to sending before the dispatch so a crashed pass never double-sends.
func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.MessageID); err != nil {
			s.logger.Error("failed to claim outbox entry",
				zap.Error(err), zap.String("message_id", entry.MessageID))
			continue
		}

		sid, err := s.dispatch.SendText(ctx, entry.PhoneKey, entry.Body)
		if err != nil {
			s.logger.Error("dispatch failed",
				zap.Error(err), zap.String("message_id", entry.MessageID),
				zap.String("phone_key", entry.PhoneKey))
			_ = s.db.MarkOutboxFailed(entry.MessageID, err.Error())
			if ferr := s.machine.FailSend(entry.MessageID, entry.PhoneKey, err.Error(), time.Now()); ferr != nil {
				s.logger.Error("failed to record dispatch failure", zap.Error(ferr))
			}
			s.publish(bus.ProviderSendFailed, entry.MessageID, err.Error())
			continue
		}

		if err := s.db.MarkOutboxSent(entry.MessageID, sid); err != nil {
			s.logger.Error("failed to mark outbox sent",
				zap.Error(err), zap.String("message_id", entry.MessageID))
		}
		// Correlate for later webhook lookups by provider SID.
		if err := s.db.SetMessageProviderSID(entry.MessageID, sid); err != nil {
			s.logger.Error("failed to correlate provider sid",
				zap.Error(err), zap.String("message_id", entry.MessageID), zap.String("sid", sid))
		}

		s.logger.Info("message dispatched",
			zap.String("message_id", entry.MessageID), zap.String("sid", sid))
		s.publish(bus.ProviderSendAck, entry.MessageID, sid)
		if s.bus != nil {
			s.bus.Publish(bus.Event{Kind: bus.MessagesTopic(entry.PhoneKey), Timestamp: time.Now()})
		}
	}
}

func (s *Sender) publish(kind, messageID, detail string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   map[string]string{"message_id": messageID, "detail": detail},
	})
}
