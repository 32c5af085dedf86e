package delivery

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatline/internal/bus"
	"chatline/internal/store"
)

// Callback is a provider delivery-status report, as received on the
// webhook. ReceivedAt is the local processing time; the thread timestamp
// recorded is always local observation time, not the provider's own
// event time.
type Callback struct {
	SID          string
	PhoneKey     string
	RawStatus    string
	ErrorMessage string
	ReceivedAt   time.Time
}

// Applied echoes the fields a callback actually changed, for the webhook
// response. A zero Applied means the callback was a no-op.
type Applied struct {
	Status          string `json:"lastMessageStatus,omitempty"`
	StatusTimestamp int64  `json:"lastMessageStatusTimestamp,omitempty"`
	LastReadAt      int64  `json:"lastReadAt,omitempty"`
	LastError       string `json:"lastError,omitempty"`
	MessageID       string `json:"messageId,omitempty"`
}

// Machine applies delivery callbacks to messages and threads, enforcing
// the forward-only lattice.
type Machine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewMachine creates a delivery-state machine.
func NewMachine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{db: db, bus: b, logger: logger}
}

// Apply processes one provider callback. Unknown status codes are logged
// and ignored; out-of-order callbacks against a known message are
// no-ops. The thread's last-status fields are patched alongside the
// message so list views can render without opening the thread.
func (m *Machine) Apply(cb Callback) (*Applied, error) {
	st, ok := Normalize(cb.RawStatus)
	if !ok {
		m.logger.Info("ignoring unknown delivery status",
			zap.String("status", cb.RawStatus), zap.String("sid", cb.SID))
		return &Applied{}, nil
	}

	ts := cb.ReceivedAt.UnixMilli()
	applied := &Applied{}

	msg, err := m.db.GetMessageBySID(cb.SID)
	if err != nil {
		return nil, fmt.Errorf("lookup message %s: %w", cb.SID, err)
	}
	if msg != nil {
		if !CanAdvance(Status(msg.Status), st) {
			m.logger.Debug("stale delivery callback",
				zap.String("sid", cb.SID),
				zap.String("have", msg.Status), zap.String("got", string(st)))
			return &Applied{}, nil
		}
		switch st {
		case StatusDelivered:
			err = m.db.MarkMessageDelivered(msg.ID, ts)
		case StatusRead:
			err = m.db.MarkMessageRead(msg.ID, ts)
		case StatusFailed:
			err = m.db.MarkMessageFailed(msg.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("update message %s: %w", msg.ID, err)
		}
		applied.MessageID = msg.ID
	}

	if err := m.db.SetThreadDeliveryStatus(cb.PhoneKey, string(st), ts); err != nil {
		return nil, fmt.Errorf("patch thread %s: %w", cb.PhoneKey, err)
	}
	applied.Status = string(st)
	applied.StatusTimestamp = ts

	switch st {
	case StatusRead:
		if err := m.db.SetThreadUserRead(cb.PhoneKey, ts); err != nil {
			return nil, fmt.Errorf("patch read marker %s: %w", cb.PhoneKey, err)
		}
		applied.LastReadAt = ts
	case StatusFailed:
		errMsg := cb.ErrorMessage
		if errMsg == "" {
			errMsg = DefaultErrorMessage
		}
		if err := m.db.SetThreadLastError(cb.PhoneKey, errMsg); err != nil {
			return nil, fmt.Errorf("patch last error %s: %w", cb.PhoneKey, err)
		}
		applied.LastError = errMsg
	}

	m.publish(cb.PhoneKey, applied.MessageID != "")
	return applied, nil
}

// FailSend records a local dispatch failure for a known message, before
// any provider SID exists. The message goes terminal and the thread
// carries the error the same way a failed callback would leave it.
func (m *Machine) FailSend(messageID, phoneKey, errMsg string, now time.Time) error {
	if errMsg == "" {
		errMsg = DefaultErrorMessage
	}
	if err := m.db.MarkMessageFailed(messageID); err != nil {
		return fmt.Errorf("fail message %s: %w", messageID, err)
	}
	if err := m.db.SetThreadDeliveryStatus(phoneKey, string(StatusFailed), now.UnixMilli()); err != nil {
		return fmt.Errorf("patch thread %s: %w", phoneKey, err)
	}
	if err := m.db.SetThreadLastError(phoneKey, errMsg); err != nil {
		return fmt.Errorf("patch last error %s: %w", phoneKey, err)
	}
	m.publish(phoneKey, true)
	return nil
}

// AckThreadRead is the local opened-chat acknowledgement on the user's
// side: every pending outgoing message becomes read, whichever of this
// or the provider read callback arrives first.
func (m *Machine) AckThreadRead(phoneKey string, now time.Time) error {
	ts := now.UnixMilli()
	if err := m.db.MarkOutgoingMessagesRead(phoneKey, ts); err != nil {
		return fmt.Errorf("ack read %s: %w", phoneKey, err)
	}
	if err := m.db.SetThreadUserRead(phoneKey, ts); err != nil {
		return fmt.Errorf("ack read marker %s: %w", phoneKey, err)
	}
	m.publish(phoneKey, true)
	return nil
}

func (m *Machine) publish(phoneKey string, messagesChanged bool) {
	if m.bus == nil {
		return
	}
	now := time.Now()
	m.bus.Publish(bus.Event{Kind: bus.ThreadTopic(phoneKey), Timestamp: now})
	if messagesChanged {
		m.bus.Publish(bus.Event{Kind: bus.MessagesTopic(phoneKey), Timestamp: now})
	}
}
