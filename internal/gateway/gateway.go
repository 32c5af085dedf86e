// Package gateway is the single ingress/egress point for chat messages.
// All sends from either side pass through here so the append-then-patch
// sequence and its failure semantics live in exactly one place.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatline/internal/bus"
	"chatline/internal/store"
)

// ErrEmptyMessage is returned when a send reduces to nothing after
// trimming. Nothing is written to the store in that case.
var ErrEmptyMessage = errors.New("message is empty")

// Gateway appends messages and maintains the thread summary fields.
type Gateway struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a gateway.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{db: db, bus: b, logger: logger}
}

// Send appends one message to a thread with a server-assigned timestamp
// and initial status sent, then patches the thread summary. A summary
// patch failure after a successful append is logged and swallowed; the
// message ID is still returned and the append is never retried.
func (g *Gateway) Send(ctx context.Context, phoneKey, content string, outgoing bool, msgType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if msgType == "" {
		msgType = "text"
	}

	now := time.Now().UnixMilli()
	m := &store.Message{
		ID:         uuid.NewString(),
		PhoneKey:   phoneKey,
		Content:    content,
		Type:       msgType,
		IsOutgoing: outgoing,
		Status:     string(storeStatusSent),
		SentAt:     now,
		Timestamp:  now,
	}
	if err := g.db.InsertMessage(m); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	var patchErr error
	if outgoing {
		patchErr = g.db.RecordAdminMessage(phoneKey, preview(m), now)
	} else {
		patchErr = g.db.RecordUserMessage(phoneKey, preview(m))
	}
	if patchErr != nil {
		g.logger.Error("thread summary patch failed after append",
			zap.Error(patchErr), zap.String("phone_key", phoneKey), zap.String("message_id", m.ID))
	}

	g.publish(phoneKey, true)
	return m.ID, nil
}

// SetBlocked toggles the block flag on a thread.
func (g *Gateway) SetBlocked(phoneKey string, blocked bool) error {
	if err := g.db.SetThreadBlocked(phoneKey, blocked); err != nil {
		return fmt.Errorf("set blocked %s: %w", phoneKey, err)
	}
	g.publish(phoneKey, false)
	return nil
}

// ResetUnread zeroes the unread counter and advances the read marker.
// Called only when the admin has the thread open.
func (g *Gateway) ResetUnread(phoneKey string, now time.Time) error {
	if err := g.db.ResetUnread(phoneKey, now.UnixMilli()); err != nil {
		return fmt.Errorf("reset unread %s: %w", phoneKey, err)
	}
	g.publish(phoneKey, false)
	return nil
}

const storeStatusSent = "sent"

// preview renders the thread list line for a message. Media messages
// show a marker instead of their payload reference.
func preview(m *store.Message) string {
	switch m.Type {
	case "image":
		return "📷 Foto"
	case "sticker":
		return "Sticker"
	case "document":
		return "📄 " + m.Filename
	default:
		return m.Content
	}
}

func (g *Gateway) publish(phoneKey string, messagesChanged bool) {
	if g.bus == nil {
		return
	}
	now := time.Now()
	g.bus.Publish(bus.Event{Kind: bus.ThreadTopic(phoneKey), Timestamp: now})
	if messagesChanged {
		g.bus.Publish(bus.Event{Kind: bus.MessagesTopic(phoneKey), Timestamp: now})
	}
}
