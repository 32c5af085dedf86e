// Package controller runs one chat synchronization actor per opened
// thread and role. The actor merges the thread document, the message
// list, and the status feed into a single render state stream.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/gateway"
	"chatline/internal/identity"
	"chatline/internal/store"
)

// ErrBlocked is returned when a blocked end user attempts to send.
var ErrBlocked = errors.New("thread is blocked")

// ErrClosed is returned for operations on a closed controller.
var ErrClosed = errors.New("controller is closed")

// Config wires one controller. Identity is passed explicitly; there is
// no ambient session state anywhere below this point.
type Config struct {
	Identity identity.Identity
	DB       *store.DB
	Feed     feed.Feed
	Gateway  *gateway.Gateway
	Machine  *delivery.Machine

	// WelcomeMessage is sent as an admin-authored message exactly once,
	// by whichever opener creates the thread. Empty disables it.
	WelcomeMessage string

	Logger *zap.Logger
}

// Controller is the per-thread synchronization actor.
type Controller struct {
	cfg    Config
	logger *zap.Logger

	updates chan RenderState
	loads   chan string
	stop    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	current RenderState
	closed  bool
	opened  bool
}

// New creates an unopened controller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		logger:  logger.With(zap.String("phone_key", cfg.Identity.PhoneKey), zap.String("role", string(cfg.Identity.Role))),
		updates: make(chan RenderState, 1),
		loads:   make(chan string, 32),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Open ensures the thread exists, performs the role's read
// acknowledgement, and starts the three subscriptions. Creating the
// thread also enqueues the one-time welcome message.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return fmt.Errorf("controller already open")
	}
	c.opened = true
	c.mu.Unlock()

	pk := c.cfg.Identity.PhoneKey
	created, err := c.cfg.DB.CreateThreadIfAbsent(&store.Thread{PhoneKey: pk, Name: pk})
	if err != nil {
		c.mu.Lock()
		c.opened = false
		c.mu.Unlock()
		return fmt.Errorf("open thread %s: %w", pk, err)
	}
	if created {
		c.logger.Info("thread created")
		if c.cfg.WelcomeMessage != "" {
			if _, err := c.cfg.Gateway.Send(ctx, pk, c.cfg.WelcomeMessage, true, "text"); err != nil {
				c.logger.Error("welcome message failed", zap.Error(err))
			}
		}
	}
	if err := c.ackRead(); err != nil {
		c.logger.Error("open read ack failed", zap.Error(err))
	}

	threadCh, cancelThread := c.cfg.Feed.SubscribeThread(pk)
	msgCh, cancelMsgs := c.cfg.Feed.SubscribeMessages(pk)
	statusCh, cancelStatuses := c.cfg.Feed.SubscribeStatuses()

	go c.loop(threadCh, msgCh, statusCh, func() {
		// Teardown cancels all three together; a half-subscribed
		// controller never survives a close.
		cancelThread()
		cancelMsgs()
		cancelStatuses()
	})
	return nil
}

// Updates streams render states. Slow consumers observe the latest
// state; intermediate frames may be skipped.
func (c *Controller) Updates() <-chan RenderState {
	return c.updates
}

// Current returns the most recent render state.
func (c *Controller) Current() RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Send routes a message from this controller's side. Admin sends are
// outgoing and get queued for provider dispatch; a blocked end user
// cannot send at all.
func (c *Controller) Send(ctx context.Context, content, msgType string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.mu.Unlock()

	role := c.cfg.Identity.Role
	if role == identity.RoleUser {
		// The gate reads the stored flag, not the last render state:
		// the render state lags until the first snapshot is reduced.
		th, err := c.cfg.DB.GetThread(c.cfg.Identity.PhoneKey)
		if err != nil {
			return "", fmt.Errorf("check block %s: %w", c.cfg.Identity.PhoneKey, err)
		}
		if th != nil && th.IsBlocked {
			return "", ErrBlocked
		}
	}
	outgoing := role == identity.RoleAdmin
	id, err := c.cfg.Gateway.Send(ctx, c.cfg.Identity.PhoneKey, content, outgoing, msgType)
	if err != nil {
		return "", err
	}
	if outgoing && (msgType == "" || msgType == "text") {
		if err := c.cfg.DB.QueueOutbox(id, c.cfg.Identity.PhoneKey, content); err != nil {
			c.logger.Error("outbox enqueue failed", zap.Error(err), zap.String("message_id", id))
		}
	}
	return id, nil
}

// ImageLoaded reports that the client finished rendering a visual
// message. Scroll-to-bottom stays gated until every visual message in
// the current batch has been reported.
func (c *Controller) ImageLoaded(id string) {
	select {
	case c.loads <- id:
	case <-c.stop:
	}
}

// AckOpen re-runs the role's read acknowledgement, for clients that
// re-focus an already open thread.
func (c *Controller) AckOpen() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()
	return c.ackRead()
}

// SetBlocked toggles the block flag. Admin side only.
func (c *Controller) SetBlocked(blocked bool) error {
	if c.cfg.Identity.Role != identity.RoleAdmin {
		return fmt.Errorf("only the admin side can block")
	}
	return c.cfg.Gateway.SetBlocked(c.cfg.Identity.PhoneKey, blocked)
}

// Close tears the controller down. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	opened := c.opened
	c.mu.Unlock()

	close(c.stop)
	if opened {
		<-c.done
	} else {
		close(c.updates)
	}
}

// ackRead is the side-specific read acknowledgement: the admin resets
// the unread counter through the read marker; the user marks pending
// outgoing messages read.
func (c *Controller) ackRead() error {
	now := time.Now()
	if c.cfg.Identity.Role == identity.RoleAdmin {
		return c.cfg.Gateway.ResetUnread(c.cfg.Identity.PhoneKey, now)
	}
	return c.cfg.Machine.AckThreadRead(c.cfg.Identity.PhoneKey, now)
}

func (c *Controller) loop(
	threadCh <-chan feed.ThreadSnapshot,
	msgCh <-chan feed.MessageSnapshot,
	statusCh <-chan feed.StatusSnapshot,
	cancelAll func(),
) {
	defer close(c.done)
	defer close(c.updates)
	defer cancelAll()

	state := newState()
	for {
		select {
		case <-c.stop:
			return
		case snap, ok := <-threadCh:
			if !ok {
				return
			}
			state = state.applyThread(snap)
		case snap, ok := <-msgCh:
			if !ok {
				return
			}
			state = state.applyMessages(snap)
		case snap, ok := <-statusCh:
			if !ok {
				return
			}
			state = state.applyStatuses(snap, time.Now())
		case id := <-c.loads:
			state = state.applyImageLoaded(id)
		}
		c.emit(render(state, c.cfg.Identity.Role))
	}
}

// emit publishes a render state, displacing an unconsumed older one.
func (c *Controller) emit(r RenderState) {
	c.mu.Lock()
	c.current = r
	c.mu.Unlock()
	for {
		select {
		case c.updates <- r:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}
