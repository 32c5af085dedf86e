package controller

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatline/internal/bus"
	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/gateway"
	"chatline/internal/identity"
	"chatline/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type env struct {
	db      *store.DB
	bus     *bus.Bus
	feed    *feed.Live
	gateway *gateway.Gateway
	machine *delivery.Machine
}

func testEnv(t *testing.T) *env {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	return &env{
		db:      db,
		bus:     b,
		feed:    feed.NewLive(db, b, nil),
		gateway: gateway.New(db, b, nil),
		machine: delivery.NewMachine(db, b, nil),
	}
}

func (e *env) controller(role identity.Role, welcome string) *Controller {
	return New(Config{
		Identity:       identity.Identity{PhoneKey: "+5491122334455", Role: role},
		DB:             e.db,
		Feed:           e.feed,
		Gateway:        e.gateway,
		Machine:        e.machine,
		WelcomeMessage: welcome,
	})
}

func waitFor(t *testing.T, c *Controller, cond func(RenderState) bool) RenderState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-c.Updates():
			if !ok {
				t.Fatal("updates closed while waiting")
			}
			if cond(r) {
				return r
			}
		case <-deadline:
			t.Fatalf("condition never met, last state %+v", c.Current())
		}
	}
}

func TestOpenCreatesThreadWithSingleWelcome(t *testing.T) {
	e := testEnv(t)

	var wg sync.WaitGroup
	controllers := make([]*Controller, 4)
	for i := range controllers {
		controllers[i] = e.controller(identity.RoleUser, "¡Bienvenido!")
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			if err := c.Open(context.Background()); err != nil {
				t.Error(err)
			}
		}(controllers[i])
	}
	wg.Wait()
	for _, c := range controllers {
		defer c.Close()
	}

	msgs, err := e.db.ListMessages("+5491122334455")
	if err != nil {
		t.Fatal(err)
	}
	welcomes := 0
	for _, m := range msgs {
		if m.Content == "¡Bienvenido!" {
			welcomes++
			if !m.IsOutgoing {
				t.Error("welcome message must be admin-authored")
			}
		}
	}
	if welcomes != 1 {
		t.Errorf("welcome messages = %d, want exactly 1", welcomes)
	}
}

func TestAdminOpenResetsUnread(t *testing.T) {
	e := testEnv(t)
	if _, err := e.db.CreateThreadIfAbsent(&store.Thread{PhoneKey: "+5491122334455"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []string{"uno", "dos", "tres"} {
		if _, err := e.gateway.Send(context.Background(), "+5491122334455", c, false, "text"); err != nil {
			t.Fatal(err)
		}
	}

	c := e.controller(identity.RoleAdmin, "")
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	waitFor(t, c, func(r RenderState) bool {
		return r.Phase == PhaseReady && r.UnreadCount == 0
	})
}

func TestUserOpenAcksOutgoingRead(t *testing.T) {
	e := testEnv(t)
	if _, err := e.db.CreateThreadIfAbsent(&store.Thread{PhoneKey: "+5491122334455"}); err != nil {
		t.Fatal(err)
	}
	id, err := e.gateway.Send(context.Background(), "+5491122334455", "hola", true, "text")
	if err != nil {
		t.Fatal(err)
	}

	c := e.controller(identity.RoleUser, "")
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	waitFor(t, c, func(r RenderState) bool { return r.Phase == PhaseReady })
	m, _ := e.db.GetMessage(id)
	if m.Status != "read" {
		t.Errorf("outgoing message status = %q after user open, want read", m.Status)
	}
}

func TestBlockedUserCannotSend(t *testing.T) {
	e := testEnv(t)
	if _, err := e.db.CreateThreadIfAbsent(&store.Thread{PhoneKey: "+5491122334455"}); err != nil {
		t.Fatal(err)
	}
	if err := e.db.SetThreadBlocked("+5491122334455", true); err != nil {
		t.Fatal(err)
	}

	c := e.controller(identity.RoleUser, "")
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	waitFor(t, c, func(r RenderState) bool { return r.Mode == ModeBlocked })
	if _, err := c.Send(context.Background(), "hola", "text"); !errors.Is(err, ErrBlocked) {
		t.Errorf("blocked send err = %v, want ErrBlocked", err)
	}
}

func TestBlockedUserSendRejectedBeforeFirstSnapshot(t *testing.T) {
	e := testEnv(t)
	if _, err := e.db.CreateThreadIfAbsent(&store.Thread{PhoneKey: "+5491122334455"}); err != nil {
		t.Fatal(err)
	}
	if err := e.db.SetThreadBlocked("+5491122334455", true); err != nil {
		t.Fatal(err)
	}

	// No Open, no snapshot consumed: the gate must hold from the stored
	// flag alone, not from the last render state.
	c := e.controller(identity.RoleUser, "")
	defer c.Close()
	if _, err := c.Send(context.Background(), "hola", "text"); !errors.Is(err, ErrBlocked) {
		t.Errorf("pre-snapshot blocked send err = %v, want ErrBlocked", err)
	}
	msgs, _ := e.db.ListMessages("+5491122334455")
	if len(msgs) != 0 {
		t.Errorf("blocked send reached the store: %+v", msgs)
	}
}

func TestAdminOwnAckLeavesSentMessagesUnread(t *testing.T) {
	e := testEnv(t)
	c := e.controller(identity.RoleAdmin, "")
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	waitFor(t, c, func(r RenderState) bool { return r.Phase == PhaseReady })

	if _, err := c.Send(context.Background(), "hola", "text"); err != nil {
		t.Fatal(err)
	}
	// The admin re-focuses the thread. Only the admin marker moves; with
	// no user activity the just-sent message must stay unread.
	if err := c.AckOpen(); err != nil {
		t.Fatal(err)
	}

	r := waitFor(t, c, func(r RenderState) bool { return len(r.Messages) == 1 })
	if r.Messages[0].Read {
		t.Error("admin's own ack marked the admin's sent message read")
	}

	// The user opening the thread is what flips the checkmark.
	if err := e.machine.AckThreadRead("+5491122334455", time.Now()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, c, func(r RenderState) bool {
		return len(r.Messages) == 1 && r.Messages[0].Read
	})
}

func TestAdminSendQueuesOutbox(t *testing.T) {
	e := testEnv(t)
	c := e.controller(identity.RoleAdmin, "")
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	waitFor(t, c, func(r RenderState) bool { return r.Phase == PhaseReady })

	id, err := c.Send(context.Background(), "hola", "text")
	if err != nil {
		t.Fatal(err)
	}
	pending, err := e.db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].MessageID != id {
		t.Errorf("outbox = %+v, want the sent message queued", pending)
	}
}

type countingFeed struct {
	threadCh chan feed.ThreadSnapshot
	msgCh    chan feed.MessageSnapshot
	statusCh chan feed.StatusSnapshot
	cancels  atomic.Int32
}

func newCountingFeed() *countingFeed {
	return &countingFeed{
		threadCh: make(chan feed.ThreadSnapshot, 4),
		msgCh:    make(chan feed.MessageSnapshot, 4),
		statusCh: make(chan feed.StatusSnapshot, 4),
	}
}

func (f *countingFeed) SubscribeThread(string) (<-chan feed.ThreadSnapshot, func()) {
	return f.threadCh, func() { f.cancels.Add(1) }
}
func (f *countingFeed) SubscribeMessages(string) (<-chan feed.MessageSnapshot, func()) {
	return f.msgCh, func() { f.cancels.Add(1) }
}
func (f *countingFeed) SubscribeStatuses() (<-chan feed.StatusSnapshot, func()) {
	return f.statusCh, func() { f.cancels.Add(1) }
}

func TestCloseCancelsAllSubscriptions(t *testing.T) {
	e := testEnv(t)
	f := newCountingFeed()
	c := New(Config{
		Identity: identity.Identity{PhoneKey: "+5491122334455", Role: identity.RoleAdmin},
		DB:       e.db,
		Feed:     f,
		Gateway:  e.gateway,
		Machine:  e.machine,
	})
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.threadCh <- feed.ThreadSnapshot{Thread: &store.Thread{PhoneKey: "+5491122334455"}}
	waitFor(t, c, func(r RenderState) bool { return r.Phase == PhaseReady })

	c.Close()
	c.Close() // idempotent
	if got := f.cancels.Load(); got != 3 {
		t.Errorf("cancelled %d subscriptions, want all 3", got)
	}
}

func TestMidCallbackInterleavingKeepsStateCoherent(t *testing.T) {
	e := testEnv(t)
	f := newCountingFeed()
	c := New(Config{
		Identity: identity.Identity{PhoneKey: "+5491122334455", Role: identity.RoleUser},
		DB:       e.db,
		Feed:     f,
		Gateway:  e.gateway,
		Machine:  e.machine,
	})
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// Messages land before the thread document, then a block arrives in
	// the middle of a status update.
	f.msgCh <- feed.MessageSnapshot{Messages: []store.Message{{ID: "m1", Type: "text", Content: "hola"}}}
	f.statusCh <- feed.StatusSnapshot{Statuses: []store.Status{{ID: "s1", Timestamp: time.Now().UnixMilli()}}}
	f.threadCh <- feed.ThreadSnapshot{Thread: &store.Thread{PhoneKey: "+5491122334455", IsBlocked: true}}

	r := waitFor(t, c, func(r RenderState) bool { return r.Mode == ModeBlocked })
	if r.Phase != PhaseReady || !r.ShowPlaceholder || len(r.Messages) != 0 {
		t.Errorf("blocked state = %+v", r)
	}

	f.threadCh <- feed.ThreadSnapshot{Thread: &store.Thread{PhoneKey: "+5491122334455"}}
	r = waitFor(t, c, func(r RenderState) bool { return r.Mode == ModeActive })
	if len(r.Messages) != 1 || !r.ShowStories {
		t.Errorf("unblocked state = %+v", r)
	}
}
