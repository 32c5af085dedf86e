package httpapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"chatline/internal/blob"
	"chatline/internal/bus"
	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/gateway"
	"chatline/internal/identity"
	"chatline/internal/metrics"
	"chatline/internal/profile"
	"chatline/internal/status"
	"chatline/internal/sticker"
	"chatline/internal/store"
	"chatline/internal/verify"
)

// fakeDispatcher stands in for the provider gateway in tests.
type fakeDispatcher struct {
	lastTo, lastBody string
	err              error
}

func (f *fakeDispatcher) SendText(_ context.Context, to, body string) (string, error) {
	f.lastTo, f.lastBody = to, body
	if f.err != nil {
		return "", f.err
	}
	return "SM-test", nil
}

type testHarness struct {
	db       *store.DB
	bus      *bus.Bus
	machine  *delivery.Machine
	gateway  *gateway.Gateway
	dispatch *fakeDispatcher
	srv      *httptest.Server
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	blobs, err := blob.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	dispatch := &fakeDispatcher{}
	machine := delivery.NewMachine(db, b, nil)
	gw := gateway.New(db, b, nil)

	server := NewServer(Config{
		DB:         db,
		Feed:       feed.NewLive(db, b, nil),
		Gateway:    gw,
		Machine:    machine,
		Verify:     verify.NewService(verify.NewMemStore(), dispatch, nil),
		Statuses:   status.NewAggregator(db, b, blobs, nil),
		Stickers:   sticker.NewService(db, blobs, nil),
		Profiles:   profile.NewResolver(db, b, blobs, nil),
		Blobs:      blobs,
		Metrics:    metrics.New(),
		Identities: identity.NewFileSaver(t.TempDir()),
		Welcome:    "¡Bienvenido a nuestro canal!",
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &testHarness{db: db, bus: b, machine: machine, gateway: gw, dispatch: dispatch, srv: srv}
}

func (h *testHarness) seedThread(t *testing.T, phoneKey string) {
	t.Helper()
	if _, err := h.db.CreateThreadIfAbsent(&store.Thread{PhoneKey: phoneKey}); err != nil {
		t.Fatal(err)
	}
}

var errGatewayDown = errors.New("gateway down")
