package delivery

import (
	"path/filepath"
	"testing"
	"time"

	"chatline/internal/bus"
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

func seedThread(t *testing.T, db *store.DB, phoneKey string) {
	t.Helper()
	if _, err := db.CreateThreadIfAbsent(&store.Thread{PhoneKey: phoneKey}); err != nil {
		t.Fatal(err)
	}
}

func seedOutgoing(t *testing.T, db *store.DB, phoneKey, id, sid, status string, ts int64) {
	t.Helper()
	m := &store.Message{
		ID: id, PhoneKey: phoneKey, Content: "hola", Type: "text",
		IsOutgoing: true, Status: status, Timestamp: ts, SentAt: ts,
	}
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if sid != "" {
		if err := db.SetMessageProviderSID(id, sid); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusRead, StatusDelivered, false},
		{StatusRead, StatusSent, false},
		{StatusDelivered, StatusDelivered, false},
		{StatusSent, StatusFailed, true},
		{StatusDelivered, StatusFailed, true},
		{StatusRead, StatusFailed, false},
		{StatusFailed, StatusDelivered, false},
		{StatusFailed, StatusFailed, false},
	}
	for _, tt := range tests {
		if got := CanAdvance(tt.from, tt.to); got != tt.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNormalizeUndelivered(t *testing.T) {
	st, ok := Normalize("undelivered")
	if !ok || st != StatusFailed {
		t.Errorf("Normalize(undelivered) = %v %v, want failed", st, ok)
	}
	if _, ok := Normalize("queued"); ok {
		t.Error("Normalize(queued) should not be recognized")
	}
	if _, ok := Normalize(""); ok {
		t.Error("Normalize of empty string should not be recognized")
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	db := testDB(t)
	m := NewMachine(db, nil, nil)
	seedThread(t, db, "+5491122334455")
	seedOutgoing(t, db, "+5491122334455", "m1", "SM1", "sent", 1000)

	if _, err := m.Apply(Callback{SID: "SM1", PhoneKey: "+5491122334455", RawStatus: "read", ReceivedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	msg, _ := db.GetMessage("m1")
	if msg.Status != "read" {
		t.Fatalf("status = %q, want read", msg.Status)
	}

	// A late delivered callback must leave state at read.
	applied, err := m.Apply(Callback{SID: "SM1", PhoneKey: "+5491122334455", RawStatus: "delivered", ReceivedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if applied.Status != "" {
		t.Errorf("stale callback applied %+v, want no-op", applied)
	}
	msg, _ = db.GetMessage("m1")
	if msg.Status != "read" {
		t.Errorf("status regressed to %q", msg.Status)
	}
}

func TestFailedCallbackRecordsError(t *testing.T) {
	db := testDB(t)
	m := NewMachine(db, nil, nil)
	seedThread(t, db, "+5491122334455")

	applied, err := m.Apply(Callback{
		SID: "SM1", PhoneKey: "+5491122334455",
		RawStatus: "failed", ErrorMessage: "unreachable",
		ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if applied.Status != "failed" || applied.LastError != "unreachable" {
		t.Errorf("applied = %+v", applied)
	}

	th, _ := db.GetThread("+5491122334455")
	if th.LastMessageStatus != "failed" {
		t.Errorf("lastMessageStatus = %q, want failed", th.LastMessageStatus)
	}
	if th.LastError != "unreachable" {
		t.Errorf("lastError = %q, want unreachable", th.LastError)
	}
}

func TestFailedWithoutMessageDefaultsError(t *testing.T) {
	db := testDB(t)
	m := NewMachine(db, nil, nil)
	seedThread(t, db, "+5491122334455")

	applied, err := m.Apply(Callback{SID: "SM9", PhoneKey: "+5491122334455", RawStatus: "undelivered", ReceivedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if applied.LastError != DefaultErrorMessage {
		t.Errorf("lastError = %q, want %q", applied.LastError, DefaultErrorMessage)
	}
}

func TestReadCallbackSetsReadMarker(t *testing.T) {
	db := testDB(t)
	m := NewMachine(db, nil, nil)
	seedThread(t, db, "+5491122334455")

	before := time.Now()
	applied, err := m.Apply(Callback{SID: "SM2", PhoneKey: "+5491122334455", RawStatus: "read", ReceivedAt: before})
	if err != nil {
		t.Fatal(err)
	}
	if applied.LastReadAt != before.UnixMilli() {
		t.Errorf("lastReadAt = %d, want callback processing time %d", applied.LastReadAt, before.UnixMilli())
	}
	th, _ := db.GetThread("+5491122334455")
	if th.LastMessageStatus != "read" || th.UserLastReadAt != before.UnixMilli() {
		t.Errorf("thread = status %q read_at %d", th.LastMessageStatus, th.UserLastReadAt)
	}
	if th.AdminLastReadAt != 0 {
		t.Errorf("read callback wrote the admin marker: %d", th.AdminLastReadAt)
	}
}

func TestUnknownStatusIsNoOp(t *testing.T) {
	db := testDB(t)
	m := NewMachine(db, nil, nil)
	seedThread(t, db, "+5491122334455")
	seedOutgoing(t, db, "+5491122334455", "m1", "SM1", "sent", 1000)

	applied, err := m.Apply(Callback{SID: "SM1", PhoneKey: "+5491122334455", RawStatus: "accepted", ReceivedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if applied.Status != "" || applied.MessageID != "" {
		t.Errorf("unknown status applied %+v, want no-op", applied)
	}
	msg, _ := db.GetMessage("m1")
	if msg.Status != "sent" {
		t.Errorf("message mutated to %q", msg.Status)
	}
	th, _ := db.GetThread("+5491122334455")
	if th.LastMessageStatus != "" {
		t.Errorf("thread mutated to %q", th.LastMessageStatus)
	}
}

func TestFailedTerminal(t *testing.T) {
	db := testDB(t)
	m := NewMachine(db, nil, nil)
	seedThread(t, db, "+5491122334455")
	seedOutgoing(t, db, "+5491122334455", "m1", "SM1", "sent", 1000)

	if _, err := m.Apply(Callback{SID: "SM1", PhoneKey: "+5491122334455", RawStatus: "failed", ReceivedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	applied, err := m.Apply(Callback{SID: "SM1", PhoneKey: "+5491122334455", RawStatus: "delivered", ReceivedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if applied.Status != "" {
		t.Error("callback after failed should be a no-op")
	}
	msg, _ := db.GetMessage("m1")
	if msg.Status != "failed" {
		t.Errorf("status = %q, want failed", msg.Status)
	}
}

func TestAckThreadRead(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	m := NewMachine(db, b, nil)
	seedThread(t, db, "+5491122334455")
	seedOutgoing(t, db, "+5491122334455", "m1", "", "sent", 1000)
	seedOutgoing(t, db, "+5491122334455", "m2", "", "delivered", 2000)

	ch, unsub := b.Subscribe(bus.MessagesTopic("+5491122334455"), 10)
	defer unsub()

	now := time.Now()
	if err := m.AckThreadRead("+5491122334455", now); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"m1", "m2"} {
		msg, _ := db.GetMessage(id)
		if msg.Status != "read" {
			t.Errorf("message %s status = %q, want read", id, msg.Status)
		}
	}
	th, _ := db.GetThread("+5491122334455")
	if th.UserLastReadAt != now.UnixMilli() {
		t.Errorf("user_last_read_at = %d, want %d", th.UserLastReadAt, now.UnixMilli())
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no message change event published")
	}
}

func TestReadForViewInference(t *testing.T) {
	msg := store.Message{Status: "delivered", Timestamp: 1000}

	if ReadForView(msg, 500) {
		t.Error("no counterpart activity after message: not read")
	}
	if !ReadForView(msg, 1500) {
		t.Error("counterpart activity after message infers read")
	}
	msg.Status = "read"
	if !ReadForView(msg, 0) {
		t.Error("explicit read wins regardless of inference")
	}
}
