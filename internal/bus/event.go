package bus

import "time"

// Event represents a document-change event published on the bus.
// Kind is a dotted topic; per-document topics embed the phone key
// (e.g. "thread.+5491122334455") so a subscriber can watch a single
// document the way a store snapshot listener would.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ThreadTopic returns the change topic for one chat thread document.
func ThreadTopic(phoneKey string) string {
	return "thread." + phoneKey
}

// MessagesTopic returns the change topic for a thread's message collection.
func MessagesTopic(phoneKey string) string {
	return "message." + phoneKey
}

// ProfileTopic returns the change topic for a user profile document.
func ProfileTopic(phoneKey string) string {
	return "profile." + phoneKey
}

// StatusesTopic is the change topic for the admin status broadcast feed.
const StatusesTopic = "status.changed"

// Provider dispatch outcomes, published by the outbox sender.
const (
	ProviderSendAck    = "provider.send_ack"
	ProviderSendFailed = "provider.send_failed"
)
