package delivery

import "chatline/internal/store"

// Status is a point in the delivery lattice sent < delivered < read,
// with failed as a terminal branch off sent/delivered.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// DefaultErrorMessage is recorded when the provider reports a failure
// without an error description.
const DefaultErrorMessage = "unknown error"

var rank = map[Status]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Normalize maps a provider status code onto the lattice. The mapping is
// a fixed enumerated switch; anything else reports ok == false and the
// caller must treat the callback as a no-op.
func Normalize(code string) (Status, bool) {
	switch code {
	case "sent":
		return StatusSent, true
	case "delivered":
		return StatusDelivered, true
	case "read":
		return StatusRead, true
	case "failed", "undelivered":
		return StatusFailed, true
	default:
		return "", false
	}
}

// CanAdvance reports whether a transition from -> to moves forward in the
// lattice. Failed is terminal and only reachable from sent or delivered;
// everything else must strictly increase rank, so an out-of-order
// callback reporting an earlier state is rejected.
func CanAdvance(from, to Status) bool {
	if from == StatusFailed {
		return false
	}
	if to == StatusFailed {
		return from == StatusSent || from == StatusDelivered
	}
	return rank[to] > rank[from]
}

// ReadForView decides checkmark state for an outgoing message. Explicit
// read status and the inferred counterpart-activity check are OR'd,
// never AND'd: the explicit status can lag or be missing entirely.
func ReadForView(m store.Message, counterpartTS int64) bool {
	if Status(m.Status) == StatusRead {
		return true
	}
	return counterpartTS > m.Timestamp
}
