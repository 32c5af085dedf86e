package controller

import (
	"time"

	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/identity"
	"chatline/internal/status"
	"chatline/internal/store"
)

// Phase is the controller lifecycle phase. LOADING is left exactly once,
// on the first thread snapshot, and never re-entered.
type Phase string

const (
	PhaseLoading Phase = "LOADING"
	PhaseReady   Phase = "READY"
)

// Mode is the sub-state within READY. Block toggles move between the
// two without ever touching Phase.
type Mode string

const (
	ModeActive  Mode = "ACTIVE"
	ModeBlocked Mode = "BLOCKED"
)

// State is the controller's reduced state. It is owned by the actor
// goroutine; every mutation goes through an apply* step that fully
// replaces the slice of state its event carries.
type State struct {
	Phase    Phase
	Mode     Mode
	Thread   *store.Thread
	Messages []store.Message
	Statuses []store.Status

	loaded  map[string]struct{}
	pending map[string]struct{}
}

func newState() State {
	return State{
		Phase:   PhaseLoading,
		Mode:    ModeActive,
		loaded:  make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

func (s State) applyThread(snap feed.ThreadSnapshot) State {
	s.Thread = snap.Thread
	if snap.Thread == nil {
		return s
	}
	s.Phase = PhaseReady
	if snap.Thread.IsBlocked {
		s.Mode = ModeBlocked
	} else {
		s.Mode = ModeActive
	}
	return s
}

func (s State) applyMessages(snap feed.MessageSnapshot) State {
	s.Messages = snap.Messages
	pending := make(map[string]struct{})
	for _, m := range snap.Messages {
		if !isVisual(m.Type) {
			continue
		}
		if _, ok := s.loaded[m.ID]; !ok {
			pending[m.ID] = struct{}{}
		}
	}
	s.pending = pending
	return s
}

func (s State) applyStatuses(snap feed.StatusSnapshot, now time.Time) State {
	cutoff := now.Add(-status.TTL).UnixMilli()
	active := make([]store.Status, 0, len(snap.Statuses))
	for _, st := range snap.Statuses {
		if st.Timestamp > cutoff {
			active = append(active, st)
		}
	}
	s.Statuses = active
	return s
}

func (s State) applyImageLoaded(id string) State {
	loaded := make(map[string]struct{}, len(s.loaded)+1)
	for k := range s.loaded {
		loaded[k] = struct{}{}
	}
	loaded[id] = struct{}{}
	pending := make(map[string]struct{}, len(s.pending))
	for k := range s.pending {
		if k != id {
			pending[k] = struct{}{}
		}
	}
	s.loaded = loaded
	s.pending = pending
	return s
}

// scrollReady reports whether the view may jump to the newest message:
// every visual message in the current batch has been reported loaded.
func (s State) scrollReady() bool {
	return len(s.pending) == 0
}

func isVisual(msgType string) bool {
	return msgType == "image" || msgType == "sticker"
}

// MessageView is one message plus its derived render fields.
type MessageView struct {
	store.Message
	Read bool `json:"read"`
}

// RenderState is what a connected client sees. Each reducer step emits
// a complete new one; clients replace, never patch.
type RenderState struct {
	Phase           Phase          `json:"phase"`
	Mode            Mode           `json:"mode"`
	Role            identity.Role  `json:"role"`
	Thread          *store.Thread  `json:"thread,omitempty"`
	Messages        []MessageView  `json:"messages"`
	UnreadCount     int            `json:"unreadCount"`
	ComposerEnabled bool           `json:"composerEnabled"`
	ShowPlaceholder bool           `json:"showPlaceholder"`
	ShowStories     bool           `json:"showStories"`
	Statuses        []store.Status `json:"statuses"`
	ScrollToBottom  bool           `json:"scrollToBottom"`
}

// render projects the reduced state for one role. The block placeholder
// applies to the end-user side only; the admin keeps the full view so
// the thread can still be managed while blocked.
func render(s State, role identity.Role) RenderState {
	r := RenderState{
		Phase:           s.Phase,
		Mode:            s.Mode,
		Role:            role,
		Thread:          s.Thread,
		Statuses:        s.Statuses,
		ScrollToBottom:  s.Phase == PhaseReady && s.scrollReady(),
		ComposerEnabled: s.Phase == PhaseReady,
	}
	if s.Thread != nil {
		r.UnreadCount = s.Thread.UnreadCount
	}
	if role == identity.RoleUser {
		r.ShowStories = len(s.Statuses) > 0
		if s.Mode == ModeBlocked {
			r.ComposerEnabled = false
			r.ShowPlaceholder = true
			r.ScrollToBottom = false
			return r // messages hidden
		}
	}

	// Checkmarks apply to the session's own authored messages and infer
	// from the OTHER side's read marker: the admin watches the user's
	// marker, the user watches the admin's. Never the session's own.
	var counterpartTS int64
	if s.Thread != nil {
		if role == identity.RoleAdmin {
			counterpartTS = s.Thread.UserLastReadAt
		} else {
			counterpartTS = s.Thread.AdminLastReadAt
		}
	}
	own := role == identity.RoleAdmin
	r.Messages = make([]MessageView, 0, len(s.Messages))
	for _, m := range s.Messages {
		v := MessageView{Message: m}
		if m.IsOutgoing == own {
			v.Read = delivery.ReadForView(m, counterpartTS)
		}
		r.Messages = append(r.Messages, v)
	}
	return r
}
