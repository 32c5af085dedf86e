package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatline/internal/identity"
	"chatline/internal/profile"
)

// handleListThreads serves the admin conversation list, newest activity
// first, with the avatar fallback already resolved.
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.db.ListThreads()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list threads")
		return
	}
	type threadView struct {
		PhoneKey          string `json:"phoneKey"`
		Name              string `json:"name"`
		LastMessage       string `json:"lastMessage"`
		LastMessageStatus string `json:"lastMessageStatus"`
		LastError         string `json:"lastError,omitempty"`
		UnreadCount       int    `json:"unreadCount"`
		IsBlocked         bool   `json:"isBlocked"`
		IsAgendado        bool   `json:"isAgendado"`
		Avatar            string `json:"avatar"`
		UpdatedAt         int64  `json:"updatedAt"`
	}
	views := make([]threadView, 0, len(threads))
	for i := range threads {
		t := &threads[i]
		views = append(views, threadView{
			PhoneKey:          t.PhoneKey,
			Name:              t.Name,
			LastMessage:       t.LastMessage,
			LastMessageStatus: t.LastMessageStatus,
			LastError:         t.LastError,
			UnreadCount:       t.UnreadCount,
			IsBlocked:         t.IsBlocked,
			IsAgendado:        t.IsAgendado,
			Avatar:            s.profiles.AvatarFor(t),
			UpdatedAt:         t.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": views})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	phoneKey, err := identity.NormalizePhoneKey(chi.URLParam(r, "phoneKey"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone key")
		return
	}
	p, err := s.profiles.Resolve(phoneKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	phoneKey, err := identity.NormalizePhoneKey(chi.URLParam(r, "phoneKey"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone key")
		return
	}
	var u profile.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.profiles.Apply(phoneKey, u); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	p, err := s.profiles.Resolve(phoneKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": p})
}

// handlePatchThread toggles per-thread flags from the admin contact
// list. Only fields present in the body are applied.
func (s *Server) handlePatchThread(w http.ResponseWriter, r *http.Request) {
	phoneKey, err := identity.NormalizePhoneKey(chi.URLParam(r, "phoneKey"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone key")
		return
	}
	var body struct {
		IsAgendado *bool `json:"isAgendado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.IsAgendado != nil {
		if err := s.db.SetThreadAgendado(phoneKey, *body.IsAgendado); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update thread")
			return
		}
	}
	t, err := s.db.GetThread(phoneKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read thread")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "thread": t})
}

func (s *Server) handleAdminProfile(w http.ResponseWriter, r *http.Request) {
	a, err := s.db.GetAdminProfile()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read admin profile")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "admin profile not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": a})
}
