package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleListStatuses returns the statuses still inside the 24h window.
func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	active, err := s.statuses.List(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list statuses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": active})
}

type createStatusRequest struct {
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption"`
}

func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req createStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	st, err := s.statuses.Create(req.ImageURL, req.Caption)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": st})
}

func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	if err := s.statuses.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleListStickers returns every sticker pack.
func (s *Server) handleListStickers(w http.ResponseWriter, r *http.Request) {
	packs, err := s.stickers.Packs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list stickers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packs": packs})
}
