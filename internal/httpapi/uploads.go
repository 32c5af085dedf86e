package httpapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"chatline/internal/identity"
	"chatline/internal/profile"
)

// uploadFile pulls the "file" part out of a multipart request.
func uploadFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, err
	}
	return r.FormFile("file")
}

// handleAvatarUpload stores a new avatar and mirrors it onto the
// profile and thread documents.
func (s *Server) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	phoneKey, err := identity.NormalizePhoneKey(chi.URLParam(r, "phoneKey"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone key")
		return
	}
	file, header, err := uploadFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	url, err := s.blobs.SaveAvatar(phoneKey, header.Filename, file, header.Size, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.profiles.Apply(phoneKey, profile.Update{Avatar: url}); err != nil {
		s.logger.Error("avatar profile update failed", zap.Error(err), zap.String("phone_key", phoneKey))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

// handleStatusUpload stores a status image. Creating the status entry
// itself is a separate POST /api/statuses with the returned URL.
func (s *Server) handleStatusUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := uploadFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	url, err := s.blobs.SaveStatusImage(header.Filename, file, header.Size, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

// handleStickerUpload stores a sticker, vivifying its pack on first use.
func (s *Server) handleStickerUpload(w http.ResponseWriter, r *http.Request) {
	packID := chi.URLParam(r, "packID")
	file, header, err := uploadFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	st, err := s.stickers.AddSticker(packID, header.Filename, file, header.Size, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sticker": st})
}
