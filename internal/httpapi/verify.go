package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chatline/internal/identity"
)

type sendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// handleSendCode issues a verification code and dispatches it to the
// phone. The response carries the provider SID only, never the code.
func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}
	phoneKey, err := identity.NormalizePhoneKey(req.PhoneNumber)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phoneNumber")
		return
	}

	sid, err := s.verify.SendCode(r.Context(), phoneKey)
	if err != nil {
		s.logger.Error("verification send failed", zap.Error(err), zap.String("phone_key", phoneKey))
		if s.metrics != nil {
			s.metrics.ProviderSends.WithLabelValues("failed").Inc()
			s.metrics.Errors.WithLabelValues("verify").Inc()
		}
		writeError(w, http.StatusInternalServerError, "failed to send verification message")
		return
	}
	if s.metrics != nil {
		s.metrics.ProviderSends.WithLabelValues("sent").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sid": sid})
}

type verifyCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

// handleVerifyCode checks a submitted code server-side.
func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber and code are required")
		return
	}
	phoneKey, err := identity.NormalizePhoneKey(req.PhoneNumber)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phoneNumber")
		return
	}

	ok, err := s.verify.VerifyCode(r.Context(), phoneKey, req.Code)
	if err != nil {
		s.logger.Error("verification check failed", zap.Error(err), zap.String("phone_key", phoneKey))
		writeError(w, http.StatusInternalServerError, "verification unavailable")
		return
	}
	if ok && s.identities != nil {
		if err := s.identities.SaveIdentity(identity.Identity{PhoneKey: phoneKey, Role: identity.RoleUser}); err != nil {
			s.logger.Error("identity save failed", zap.Error(err), zap.String("phone_key", phoneKey))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": ok})
}

// handleGetIdentity returns the device's last verified identity, for
// clients resuming a session without re-verifying.
func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	if s.identities == nil {
		writeError(w, http.StatusNotFound, "no saved identity")
		return
	}
	id, err := s.identities.LoadSavedIdentity()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	if id == nil {
		writeError(w, http.StatusNotFound, "no saved identity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": id})
}
