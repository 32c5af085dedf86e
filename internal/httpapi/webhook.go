package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatline/internal/delivery"
	"chatline/internal/identity"
)

// handleWebhook receives Twilio-style delivery status callbacks.
// Requests without the provider signature header are rejected before
// the form is even looked at.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Twilio-Signature") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing signature"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed form body"})
		return
	}

	to := r.PostFormValue("To")
	sid := r.PostFormValue("MessageSid")
	rawStatus := r.PostFormValue("MessageStatus")
	errorMessage := r.PostFormValue("ErrorMessage")

	if to == "" || sid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing To or MessageSid"})
		return
	}
	phoneKey, err := identity.NormalizePhoneKey(to)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid To number"})
		return
	}

	if s.metrics != nil {
		s.metrics.WebhookCallbacks.WithLabelValues(rawStatus).Inc()
	}

	applied, err := s.machine.Apply(delivery.Callback{
		SID:          sid,
		PhoneKey:     phoneKey,
		RawStatus:    rawStatus,
		ErrorMessage: errorMessage,
		ReceivedAt:   time.Now(),
	})
	if err != nil {
		s.logger.Error("webhook apply failed", zap.Error(err), zap.String("sid", sid))
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("webhook").Inc()
		}
		writeError(w, http.StatusInternalServerError, "callback processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": applied})
}
