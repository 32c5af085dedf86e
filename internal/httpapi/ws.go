package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatline/internal/controller"
	"chatline/internal/identity"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// clientCommand is a frame sent by the connected client.
type clientCommand struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	MsgType string `json:"msgType,omitempty"`
	ID      string `json:"id,omitempty"`
	Blocked bool   `json:"blocked,omitempty"`
}

// stateFrame wraps a render state pushed to the client.
type stateFrame struct {
	Type  string                 `json:"type"`
	State controller.RenderState `json:"state"`
}

// handleChatSocket mounts one synchronization controller per
// connection and streams its render states until the peer goes away.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	phoneKey, err := identity.NormalizePhoneKey(chi.URLParam(r, "phoneKey"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone key")
		return
	}
	role, err := identity.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "role must be admin or user")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctrl := controller.New(controller.Config{
		Identity:       identity.Identity{PhoneKey: phoneKey, Role: role},
		DB:             s.db,
		Feed:           s.feed,
		Gateway:        s.gateway,
		Machine:        s.machine,
		WelcomeMessage: s.welcome,
		Logger:         s.logger,
	})
	if err := ctrl.Open(r.Context()); err != nil {
		s.logger.Error("controller open failed", zap.Error(err), zap.String("phone_key", phoneKey))
		return
	}
	defer ctrl.Close()

	// Single writer: only this goroutine touches the connection's write
	// side. It drains once the controller closes its update stream.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for state := range ctrl.Updates() {
			if err := conn.WriteJSON(stateFrame{Type: "state", State: state}); err != nil {
				return
			}
		}
	}()

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		switch cmd.Type {
		case "send":
			if _, err := ctrl.Send(r.Context(), cmd.Content, cmd.MsgType); err != nil {
				s.logger.Warn("socket send rejected", zap.Error(err), zap.String("phone_key", phoneKey))
			} else if s.metrics != nil {
				s.metrics.RecordMessage(role == identity.RoleAdmin, cmd.MsgType)
			}
		case "imageLoaded":
			ctrl.ImageLoaded(cmd.ID)
		case "openAck":
			if err := ctrl.AckOpen(); err != nil {
				s.logger.Warn("open ack failed", zap.Error(err))
			}
		case "block":
			if err := ctrl.SetBlocked(cmd.Blocked); err != nil {
				s.logger.Warn("block toggle rejected", zap.Error(err))
			}
		default:
			s.logger.Debug("unknown socket command", zap.String("type", cmd.Type))
		}
	}

	ctrl.Close()
	<-writeDone
}
