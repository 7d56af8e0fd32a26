package chatws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/okunev/lavka/internal/bot"
	"github.com/okunev/lavka/internal/identity"
)

// inboundFrame is the wire shape of one client event.
type inboundFrame struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Token   string `json:"token,omitempty"`
	Content string `json:"content,omitempty"`
}

// Handler upgrades chat connections and pumps inbound events through the
// stage. One connection per conversation; the read loop is sequential, so
// events reach the stage in arrival order.
type Handler struct {
	stage         *bot.Stage
	manager       *ConnManager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new chat WebSocket handler.
func NewHandler(stage *bot.Stage, manager *ConnManager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		stage:         stage,
		manager:       manager,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationID := identity.ConversationIDFromContext(r.Context())
	if conversationID == "" {
		http.Error(w, "missing conversation identity", http.StatusBadRequest)
		return
	}
	slog.Info("chat connection request", "conversation_id", conversationID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept chat websocket", "error", err, "conversation_id", conversationID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			slog.Debug("failed to close chat websocket", "error", closeErr, "conversation_id", conversationID)
		}
	}()

	h.manager.Register(conversationID, ws)
	defer h.manager.Unregister(conversationID, ws)

	h.readLoop(r, ws, conversationID)
	slog.Info("chat connection ended", "conversation_id", conversationID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("chat origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(r *http.Request, ws *websocket.Conn, conversationID string) {
	ctx := r.Context()
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("chat websocket closed by client", "conversation_id", conversationID)
			} else {
				slog.Warn("chat websocket read error", "error", err, "conversation_id", conversationID)
			}
			return
		}

		ev, ok := decodeEvent(message)
		if !ok {
			slog.Debug("undecodable chat frame ignored", "conversation_id", conversationID)
			continue
		}

		if err := h.stage.Dispatch(ctx, conversationID, ev); err != nil {
			slog.Error("chat dispatch failed", "error", err, "conversation_id", conversationID)
		}
	}
}

// decodeEvent maps a wire frame to a stage event. Frames of an unknown type
// become empty text events so scenes expecting plain text can reject them.
func decodeEvent(message []byte) (bot.Event, bool) {
	var frame inboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return bot.Event{}, false
	}
	switch frame.Type {
	case "command":
		return bot.CommandEvent(frame.Name), true
	case "action":
		return bot.ActionEvent(frame.Token), true
	case "text":
		return bot.TextEvent(frame.Content), true
	default:
		return bot.TextEvent(""), true
	}
}
