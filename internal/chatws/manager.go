// Package chatws provides the WebSocket chat transport for the ordering bot.
package chatws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/okunev/lavka/internal/bot"
)

// outboundFrame is the wire shape of one reply to the chat client.
type outboundFrame struct {
	Type    string       `json:"type"`
	Text    string       `json:"text"`
	Buttons []bot.Button `json:"buttons,omitempty"`
}

// ConnManager tracks the active WebSocket connection per conversation and
// delivers outbound replies. It implements bot.Sender.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{active: make(map[string]*websocket.Conn)}
}

// Register adds a connection for a conversation, replacing (and closing) any
// previous one.
func (m *ConnManager) Register(conversationID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[conversationID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	m.active[conversationID] = conn
	slog.Info("chat connection registered", "conversation_id", conversationID)
}

// Unregister removes a connection if it is still the active one.
func (m *ConnManager) Unregister(conversationID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[conversationID]; ok && current == conn {
		delete(m.active, conversationID)
		slog.Info("chat connection unregistered", "conversation_id", conversationID)
	}
}

// CloseConversation forcefully terminates the active connection, if any.
func (m *ConnManager) CloseConversation(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.active[conversationID]; ok {
		_ = conn.Close(websocket.StatusNormalClosure, "conversation closed")
		delete(m.active, conversationID)
		slog.Info("chat connection closed", "conversation_id", conversationID)
	}
}

// Send delivers one reply to the conversation's active connection.
func (m *ConnManager) Send(ctx context.Context, conversationID string, r bot.Reply) error {
	m.mu.RLock()
	conn := m.active[conversationID]
	m.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("no active connection for conversation %s", conversationID)
	}

	data, err := json.Marshal(outboundFrame{Type: "message", Text: r.Text, Buttons: r.Buttons})
	if err != nil {
		return fmt.Errorf("marshal outbound frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write outbound frame: %w", err)
	}
	return nil
}
