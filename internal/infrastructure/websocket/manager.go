package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"kirim/pkg/logger"
)

// Client represents one connected UI client.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Event is the envelope pushed to UI clients. Payload carries the
// event-specific body (roster, messages, preview, alert, error).
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Manager tracks active WebSocket connections, one per authenticated user.
type Manager struct {
	clients      map[string]*Client
	Register     chan *Client
	Unregister   chan *Client
	mutex        sync.RWMutex
	onDisconnect func(userID string)
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// SetOnDisconnect installs a hook invoked after a client's connection is
// gone, so the session layer can treat a vanished UI like a disconnect.
func (m *Manager) SetOnDisconnect(fn func(userID string)) {
	m.onDisconnect = fn
}

// Start runs the manager's main loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if old, ok := m.clients[client.UserID]; ok {
					close(old.Send)
				}
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				logger.Info("ws client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				current, ok := m.clients[client.UserID]
				if ok && current == client {
					delete(m.clients, client.UserID)
					close(client.Send)
				}
				m.mutex.Unlock()
				logger.Info("ws client unregistered: %s", client.UserID)
				if ok && current == client && m.onDisconnect != nil {
					m.onDisconnect(client.UserID)
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}

// SendToUser pushes a payload to a specific user, dropping it if the user has
// no live connection or their send buffer is full.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if !ok {
		return
	}
	select {
	case client.Send <- message:
	default:
		logger.Warn("dropping ws event for %s: send buffer full", userID)
	}
}

// SendEvent marshals and pushes a typed event to a specific user.
func (m *Manager) SendEvent(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to encode ws event %s: %v", event.Type, err)
		return
	}
	m.SendToUser(userID, data)
}

// ReadPump drains (and discards) messages from the connection until it
// closes; the UI talks to the gateway over HTTP, the socket is push-only.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws read error for %s: %v", c.UserID, err)
			}
			break
		}
	}
}

// WritePump sends queued messages to the WebSocket connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Warn("ws write error for %s: %v", c.UserID, err)
			return
		}
	}
}
