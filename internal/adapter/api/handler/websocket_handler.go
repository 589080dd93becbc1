package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"kirim/internal/adapter/api/middleware"
	ws "kirim/internal/infrastructure/websocket"
	"kirim/internal/usecase"
	"kirim/pkg/errors"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	sessions       *usecase.SessionManager
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, sessions *usecase.SessionManager, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		sessions:       sessions,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket upgrades the connection and binds it to the caller's
// session. Browsers cannot set headers on WebSocket upgrades, so the token
// arrives as a query parameter instead.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication token required", nil)
	}

	userID, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	// Start the session after the socket is registered so the initial
	// roster and preview events reach this connection.
	session := h.sessions.Start(c.Request().Context(), userID)
	h.wsManager.SendEvent(userID, ws.Event{Type: "roster", Payload: session.Roster()})

	return nil
}
