package router

import (
	"github.com/labstack/echo/v4"

	"kirim/internal/adapter/api/handler"
	"kirim/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chat")
	chatGroup.Use(authMiddleware.Authenticate) // All chat endpoints require authentication

	chatGroup.GET("/roster", chatHandler.GetRoster)                     // GET /v1/chat/roster - Roster with previews
	chatGroup.POST("/conversations/open", chatHandler.OpenConversation) // POST /v1/chat/conversations/open - Switch active conversation
	chatGroup.POST("/messages", chatHandler.SendMessage)                // POST /v1/chat/messages - Send message
	chatGroup.GET("/alert", chatHandler.GetAlert)                       // GET /v1/chat/alert - Current alert flag
	chatGroup.POST("/alert/dismiss", chatHandler.DismissAlert)          // POST /v1/chat/alert/dismiss - Clear alert flag
}
