package router

import (
	"github.com/labstack/echo/v4"

	"kirim/internal/adapter/api/handler"
	"kirim/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	SetupAuthRouter(e, authHandler, authMiddleware)
	SetupChatRouter(e, chatHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupHealthRouter(e, healthHandler)
}
