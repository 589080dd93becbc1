package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kirim/internal/usecase"
	"kirim/pkg/errors"
	"kirim/pkg/response"
)

type ChatHandler struct {
	sessions *usecase.SessionManager
}

func NewChatHandler(sessions *usecase.SessionManager) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
	}
}

// session returns the caller's live session, starting it on first use so a
// client that reconnects after a gateway restart does not need a fresh login.
func (h *ChatHandler) session(c echo.Context) *usecase.ChatSession {
	uid := c.Get("uid").(string)
	return h.sessions.Start(c.Request().Context(), uid)
}

func (h *ChatHandler) GetRoster(c echo.Context) error {
	return response.Success(c, h.session(c).Roster())
}

func (h *ChatHandler) OpenConversation(c echo.Context) error {
	var req struct {
		PeerID string `json:"peerId" validate:"required"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	uid := c.Get("uid").(string)
	if req.PeerID == uid {
		return response.Error(c, errors.BadRequest("Cannot open a conversation with yourself", nil))
	}

	if err := h.session(c).OpenConversation(req.PeerID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"peerId": req.PeerID,
	})
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req struct {
		ReceiverID string `json:"receiverId" validate:"required"`
		Content    string `json:"content" validate:"required"`
		Type       string `json:"type" validate:"required,oneof=text image"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.session(c).SendMessage(c.Request().Context(), req.ReceiverID, req.Content, req.Type)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

func (h *ChatHandler) GetAlert(c echo.Context) error {
	return response.Success(c, map[string]bool{
		"active": h.session(c).AlertActive(),
	})
}

func (h *ChatHandler) DismissAlert(c echo.Context) error {
	s := h.session(c)
	s.DismissAlert()

	return response.Success(c, map[string]bool{
		"active": false,
	})
}
