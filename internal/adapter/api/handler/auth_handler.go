package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kirim/internal/usecase"
	"kirim/pkg/response"
)

type AuthHandler struct {
	authUseCase *usecase.AuthUseCase
	sessions    *usecase.SessionManager
}

func NewAuthHandler(authUseCase *usecase.AuthUseCase, sessions *usecase.SessionManager) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		sessions:    sessions,
	}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"required,min=1"`
}

type userResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

type authResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.authUseCase.Register(c.Request().Context(), usecase.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(http.StatusCreated, authResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User: userResponse{
			UID:         result.User.UID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			PhotoURL:    result.User.PhotoURL,
		},
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.authUseCase.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	return c.JSON(http.StatusOK, authResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User: userResponse{
			UID:         result.User.UID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			PhotoURL:    result.User.PhotoURL,
		},
	})
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.authUseCase.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, authResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User: userResponse{
			UID:         result.User.UID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			PhotoURL:    result.User.PhotoURL,
		},
	})
}

// Logout tears the caller's session down. Presence goes offline inside the
// session teardown, while the token is still valid.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid := c.Get("uid").(string)

	h.sessions.Stop(c.Request().Context(), uid)

	return response.Success(c, map[string]string{
		"message": "Successfully logged out",
	})
}
