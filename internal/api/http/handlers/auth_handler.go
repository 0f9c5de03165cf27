package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/dto"
	"github.com/parkwise/parking-service/internal/service"
)

// AuthHandler exchanges credentials for access tokens.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/v1/auth.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.TokenResponse{Token: token.Raw, TokenType: "Bearer", ExpiresAt: token.ExpiresAt},
	})
}
