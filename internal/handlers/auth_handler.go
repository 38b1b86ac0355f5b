package handlers

import (
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/httpx"
	"github.com/chainsplit/chainsplit-backend/internal/middleware"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService  *service.AuthService
	secureCookie bool
}

func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input service.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if input.Email == "" || input.Password == "" || input.Username == "" {
		return httpx.BadRequest(c, "missing_fields", "Email, username, and password are required")
	}

	result, err := h.authService.Register(input)
	if err != nil {
		return httpx.FromError(c, err, "register_failed")
	}

	h.setSessionCookies(c, result)
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input service.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if input.Email == "" || input.Password == "" {
		return httpx.BadRequest(c, "missing_fields", "Email and password are required")
	}

	result, err := h.authService.Login(input)
	if err != nil {
		return httpx.Unauthorized(c, "invalid_credentials", "Invalid credentials")
	}

	h.setSessionCookies(c, result)
	return c.JSON(result)
}

// CSRF issues a fresh double-submit token for browser clients.
func (h *AuthHandler) CSRF(c *fiber.Ctx) error {
	token := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    token,
		Path:     "/",
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"csrf_token": token})
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, result *service.AuthResponse) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		MaxAge:   int(time.Until(result.ExpiresAt).Seconds()),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
