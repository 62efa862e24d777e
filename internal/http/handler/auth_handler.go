package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/service"
	"github.com/sifan077/PayLink/internal/http/middleware"
)

// SignupRequest represents the request body for registering.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
	ID    uint   `json:"id"`
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	ID    uint   `json:"id"`
}

// Signup handles POST /api/auth/signup
func (h *APIHandler) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}

	res, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, h.logger, "signup", err)
	}
	return c.JSON(authResponse(res))
}

// Login handles POST /api/auth/login
func (h *APIHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}

	res, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, h.logger, "login", err)
	}
	return c.JSON(authResponse(res))
}

// Me handles GET /api/auth/me
func (h *APIHandler) Me(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	return c.JSON(UserResponse{Email: user.Email, Name: user.Name, ID: user.ID})
}

func authResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		Token: res.Token,
		Email: res.User.Email,
		Name:  res.User.Name,
		ID:    res.User.ID,
	}
}
