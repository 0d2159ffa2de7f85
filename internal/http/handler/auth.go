package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"appstore/internal/http/middleware"
	"appstore/internal/model"
	"appstore/internal/service"
)

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Role            string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type loginResponse struct {
	Message   string      `json:"message"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// Register creates an account.
//
// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "Account details"
// @Success 201 {object} userResponse
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Router /auth/register [post]
func Register(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be JSON or form encoded")
		}
		user, err := svc.Register(c.UserContext(), service.RegisterInput{
			Name:            req.Name,
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
			Role:            req.Role,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(userResponse{Message: "User registered", User: user})
	}
}

// Login exchanges credentials for a bearer token.
//
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 401 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Router /auth/login [post]
func Login(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be JSON or form encoded")
		}
		res, err := svc.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(loginResponse{
			Message:   "Login successful",
			Token:     res.Token,
			ExpiresAt: res.ExpiresAt,
			User:      res.User,
		})
	}
}

// Profile echoes the authenticated user.
//
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} userResponse
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /auth/profile [get]
func Profile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(userResponse{Message: "Welcome to your profile!", User: middleware.CurrentUser(c)})
	}
}
