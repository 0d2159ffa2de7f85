package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"appstore/internal/model"
	"appstore/internal/service"
)

// UserLocalKey is the locals key holding the authenticated *model.User.
const UserLocalKey = "user"

// TokenVerifier resolves a bearer token to its user.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*model.User, error)
}

// Auth rejects requests without a valid bearer token: 401 when it is missing, 403 when it is
// invalid or expired and 404 when its user no longer exists.
func Auth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := v.Verify(c.UserContext(), bearerToken(c))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUnauthorized):
				return fiber.NewError(fiber.StatusUnauthorized, "access denied, no token provided")
			case errors.Is(err, service.ErrForbidden):
				return fiber.NewError(fiber.StatusForbidden, "invalid or expired token")
			case errors.Is(err, service.ErrNotFound):
				return fiber.NewError(fiber.StatusNotFound, "user not found")
			default:
				return err
			}
		}
		c.Locals(UserLocalKey, user)
		return c.Next()
	}
}

// OptionalAuth attaches the user when a valid bearer token is present and otherwise continues anonymously.
func OptionalAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := bearerToken(c); raw != "" {
			if user, err := v.Verify(c.UserContext(), raw); err == nil {
				c.Locals(UserLocalKey, user)
			}
		}
		return c.Next()
	}
}

// CurrentUser returns the user attached by Auth or OptionalAuth, or nil.
func CurrentUser(c *fiber.Ctx) *model.User {
	u, _ := c.Locals(UserLocalKey).(*model.User)
	return u
}

func bearerToken(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
