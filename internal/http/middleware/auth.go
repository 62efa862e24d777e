package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/app/service"
	"go.uber.org/zap"
)

const userKey = "user"

// UserResolver maps a bearer token to the user it was issued for.
type UserResolver interface {
	ResolveCurrentUser(ctx context.Context, token string) (*model.User, error)
}

// Auth requires a valid "Authorization: Bearer <token>" header and stores the
// resolved user for CurrentUser.
func Auth(resolver UserResolver, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		user, err := resolver.ResolveCurrentUser(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, service.ErrAuth) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid or expired token",
				})
			}
			logger.Error("resolve current user failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *fiber.Ctx) (*model.User, bool) {
	user, ok := c.Locals(userKey).(*model.User)
	return user, ok && user != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
