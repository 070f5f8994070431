package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
)

const sessionContextKey = "session"

// SessionVerifier resolves a bearer token to its live session.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*services.SessionContext, error)
}

// AuthMiddleware validates bearer tokens against the session store and loads
// the session context into the request.
func AuthMiddleware(verifier SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		sc, err := verifier.VerifySession(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}

		c.Locals(sessionContextKey, sc)
		return c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not listed.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, ok := GetSession(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		for _, role := range roles {
			if sc.Role() == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
	}
}

// GetSession extracts the authenticated session from context.
func GetSession(c *fiber.Ctx) (*services.SessionContext, bool) {
	sc, ok := c.Locals(sessionContextKey).(*services.SessionContext)
	return sc, ok && sc != nil
}

// CurrentUserID returns the authenticated user id as a string, or "".
func CurrentUserID(c *fiber.Ctx) string {
	if sc, ok := GetSession(c); ok {
		return sc.UserID().String()
	}
	return ""
}
