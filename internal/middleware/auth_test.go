package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
)

type stubVerifier map[string]*services.SessionContext

func (v stubVerifier) VerifySession(_ context.Context, token string) (*services.SessionContext, error) {
	if sc, ok := v[token]; ok {
		return sc, nil
	}
	return nil, errors.Unauthorizedf("invalid or expired token")
}

func newApp(verifier SessionVerifier) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else if errors.Is(err, errors.Unauthorized) {
				code = fiber.StatusUnauthorized
			}
			return c.SendStatus(code)
		},
	})
	app.Get("/me", AuthMiddleware(verifier), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUserID(c))
	})
	app.Get("/admin", AuthMiddleware(verifier), RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func call(t *testing.T, app *fiber.App, path, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	client := &services.SessionContext{User: &models.User{Role: models.RoleClient}, SessionID: uuid.New()}
	client.User.ID = uuid.New()
	app := newApp(stubVerifier{"client-token": client})

	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", "Token client-token"))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", "Bearer "))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", "Bearer stale"))
	assert.Equal(t, http.StatusOK, call(t, app, "/me", "bearer client-token"))
}

func TestRequireRole(t *testing.T) {
	client := &services.SessionContext{User: &models.User{Role: models.RoleClient}}
	admin := &services.SessionContext{User: &models.User{Role: models.RoleAdmin}}
	app := newApp(stubVerifier{"c": client, "a": admin})

	assert.Equal(t, http.StatusForbidden, call(t, app, "/admin", "Bearer c"))
	assert.Equal(t, http.StatusNoContent, call(t, app, "/admin", "Bearer a"))
}
