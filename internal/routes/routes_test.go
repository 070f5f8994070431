package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/database/dbtest"
	"github.com/example/marketplace/internal/handlers"
	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
)

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Pagination *struct {
		CurrentPage  int   `json:"current_page"`
		ItemsPerPage int   `json:"items_per_page"`
		TotalItems   int64 `json:"total_items"`
	} `json:"pagination"`
}

type testServer struct {
	app   *fiber.App
	svc   *Services
	clock *testclock.Clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		TokenExpires:     24 * time.Hour,
		ServiceFeeRate:   decimal.RequireFromString("0.05"),
		DeliveryFee:      decimal.RequireFromString("2.50"),
		SessionRetention: 7 * 24 * time.Hour,
	}
	clk := testclock.NewClock(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	svc := NewServices(dbtest.New(t), cfg, clk, services.NewMetrics())

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	Register(app, svc)
	return &testServer{app: app, svc: svc, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
}

// signup registers an account over HTTP and returns its id and a token.
func (s *testServer) signup(t *testing.T, role models.Role, email string) (uuid.UUID, string) {
	t.Helper()

	body := fiber.Map{
		"email":     email,
		"password":  "secret123",
		"full_name": "User " + email,
		"role":      role,
	}
	if role == models.RoleSupplier {
		body["role_data"] = fiber.Map{"business_name": "Chez " + email, "business_type": "restaurant"}
	}
	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, status, env.Error)

	var user models.User
	decode(t, env, &user)
	return user.ID, s.login(t, email)
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, status, env.Error)

	var result services.AuthResult
	decode(t, env, &result)
	require.NotEmpty(t, result.Token)
	return result.Token
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()

	_, err := s.svc.Auth.CreateUser(context.Background(), services.Actor{ID: uuid.New(), Role: models.RoleAdmin}, services.RegisterInput{
		Email: "admin@example.com", Password: "secret123", FullName: "Admin", Role: models.RoleAdmin,
	}, "")
	require.NoError(t, err)
	return s.login(t, "admin@example.com")
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup(t, models.RoleClient, "alice@example.com")

	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": "ALICE@example.com", "password": "secret123", "full_name": "Again",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	status, env = s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", env.Error)

	status, env = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var me struct {
		User models.User `json:"user"`
	}
	decode(t, env, &me)
	assert.Equal(t, "alice@example.com", me.User.Email)

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	s.clock.Advance(time.Hour)
	status, env = s.do(t, http.MethodPost, "/api/auth/extend", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var extended services.AuthResult
	decode(t, env, &extended)
	assert.NotEqual(t, token, extended.Token)

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "extension reissues the token")

	status, _ = s.do(t, http.MethodPost, "/api/auth/logout", extended.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/auth/me", extended.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSessionsEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, first := s.signup(t, models.RoleClient, "multi@example.com")
	second := s.login(t, "multi@example.com")

	status, env := s.do(t, http.MethodGet, "/api/auth/sessions", first, nil)
	require.Equal(t, http.StatusOK, status)
	var sessions []struct {
		ID      uuid.UUID `json:"id"`
		Current bool      `json:"current"`
	}
	decode(t, env, &sessions)
	require.Len(t, sessions, 2)

	var other uuid.UUID
	for _, sess := range sessions {
		if !sess.Current {
			other = sess.ID
		}
	}
	require.NotEqual(t, uuid.Nil, other)

	status, _ = s.do(t, http.MethodDelete, "/api/auth/sessions/"+other.String(), first, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/auth/me", second, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/change-password", first, fiber.Map{
		"current_password": "nope-nope", "new_password": "another123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	_, client := s.signup(t, models.RoleClient, "c@example.com")

	for _, path := range []string{"/api/admin/stats", "/api/fournisseur/produits", "/api/livreur/stats"} {
		status, env := s.do(t, http.MethodGet, path, client, nil)
		assert.Equal(t, http.StatusForbidden, status, path)
		assert.False(t, env.Success)
	}

	status, _ := s.do(t, http.MethodGet, "/api/client/profile", client, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/client/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, client := s.signup(t, models.RoleClient, "client@example.com")
	supplierID, supplier := s.signup(t, models.RoleSupplier, "shop@example.com")
	_, courier := s.signup(t, models.RoleCourier, "rider@example.com")

	status, env := s.do(t, http.MethodPost, "/api/fournisseur/produits", supplier, fiber.Map{
		"name": "Burger", "price": "10.00", "stock_quantity": 5,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var product models.Product
	decode(t, env, &product)

	status, env = s.do(t, http.MethodPost, "/api/client/addresses", client, fiber.Map{
		"label": "Maison", "street": "12 rue de la Paix", "city": "Paris", "postal_code": "75002",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var address models.Address
	decode(t, env, &address)
	assert.True(t, address.IsPrimary)

	status, env = s.do(t, http.MethodGet, "/api/produits?search=burg", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Pagination)
	assert.EqualValues(t, 1, env.Pagination.TotalItems)

	status, env = s.do(t, http.MethodPost, "/api/commandes", client, fiber.Map{
		"supplier_id":    supplierID,
		"address_id":     address.ID,
		"items":          []fiber.Map{{"product_id": product.ID, "quantity": 2}},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var order models.Order
	decode(t, env, &order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.RequireFromString("23.50").Equal(order.Total), order.Total.String())

	path := "/api/commandes/" + order.ID.String()

	status, env = s.do(t, http.MethodPatch, path+"/status", supplier, fiber.Map{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid status transition from pending to delivered", env.Error)

	status, _ = s.do(t, http.MethodPatch, path+"/status", client, fiber.Map{"status": "preparing"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, path, courier, nil)
	assert.Equal(t, http.StatusNotFound, status, "unassigned couriers cannot see the order")

	status, env = s.do(t, http.MethodPatch, "/api/fournisseur/commandes/"+order.ID.String()+"/status", supplier, fiber.Map{"status": "preparing"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(t, http.MethodGet, "/api/livreur/commandes/disponibles", courier, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Pagination.TotalItems)

	status, env = s.do(t, http.MethodPost, "/api/livreur/commandes/"+order.ID.String()+"/accept", courier, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	for _, step := range []struct {
		token string
		to    string
	}{
		{supplier, "ready_for_pickup"},
		{courier, "out_for_delivery"},
		{courier, "delivered"},
	} {
		status, env = s.do(t, http.MethodPatch, path+"/status", step.token, fiber.Map{"status": step.to})
		require.Equal(t, http.StatusOK, status, "%s: %s", step.to, env.Error)
	}

	status, env = s.do(t, http.MethodPost, path+"/payment/confirm", courier, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var payment models.Payment
	decode(t, env, &payment)
	assert.Equal(t, models.PaymentStatusConfirmed, payment.Status)

	status, env = s.do(t, http.MethodGet, "/api/livreur/stats", courier, nil)
	require.Equal(t, http.StatusOK, status)
	var stats services.CourierStats
	decode(t, env, &stats)
	assert.EqualValues(t, 1, stats.TotalDeliveries)
	assert.True(t, decimal.RequireFromString("23.50").Equal(stats.CashCollected), stats.CashCollected.String())

	s.clock.Advance(time.Minute)
	status, env = s.do(t, http.MethodGet, "/api/notifications?limit=50", client, nil)
	require.Equal(t, http.StatusOK, status)
	var inbox services.PollResult
	decode(t, env, &inbox)
	require.NotEmpty(t, inbox.Items)
	assert.Equal(t, inbox.Items[len(inbox.Items)-1].ID, inbox.NextCursor)

	status, env = s.do(t, http.MethodGet, "/api/notifications?after="+strconv.FormatUint(inbox.NextCursor, 10), client, nil)
	require.Equal(t, http.StatusOK, status)
	var empty services.PollResult
	decode(t, env, &empty)
	assert.Empty(t, empty.Items)

	status, _ = s.do(t, http.MethodPatch, "/api/notifications/read-all", client, nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", client, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unread_count":0}`, string(env.Data))
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin(t)
	clientID, client := s.signup(t, models.RoleClient, "client@example.com")

	status, env := s.do(t, http.MethodGet, "/api/admin/users?role=client", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.EqualValues(t, 1, env.Pagination.TotalItems)

	status, env = s.do(t, http.MethodPost, "/api/admin/categories", admin, fiber.Map{"name": "Boissons"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	status, env = s.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"boissons"`)

	status, env = s.do(t, http.MethodPatch, "/api/admin/users/"+clientID.String()+"/status", admin, fiber.Map{"status": "suspended"})
	require.Equal(t, http.StatusOK, status, env.Error)
	status, _ = s.do(t, http.MethodGet, "/api/client/profile", client, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "suspension ends sessions")

	status, env = s.do(t, http.MethodGet, "/api/admin/audit-logs?action=admin.user_status_changed", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Pagination.TotalItems)

	s.clock.Advance(48 * time.Hour)
	admin = s.login(t, "admin@example.com")
	status, env = s.do(t, http.MethodPost, "/api/admin/sessions/cleanup", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var cleanup services.CleanupResult
	decode(t, env, &cleanup)
	assert.EqualValues(t, 1, cleanup.Expired, "the first admin session expired")

	status, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+clientID.String(), admin, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/admin/users/"+clientID.String(), admin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/admin/users/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, models.RoleClient, "m@example.com")

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `marketplace_logins_total{result="success"} 1`), string(raw))
}
