package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/database/dbtest"
	"github.com/example/marketplace/internal/models"
)

const testSecret = "test-secret"

var epoch = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *testclock.Clock
	metrics  *Metrics
	notifier *NotificationService
	auth     *AuthService
	orders   *OrderService
	catalog  *CatalogService
	profiles *ProfileService
	admin    *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.New(t)
	clk := testclock.NewClock(epoch)
	metrics := NewMetrics()
	notifier := NewNotificationService(db, clk, metrics)

	return &testEnv{
		ctx:      context.Background(),
		db:       db,
		clock:    clk,
		metrics:  metrics,
		notifier: notifier,
		auth: NewAuthService(db, AuthConfig{
			Secret:           testSecret,
			TokenTTL:         24 * time.Hour,
			SessionRetention: 7 * 24 * time.Hour,
		}, clk, metrics),
		orders: NewOrderService(db, OrderConfig{
			ServiceFeeRate: decimal.RequireFromString("0.05"),
			DeliveryFee:    decimal.RequireFromString("2.50"),
		}, clk, notifier, nil, metrics),
		catalog:  NewCatalogService(db),
		profiles: NewProfileService(db),
		admin:    NewAdminService(db, clk, notifier),
	}
}

func (e *testEnv) register(t *testing.T, role models.Role, email string) *models.User {
	t.Helper()
	in := RegisterInput{
		Email:    email,
		Password: "secret123",
		FullName: string(role) + " " + email,
		Phone:    "+33600000000",
		Role:     role,
	}
	if role == models.RoleSupplier {
		in.RoleData.BusinessName = "Chez " + email
		in.RoleData.BusinessType = "restaurant"
	}

	var (
		user *models.User
		err  error
	)
	if role == models.RoleAdmin {
		err = e.db.Transaction(func(tx *gorm.DB) error {
			user, err = e.auth.createUser(tx, in)
			return err
		})
	} else {
		user, err = e.auth.Register(e.ctx, in)
	}
	require.NoError(t, err)
	return user
}

func (e *testEnv) product(t *testing.T, supplierID uuid.UUID, name, price string, stock int) *models.Product {
	t.Helper()
	p, err := e.catalog.CreateProduct(e.ctx, supplierID, ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) address(t *testing.T, clientID uuid.UUID) *models.Address {
	t.Helper()
	a, err := e.profiles.CreateAddress(e.ctx, clientID, AddressInput{
		Street:     "12 rue de la Paix",
		City:       "Paris",
		PostalCode: "75002",
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) notifications(t *testing.T, userID uuid.UUID, event Event) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, e.db.Where("user_id = ? AND type = ?", userID, string(event)).Find(&rows).Error)
	return rows
}

// marketplace is a supplier with one product, a client with an address and
// an available courier.
type marketplace struct {
	client   *models.User
	supplier *models.User
	courier  *models.User
	admin    *models.User
	address  *models.Address
	burger   *models.Product
}

func (e *testEnv) seed(t *testing.T) *marketplace {
	t.Helper()
	m := &marketplace{
		client:   e.register(t, models.RoleClient, "client@example.com"),
		supplier: e.register(t, models.RoleSupplier, "supplier@example.com"),
		courier:  e.register(t, models.RoleCourier, "courier@example.com"),
		admin:    e.register(t, models.RoleAdmin, "admin@example.com"),
	}
	m.address = e.address(t, m.client.ID)
	m.burger = e.product(t, m.supplier.ID, "Burger", "10.00", 5)
	return m
}

func (m *marketplace) actor(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func (e *testEnv) placeOrder(t *testing.T, m *marketplace, qty int, method models.PaymentMethod) *models.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(e.ctx, CreateOrderInput{
		ClientID:      m.client.ID,
		SupplierID:    m.supplier.ID,
		AddressID:     m.address.ID,
		Lines:         []OrderLineInput{{ProductID: m.burger.ID, Quantity: qty}},
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return order
}
