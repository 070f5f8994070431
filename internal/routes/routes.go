package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/handlers"
	"github.com/example/marketplace/internal/middleware"
	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
)

// Services holds the business services behind the HTTP layer.
type Services struct {
	DB            *gorm.DB
	Metrics       *services.Metrics
	Auth          *services.AuthService
	Orders        *services.OrderService
	Notifications *services.NotificationService
	Catalog       *services.CatalogService
	Profiles      *services.ProfileService
	Admin         *services.AdminService
}

// NewServices builds every service from configuration.
func NewServices(db *gorm.DB, cfg *config.Config, clk clock.Clock, metrics *services.Metrics) *Services {
	notifier := services.NewNotificationService(db, clk, metrics)

	// Only relay to Telegram when both the bot token and chat are configured.
	var relay services.AdminRelay
	if telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat); telegram.Enabled() {
		relay = telegram
	}

	return &Services{
		DB:            db,
		Metrics:       metrics,
		Notifications: notifier,
		Auth: services.NewAuthService(db, services.AuthConfig{
			Secret:           cfg.JWTSecret,
			TokenTTL:         cfg.TokenExpires,
			SessionRetention: cfg.SessionRetention,
		}, clk, metrics),
		Orders: services.NewOrderService(db, services.OrderConfig{
			ServiceFeeRate: cfg.ServiceFeeRate,
			DeliveryFee:    cfg.DeliveryFee,
		}, clk, notifier, relay, metrics),
		Catalog:  services.NewCatalogService(db),
		Profiles: services.NewProfileService(db),
		Admin:    services.NewAdminService(db, clk, notifier),
	}
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, svc *Services) {
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Profiles)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog)
	productHandler := handlers.NewProductHandler(svc.Catalog)
	orderHandler := handlers.NewOrderHandler(svc.Orders)
	profileHandler := handlers.NewProfileHandler(svc.Profiles)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Auth, svc.Profiles)
	healthHandler := handlers.NewHealthHandler(svc.DB)

	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(svc.Metrics.Registry, promhttp.HandlerOpts{})))

	requireAuth := middleware.AuthMiddleware(svc.Auth)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	credentials := limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts, try again later")
		},
	})
	auth.Post("/register", credentials, authHandler.Register)
	auth.Post("/login", credentials, authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)
	auth.Post("/logout", requireAuth, authHandler.Logout)
	auth.Post("/extend", requireAuth, authHandler.Extend)
	auth.Post("/change-password", requireAuth, authHandler.ChangePassword)
	auth.Get("/sessions", requireAuth, authHandler.ListSessions)
	auth.Delete("/sessions/:id", requireAuth, authHandler.RevokeSession)

	// Public catalog
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/produits", catalogHandler.ListProducts)
	api.Get("/produits/:id", catalogHandler.GetProduct)
	api.Get("/fournisseurs", catalogHandler.ListSuppliers)
	api.Get("/fournisseurs/:id", catalogHandler.GetSupplier)
	api.Get("/fournisseurs/:id/produits", catalogHandler.ListSupplierProducts)

	// Client
	client := api.Group("/client", requireAuth, middleware.RequireRole(models.RoleClient))
	client.Get("/profile", profileHandler.GetProfile)
	client.Put("/profile", profileHandler.UpdateClientProfile)
	client.Get("/addresses", profileHandler.ListAddresses)
	client.Post("/addresses", profileHandler.CreateAddress)
	client.Put("/addresses/:id", profileHandler.UpdateAddress)
	client.Put("/addresses/:id/primary", profileHandler.SetPrimaryAddress)
	client.Delete("/addresses/:id", profileHandler.DeleteAddress)

	// Orders, scoped per role by the order service
	orders := api.Group("/commandes", requireAuth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Patch("/:id/status", orderHandler.UpdateStatus)
	orders.Patch("/:id/courier", middleware.RequireRole(models.RoleAdmin, models.RoleCourier), orderHandler.AssignCourier)
	orders.Post("/:id/payment/confirm", middleware.RequireRole(models.RoleCourier), orderHandler.ConfirmPayment)

	// Supplier
	supplier := api.Group("/fournisseur", requireAuth, middleware.RequireRole(models.RoleSupplier))
	supplier.Get("/profile", profileHandler.GetProfile)
	supplier.Put("/profile", profileHandler.UpdateSupplierProfile)
	supplier.Patch("/open", profileHandler.SetSupplierOpen)
	supplier.Get("/stats", profileHandler.SupplierStats)
	supplier.Get("/produits", productHandler.ListProducts)
	supplier.Post("/produits", productHandler.CreateProduct)
	supplier.Get("/produits/:id", productHandler.GetProduct)
	supplier.Put("/produits/:id", productHandler.UpdateProduct)
	supplier.Delete("/produits/:id", productHandler.DeleteProduct)
	supplier.Patch("/produits/:id/availability", productHandler.SetAvailability)
	supplier.Patch("/produits/:id/stock", productHandler.AdjustStock)
	supplier.Get("/commandes", orderHandler.ListOrders)
	supplier.Get("/commandes/:id", orderHandler.GetOrder)
	supplier.Patch("/commandes/:id/status", orderHandler.UpdateStatus)

	// Courier
	courier := api.Group("/livreur", requireAuth, middleware.RequireRole(models.RoleCourier))
	courier.Get("/profile", profileHandler.GetProfile)
	courier.Put("/profile", profileHandler.UpdateCourierProfile)
	courier.Patch("/availability", profileHandler.SetCourierAvailability)
	courier.Patch("/location", profileHandler.UpdateCourierLocation)
	courier.Get("/stats", profileHandler.CourierStats)
	courier.Get("/commandes/disponibles", orderHandler.AvailableDeliveries)
	courier.Get("/commandes", orderHandler.ListOrders)
	courier.Post("/commandes/:id/accept", orderHandler.AcceptDelivery)

	// Notifications
	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/", notificationHandler.Poll)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Patch("/read-all", notificationHandler.MarkAllRead)
	notifications.Patch("/:id/read", notificationHandler.MarkRead)
	notifications.Delete("/:id", notificationHandler.Delete)

	// Admin
	admin := api.Group("/admin", requireAuth, middleware.RequireRole(models.RoleAdmin))
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/users", adminHandler.CreateUser)
	admin.Get("/users/:id", adminHandler.GetUser)
	admin.Patch("/users/:id/status", adminHandler.UpdateUserStatus)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/orders", orderHandler.ListOrders)
	admin.Get("/orders/:id", orderHandler.GetOrder)
	admin.Patch("/orders/:id/status", orderHandler.UpdateStatus)
	admin.Patch("/orders/:id/courier", orderHandler.AssignCourier)
	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
	admin.Post("/sessions/cleanup", adminHandler.CleanupSessions)
	admin.Get("/audit-logs", adminHandler.AuditLogs)
}
