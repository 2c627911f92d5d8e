package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/handler"
	"github.com/sodcloud/storefront/internal/middleware"
	"github.com/sodcloud/storefront/internal/repository"
	"github.com/sodcloud/storefront/internal/service"
	"github.com/sodcloud/storefront/internal/telemetry"
	"go.uber.org/zap"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	Repos       *repository.Repositories
	RedisClient *redis.Client
	Gateway     *service.GatewayMonitor
	Receipts    domain.ReceiptStore // nil disables receipt archiving
	Metrics     *telemetry.OrderMetrics
	Logger      *zap.Logger
}

// Services are the long-lived services behind the HTTP surface
type Services struct {
	Carts  *service.CartService
	Promos *service.PromoService
	Orders *service.OrderService
	Tokens *service.TokenService
}

// NewServices wires the services from deps
func NewServices(deps AppDependencies) *Services {
	cartStore := repository.NewRedisCartRepository(repository.NewRedisCacheRepository(deps.RedisClient))

	orders := service.NewOrderService(
		deps.Repos.Orders,
		deps.Repos.Customers,
		deps.Repos.PromoCodes,
		deps.Gateway,
		deps.Logger,
	).WithMetrics(deps.Metrics)
	if deps.Receipts != nil {
		orders.WithReceipts(deps.Receipts)
	}

	return &Services{
		Carts:  service.NewCartService(deps.Repos.Plans, cartStore, deps.Config.Session.CartTTL, deps.Logger),
		Promos: service.NewPromoService(deps.Repos.PromoCodes),
		Orders: orders,
		Tokens: service.NewTokenService(deps.Config.Admin),
	}
}

// NewApp creates and configures the Fiber application
func NewApp(deps AppDependencies, svc *Services) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger

	// Initialize handlers
	catalogHandler := handler.NewCatalogHandler(deps.Repos.Plans, logger)
	cartHandler := handler.NewCartHandler(svc.Carts, svc.Promos, logger)
	orderHandler := handler.NewOrderHandler(svc.Orders, svc.Carts, cfg.Payment, logger)
	paymentHandler := handler.NewPaymentHandler(svc.Orders, deps.Gateway, svc.Carts, cfg.Payment, logger)
	webhookHandler := handler.NewWebhookHandler(svc.Orders, cfg.Payment.WebhookSecret, logger)
	contentHandler := handler.NewContentHandler(deps.Repos.Announcements, deps.Repos.BlogPosts, logger)
	adminHandler := handler.NewAdminHandler(deps.Repos, svc.Orders, svc.Tokens, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SOD Cloud Storefront API",
		ErrorHandler: errorHandler(logger),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Correlation-ID, X-Cart-Session, X-Signature",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "X-Cart-Session, X-Trace-ID, X-Idempotent-Replay",
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "sod-storefront",
			"payment": deps.Gateway.Status().Status,
		})
	})

	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Session.IdempotencyTTL, logger)
	cartSession := middleware.CartSession(cfg.Session.CartTTL, !cfg.Server.IsDevelopment())

	api := app.Group("/api")

	// ===========================================
	// CATALOG & CONTENT (public, read only)
	// ===========================================
	api.Get("/plans", catalogHandler.ListPlans)
	api.Get("/plans/:id", catalogHandler.GetPlan)
	api.Get("/announcements", contentHandler.ListAnnouncements)
	api.Get("/blog", contentHandler.ListPosts)
	api.Get("/blog/:slug", contentHandler.GetPost)
	api.Get("/blog/:slug/related", contentHandler.RelatedPosts)
	api.Post("/promo/validate", cartHandler.ValidatePromo)

	// ===========================================
	// CART - scoped by X-Cart-Session
	// ===========================================
	cart := api.Group("/cart", cartSession)
	cart.Get("/", cartHandler.GetCart)
	cart.Delete("/", cartHandler.ClearCart)
	cart.Get("/totals", cartHandler.Totals)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:planId", cartHandler.UpdateItem)
	cart.Delete("/items/:planId", cartHandler.RemoveItem)

	// ===========================================
	// ORDERS & CHECKOUT
	// ===========================================
	api.Post("/orders", idempotent, orderHandler.CreateOrder)
	api.Get("/orders", orderHandler.ListOrders)
	api.Post("/checkout", cartSession, idempotent, orderHandler.Checkout)

	// ===========================================
	// PAYMENT
	// ===========================================
	payment := api.Group("/payment")
	payment.Post("/checkout", idempotent, paymentHandler.Checkout)
	payment.Post("/authorize", cartSession, idempotent, paymentHandler.Authorize)
	payment.Post("/cancel", idempotent, paymentHandler.Cancel)
	payment.Post("/notify", webhookHandler.Notify)
	payment.Get("/status", paymentHandler.Status)
	payment.Post("/status/retry", paymentHandler.RetryStatus)
	payment.Post("/hash", paymentHandler.Hash)
	payment.Get("/checkout", paymentHandler.EndpointStatus("checkout", "checkout"))
	payment.Get("/authorize", paymentHandler.EndpointStatus("authorize", "authorize"))
	payment.Get("/notify", paymentHandler.EndpointStatus("notification", "notify"))
	payment.Get("/hash", paymentHandler.EndpointStatus("payment", "hash"))

	// ===========================================
	// ADMIN API - /api/admin/* (requires 'admin' role)
	// ===========================================
	api.Post("/admin/login", adminHandler.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.VerifyAdminToken(cfg.Admin.JWTSecret))
	admin.Use(middleware.AuthorizeRole(domain.RoleAdmin))

	admin.Get("/overview", adminHandler.GetOverview)

	adminPlans := admin.Group("/plans")
	adminPlans.Get("/", adminHandler.ListPlans)
	adminPlans.Post("/", adminHandler.CreatePlan)
	adminPlans.Put("/:id", adminHandler.UpdatePlan)
	adminPlans.Delete("/:id", adminHandler.DeletePlan)

	adminPromos := admin.Group("/promo-codes")
	adminPromos.Get("/", adminHandler.ListPromoCodes)
	adminPromos.Post("/", adminHandler.CreatePromoCode)
	adminPromos.Put("/:id", adminHandler.UpdatePromoCode)
	adminPromos.Delete("/:id", adminHandler.DeletePromoCode)

	adminAnnouncements := admin.Group("/announcements")
	adminAnnouncements.Get("/", adminHandler.ListAnnouncements)
	adminAnnouncements.Post("/", adminHandler.CreateAnnouncement)
	adminAnnouncements.Put("/:id", adminHandler.UpdateAnnouncement)
	adminAnnouncements.Delete("/:id", adminHandler.DeleteAnnouncement)

	adminPosts := admin.Group("/blog-posts")
	adminPosts.Get("/", adminHandler.ListBlogPosts)
	adminPosts.Post("/", adminHandler.CreateBlogPost)
	adminPosts.Put("/:id", adminHandler.UpdateBlogPost)
	adminPosts.Delete("/:id", adminHandler.DeleteBlogPost)

	adminUsers := admin.Group("/users")
	adminUsers.Get("/", adminHandler.ListUsers)
	adminUsers.Post("/", adminHandler.CreateUser)
	adminUsers.Put("/:id", adminHandler.UpdateUser)
	adminUsers.Delete("/:id", adminHandler.DeleteUser)

	adminOrders := admin.Group("/orders")
	adminOrders.Get("/", adminHandler.ListOrders)
	adminOrders.Get("/:id", adminHandler.GetOrder)
	adminOrders.Post("/:id/status", adminHandler.SetOrderStatus)

	return app
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			message = "Internal server error"
		}
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
