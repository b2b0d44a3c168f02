package routes

import (
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/config"
	"github.com/EduardoDePatta/coupon-generator/internal/coupon"
	"github.com/EduardoDePatta/coupon-generator/internal/metrics"
	"github.com/EduardoDePatta/coupon-generator/internal/middleware"
	"github.com/EduardoDePatta/coupon-generator/internal/qr"
	"github.com/EduardoDePatta/coupon-generator/internal/store"
	"github.com/EduardoDePatta/coupon-generator/internal/token"
)

// Setup configures all API routes
func Setup(app *fiber.App, cfg *config.Config, logger *logrus.Logger, middlewareManager *middleware.Manager, dynamoClient *dynamodb.Client) {
	dynamoStore := store.NewDynamoStore(dynamoClient, cfg.DynamoDB.CouponsTableName, cfg.DynamoDB.UsersTableName, logger)
	codec := token.NewCodec(cfg.Token.HMACSecret)
	renderer := qr.NewPNGRenderer()
	couponService := coupon.NewService(dynamoStore, codec, renderer, cfg.Coupon.RedeemBaseURL, cfg.Token.TTL, logger)

	// Create route handlers
	authHandler := NewAuthHandler(dynamoStore, middlewareManager.Credentials, logger)
	couponHandler := NewCouponHandler(couponService, couponService, couponService, logger)

	// Health check endpoints (no auth required)
	app.Get("/healthz", healthCheck)
	app.Get("/readyz", readinessCheck(middlewareManager))
	app.Get("/version", versionHandler)

	// Metrics endpoint (no auth required)
	app.Get(cfg.Observability.MetricsPath, metrics.PrometheusHandler())

	// API routes with middleware
	api := app.Group("/api/v1")

	// Apply global middleware to API routes
	api.Use(metrics.HTTPMetricsMiddleware())
	api.Use(middlewareManager.ErrorLogger.Handle())
	api.Use(middlewareManager.Idempotency.Handle())
	api.Use(middlewareManager.Idempotency.ResponseCapture())

	// Auth routes (public endpoints - no auth required)
	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/register", authHandler.Register)

	// Coupon issuance requires a session; lookup and redemption stay public
	// so the QR-code link works without a login.
	api.Post("/coupons", middlewareManager.Auth.RequireSession(), couponHandler.Issue)
	api.Get("/coupons", couponHandler.Retrieve)
	api.Post("/redeem", couponHandler.Redeem)

	// 404 handler
	app.Use(notFoundHandler)
}

// healthCheck returns the health status of the service
func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "coupon-generator",
	})
}

// readinessCheck checks if the service is ready to accept traffic
func readinessCheck(middlewareManager *middleware.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		redisHealthCheck := middleware.RedisHealthCheck(middlewareManager.RedisClient, middlewareManager.Logger)
		if err := redisHealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    "redis unavailable",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
			})
		}

		return c.JSON(fiber.Map{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "coupon-generator",
		})
	}
}

// versionHandler returns version information
func versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "coupon-generator",
		"version": getVersion(),
		"commit":  getCommit(),
	})
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     "NOT_FOUND",
			"message":  "The requested resource was not found",
			"path":     c.Path(),
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

func getVersion() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}

func getCommit() string {
	if v := os.Getenv("GIT_COMMIT"); v != "" {
		return v
	}
	return "unknown"
}
