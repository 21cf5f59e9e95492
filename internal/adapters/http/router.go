package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/floodroute/internal/pkg/metrics"
)

const (
	storeTimeout = 10 * time.Second
	// routeTimeout leaves headroom over the 20s upstream solve timeout.
	routeTimeout = 25 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	app.Use(ConditionalGetMiddleware())
	app.Use(CachingMiddleware())

	api := app.Group("/api")

	// Health & readiness (no timeout)
	api.Get("/health", HealthHandler(deps))
	api.Get("/ready", ReadyHandler(deps))
	api.Get("/config", ConfigHandler(deps))

	api.Get("/floods", timeout.NewWithContext(ListFloodsHandler(deps), storeTimeout))
	api.Get("/floods.geojson", timeout.NewWithContext(FloodsGeoJSONHandler(deps), storeTimeout))
	api.Post("/floods", timeout.NewWithContext(AddFloodHandler(deps), storeTimeout))
	api.Delete("/floods/:id", timeout.NewWithContext(DeleteFloodHandler(deps), storeTimeout))
	api.Post("/route", timeout.NewWithContext(RouteHandler(deps), routeTimeout))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), routeTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// Flood event relay, only when a broker is configured
	if deps.NATS == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
