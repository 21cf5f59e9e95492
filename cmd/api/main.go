package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/floodroute/internal/adapters/arcgis"
	"github.com/samirrijal/floodroute/internal/adapters/floodfile"
	"github.com/samirrijal/floodroute/internal/adapters/http"
	natsadapter "github.com/samirrijal/floodroute/internal/adapters/nats"
	"github.com/samirrijal/floodroute/internal/adapters/postgres"
	"github.com/samirrijal/floodroute/internal/adapters/valkey"
	"github.com/samirrijal/floodroute/internal/core/ports"
	"github.com/samirrijal/floodroute/internal/core/usecases"
	"github.com/samirrijal/floodroute/internal/pkg/config"
	"github.com/samirrijal/floodroute/internal/pkg/logging"
	"github.com/samirrijal/floodroute/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("floodroute-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Flood store
	var (
		floods ports.FloodRepository
		db     *postgres.DB
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		floods = postgres.NewFloodRepo(db)
	default:
		floods = floodfile.New(cfg.Store.Path, cfg.Store.Persist)
	}
	slog.Info("flood store ready", "driver", cfg.Store.Driver, "persist", cfg.Store.Persist)

	// Cache
	var (
		cache      *valkey.Cache
		routeCache ports.CacheService
	)
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, route caching disabled", "error", err)
		} else {
			defer cache.Close()
			routeCache = cache
		}
	}

	// NATS
	var (
		events   ports.EventPublisher
		natsConn *nats.Conn
	)
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, flood events disabled", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}

		// Raw NATS connection for WebSocket relay
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	// Route solver
	solver := arcgis.NewClient(
		arcgis.WithSolveURL(cfg.ArcGIS.SolveURL),
		arcgis.WithRateLimit(cfg.ArcGIS.RateLimit, cfg.ArcGIS.RateBurst),
	)
	if cfg.ArcGIS.APIKey == "" {
		slog.Info("no routing credential configured, serving direct estimates")
	} else {
		slog.Info("routing credential configured", "key", logging.Redact(cfg.ArcGIS.APIKey))
	}

	// Use cases
	floodSvc := usecases.NewFloodService(floods, events)
	if n, err := floodSvc.SyncMetrics(ctx); err != nil {
		slog.Warn("flood count unavailable", "error", err)
	} else {
		slog.Info("flood lines loaded", "count", n)
	}
	routeSvc := usecases.NewRouteService(floods, solver, routeCache, usecases.RouteOptions{
		Credential:          cfg.ArcGIS.APIKey,
		FallbackOnAuthError: cfg.ArcGIS.FallbackToMockOnAuthError,
		IsAuthError:         arcgis.AuthErrorPredicate(cfg.ArcGIS.AuthErrorCodes, cfg.ArcGIS.AuthErrorMarkers),
		CacheTTL:            cfg.Valkey.RouteTTL,
	})

	deps := &http.Dependencies{
		Floods: floodSvc,
		Routes: routeSvc,
		Client: http.ClientConfig{
			APIKey:       cfg.ArcGIS.APIKey,
			ExposeAPIKey: cfg.ArcGIS.ExposeAPIKey,
		},
		NATS:  natsConn,
		DB:    db,
		Cache: cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "FloodRoute API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins(),
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
