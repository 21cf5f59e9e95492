package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/floodroute/internal/adapters/postgres"
	"github.com/samirrijal/floodroute/internal/adapters/valkey"
	"github.com/samirrijal/floodroute/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// NATS, DB and Cache are optional and may be nil.
type Dependencies struct {
	Floods *usecases.FloodService
	Routes *usecases.RouteService
	Client ClientConfig
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  *valkey.Cache
}

// ClientConfig is what the browser map client may learn about the server.
type ClientConfig struct {
	APIKey       string
	ExposeAPIKey bool
}
