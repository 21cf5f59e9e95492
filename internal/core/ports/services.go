package ports

import (
	"context"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

// RouteSolver computes a route between two points that avoids barrier lines.
// An empty credential selects the offline straight-line estimate.
// Failures are reported as *domain.SolverError; implementations never retry.
type RouteSolver interface {
	Solve(ctx context.Context, origin, destination domain.Point, barriers []domain.Polyline, credential string) (*domain.RouteResult, error)
}

// EventPublisher publishes flood store changes to a message broker.
type EventPublisher interface {
	PublishFloodAdded(ctx context.Context, flood domain.FloodLine) error
	PublishFloodRemoved(ctx context.Context, id string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
