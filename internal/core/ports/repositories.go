package ports

import (
	"context"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

// FloodRepository persists flood polylines.
type FloodRepository interface {
	// List returns a snapshot of every stored line in insertion order.
	List(ctx context.Context) ([]domain.FloodLine, error)
	// Add stores a line under a freshly generated id. Degenerate lines are accepted.
	Add(ctx context.Context, coordinates domain.Polyline) (domain.FloodLine, error)
	// Remove deletes a line and reports whether it existed.
	Remove(ctx context.Context, id string) (bool, error)
}
