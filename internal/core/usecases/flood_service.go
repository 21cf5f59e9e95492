package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/core/ports"
	"github.com/samirrijal/floodroute/internal/pkg/metrics"
)

// FloodService manages stored flood lines and announces changes.
type FloodService struct {
	floods ports.FloodRepository
	events ports.EventPublisher
}

// NewFloodService creates a new FloodService. events may be nil.
func NewFloodService(floods ports.FloodRepository, events ports.EventPublisher) *FloodService {
	return &FloodService{floods: floods, events: events}
}

// List returns every stored flood line.
func (s *FloodService) List(ctx context.Context) ([]domain.FloodLine, error) {
	floods, err := s.floods.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list floods: %w", err)
	}
	metrics.FloodLines.Set(float64(len(floods)))
	return floods, nil
}

// SyncMetrics sets the flood line gauge from the repository. Call it once
// the store is loaded so later Inc/Dec start from the real count.
func (s *FloodService) SyncMetrics(ctx context.Context) (int, error) {
	floods, err := s.floods.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("count floods: %w", err)
	}
	metrics.FloodLines.Set(float64(len(floods)))
	return len(floods), nil
}

// Add stores a new flood line. Lines shorter than two points are accepted
// and kept, they are only skipped when routing.
func (s *FloodService) Add(ctx context.Context, coordinates domain.Polyline) (domain.FloodLine, error) {
	if err := coordinates.Validate(); err != nil {
		return domain.FloodLine{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	fl, err := s.floods.Add(ctx, coordinates)
	if err != nil {
		return domain.FloodLine{}, fmt.Errorf("add flood: %w", err)
	}
	metrics.FloodLines.Inc()
	metrics.FloodMutations.WithLabelValues("add").Inc()

	if s.events != nil {
		if err := s.events.PublishFloodAdded(ctx, fl); err != nil {
			slog.Warn("publish flood added failed", "id", fl.ID, "error", err)
		}
	}
	return fl, nil
}

// Remove deletes a flood line. Unknown ids report false without error.
func (s *FloodService) Remove(ctx context.Context, id string) (bool, error) {
	removed, err := s.floods.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("remove flood %s: %w", id, err)
	}
	if !removed {
		return false, nil
	}
	metrics.FloodLines.Dec()
	metrics.FloodMutations.WithLabelValues("remove").Inc()

	if s.events != nil {
		if err := s.events.PublishFloodRemoved(ctx, id); err != nil {
			slog.Warn("publish flood removed failed", "id", id, "error", err)
		}
	}
	return true, nil
}
