package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/core/ports"
	"github.com/samirrijal/floodroute/internal/pkg/metrics"
)

// RouteOptions configures how RouteService talks to the solver.
type RouteOptions struct {
	// Credential is passed to the solver. Empty selects the direct estimate.
	Credential string
	// FallbackOnAuthError retries without a credential when IsAuthError
	// classifies a solver failure as a rejected credential.
	FallbackOnAuthError bool
	IsAuthError         func(error) bool
	// CacheTTL is in seconds. Zero disables caching.
	CacheTTL int
}

// RouteService merges caller and stored flood lines into barriers and
// solves routes around them.
type RouteService struct {
	floods ports.FloodRepository
	solver ports.RouteSolver
	cache  ports.CacheService
	opts   RouteOptions
}

// NewRouteService creates a new RouteService. cache may be nil.
func NewRouteService(floods ports.FloodRepository, solver ports.RouteSolver, cache ports.CacheService, opts RouteOptions) *RouteService {
	return &RouteService{floods: floods, solver: solver, cache: cache, opts: opts}
}

// CredentialConfigured reports whether real solves are attempted.
func (s *RouteService) CredentialConfigured() bool {
	return s.opts.Credential != ""
}

// ComputeRoute solves q. Caller-supplied lines come first in the barrier
// list, followed by a snapshot of the stored flood lines.
func (s *RouteService) ComputeRoute(ctx context.Context, q domain.RouteQuery) (*domain.RouteResult, error) {
	if !q.Origin.Valid() {
		return nil, fmt.Errorf("%w: origin must be finite", domain.ErrInvalidInput)
	}
	if !q.Destination.Valid() {
		return nil, fmt.Errorf("%w: destination must be finite", domain.ErrInvalidInput)
	}
	for i, line := range q.FloodLines {
		if err := line.Validate(); err != nil {
			return nil, fmt.Errorf("%w: flood_lines[%d]: %v", domain.ErrInvalidInput, i, err)
		}
	}

	stored, err := s.floods.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list floods: %w", err)
	}

	barriers := make([]domain.Polyline, 0, len(q.FloodLines)+len(stored))
	barriers = append(barriers, q.FloodLines...)
	for _, fl := range stored {
		barriers = append(barriers, fl.Coordinates)
	}

	return s.solve(ctx, q.Origin, q.Destination, barriers)
}

func (s *RouteService) solve(ctx context.Context, origin, destination domain.Point, barriers []domain.Polyline) (*domain.RouteResult, error) {
	credential := s.opts.Credential

	var cacheKey string
	if s.cacheable(credential) {
		cacheKey = routeCacheKey(origin, destination, barriers)
		if res, ok := s.cached(ctx, cacheKey); ok {
			return res, nil
		}
	}

	res, err := s.solver.Solve(ctx, origin, destination, barriers, credential)
	if err != nil {
		if credential != "" && s.shouldFallback(err) {
			slog.WarnContext(ctx, "route solver rejected credential, using direct estimate", "error", err)
			metrics.AuthFallbacks.Inc()
			return s.solver.Solve(ctx, origin, destination, barriers, "")
		}
		return nil, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.opts.CacheTTL); err != nil {
				slog.DebugContext(ctx, "route cache write failed", "error", err)
			}
		}
	}
	return res, nil
}

func (s *RouteService) shouldFallback(err error) bool {
	return s.opts.FallbackOnAuthError && s.opts.IsAuthError != nil && s.opts.IsAuthError(err)
}

// Only real solves are cached; the direct estimate is cheaper than a lookup.
func (s *RouteService) cacheable(credential string) bool {
	return s.cache != nil && s.opts.CacheTTL > 0 && credential != ""
}

func (s *RouteService) cached(ctx context.Context, key string) (*domain.RouteResult, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			slog.DebugContext(ctx, "route cache read failed", "error", err)
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
		return nil, false
	}
	var res domain.RouteResult
	if err := json.Unmarshal(data, &res); err != nil {
		metrics.CacheMisses.WithLabelValues("route").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("route").Inc()
	return &res, true
}

// routeCacheKey hashes everything that influences the solver request.
func routeCacheKey(origin, destination domain.Point, barriers []domain.Polyline) string {
	routable := make([]domain.Polyline, 0, len(barriers))
	for _, b := range barriers {
		if b.Routable() {
			routable = append(routable, b)
		}
	}
	data, _ := json.Marshal(struct {
		O domain.Point      `json:"o"`
		D domain.Point      `json:"d"`
		B []domain.Polyline `json:"b"`
	}{origin, destination, routable})
	sum := sha256.Sum256(data)
	return "route:" + hex.EncodeToString(sum[:])
}
