package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/core/ports"
)

// --- Mock FloodRepository ---

type mockFloodRepo struct {
	listFn   func(ctx context.Context) ([]domain.FloodLine, error)
	addFn    func(ctx context.Context, coords domain.Polyline) (domain.FloodLine, error)
	removeFn func(ctx context.Context, id string) (bool, error)
}

func (m *mockFloodRepo) List(ctx context.Context) ([]domain.FloodLine, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockFloodRepo) Add(ctx context.Context, coords domain.Polyline) (domain.FloodLine, error) {
	if m.addFn != nil {
		return m.addFn(ctx, coords)
	}
	return domain.FloodLine{ID: "new", Coordinates: coords}, nil
}

func (m *mockFloodRepo) Remove(ctx context.Context, id string) (bool, error) {
	if m.removeFn != nil {
		return m.removeFn(ctx, id)
	}
	return false, nil
}

// --- Mock RouteSolver ---

type solveCall struct {
	barriers   []domain.Polyline
	credential string
}

type mockSolver struct {
	solveFn func(ctx context.Context, o, d domain.Point, barriers []domain.Polyline, credential string) (*domain.RouteResult, error)
	calls   []solveCall
}

func (m *mockSolver) Solve(ctx context.Context, o, d domain.Point, barriers []domain.Polyline, credential string) (*domain.RouteResult, error) {
	m.calls = append(m.calls, solveCall{barriers: barriers, credential: credential})
	if m.solveFn != nil {
		return m.solveFn(ctx, o, d, barriers, credential)
	}
	return &domain.RouteResult{Directions: []string{}}, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	added   []domain.FloodLine
	removed []string
	err     error
}

func (m *mockPublisher) PublishFloodAdded(ctx context.Context, fl domain.FloodLine) error {
	m.added = append(m.added, fl)
	return m.err
}

func (m *mockPublisher) PublishFloodRemoved(ctx context.Context, id string) error {
	m.removed = append(m.removed, id)
	return m.err
}
