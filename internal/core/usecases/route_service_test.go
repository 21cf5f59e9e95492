package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/samirrijal/floodroute/internal/adapters/arcgis"
	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/core/usecases"
)

var (
	origin      = domain.Point{X: -122.4, Y: 37.78}
	destination = domain.Point{X: -122.41, Y: 37.79}
)

func storedFloods(lines ...domain.Polyline) *mockFloodRepo {
	return &mockFloodRepo{
		listFn: func(ctx context.Context) ([]domain.FloodLine, error) {
			out := make([]domain.FloodLine, len(lines))
			for i, l := range lines {
				out[i] = domain.FloodLine{ID: string(rune('a' + i)), Coordinates: l}
			}
			return out, nil
		},
	}
}

func authPredicate() func(error) bool {
	return arcgis.AuthErrorPredicate(arcgis.DefaultAuthErrorCodes, arcgis.DefaultAuthErrorMarkers)
}

func TestRouteService_MergesCallerLinesFirst(t *testing.T) {
	caller := domain.Polyline{{1, 1}, {2, 2}}
	stored := domain.Polyline{{3, 3}, {4, 4}}
	solver := &mockSolver{}

	svc := usecases.NewRouteService(storedFloods(stored), solver, nil, usecases.RouteOptions{Credential: "key"})
	_, err := svc.ComputeRoute(context.Background(), domain.RouteQuery{
		Origin: origin, Destination: destination, FloodLines: []domain.Polyline{caller},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(solver.calls) != 1 {
		t.Fatalf("expected 1 solve, got %d", len(solver.calls))
	}
	want := []domain.Polyline{caller, stored}
	if !reflect.DeepEqual(solver.calls[0].barriers, want) {
		t.Errorf("barriers = %v, want %v", solver.calls[0].barriers, want)
	}
	if solver.calls[0].credential != "key" {
		t.Errorf("expected credential to be passed, got %q", solver.calls[0].credential)
	}
}

func TestRouteService_AuthErrorFallsBackToDirect(t *testing.T) {
	solver := &mockSolver{
		solveFn: func(ctx context.Context, o, d domain.Point, b []domain.Polyline, credential string) (*domain.RouteResult, error) {
			if credential != "" {
				return nil, &domain.SolverError{StatusCode: 200, Code: 498, Message: "Invalid Token"}
			}
			return arcgis.DirectRoute(o, d), nil
		},
	}

	svc := usecases.NewRouteService(storedFloods(), solver, nil, usecases.RouteOptions{
		Credential:          "expired",
		FallbackOnAuthError: true,
		IsAuthError:         authPredicate(),
	})
	res, err := svc.ComputeRoute(context.Background(), domain.RouteQuery{Origin: origin, Destination: destination})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(solver.calls) != 2 || solver.calls[1].credential != "" {
		t.Fatalf("expected retry without credential, calls = %+v", solver.calls)
	}
	if len(res.Directions) != 1 || res.Directions[0] != arcgis.MockDirection {
		t.Errorf("expected mocked direction, got %v", res.Directions)
	}
}

func TestRouteService_AuthErrorWithoutFallback(t *testing.T) {
	authErr := &domain.SolverError{Code: 498, Message: "Invalid Token"}
	solver := &mockSolver{
		solveFn: func(ctx context.Context, o, d domain.Point, b []domain.Polyline, credential string) (*domain.RouteResult, error) {
			return nil, authErr
		},
	}

	svc := usecases.NewRouteService(storedFloods(), solver, nil, usecases.RouteOptions{
		Credential:  "expired",
		IsAuthError: authPredicate(),
	})
	_, err := svc.ComputeRoute(context.Background(), domain.RouteQuery{Origin: origin, Destination: destination})
	if !errors.Is(err, authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if len(solver.calls) != 1 {
		t.Errorf("expected no retry, got %d calls", len(solver.calls))
	}
}

func TestRouteService_NonAuthErrorIsTerminal(t *testing.T) {
	solver := &mockSolver{
		solveFn: func(ctx context.Context, o, d domain.Point, b []domain.Polyline, credential string) (*domain.RouteResult, error) {
			return nil, &domain.SolverError{StatusCode: 200, Code: 400, Message: "Unable to complete operation"}
		},
	}

	svc := usecases.NewRouteService(storedFloods(), solver, nil, usecases.RouteOptions{
		Credential:          "key",
		FallbackOnAuthError: true,
		IsAuthError:         authPredicate(),
	})
	_, err := svc.ComputeRoute(context.Background(), domain.RouteQuery{Origin: origin, Destination: destination})

	var se *domain.SolverError
	if !errors.As(err, &se) || se.Code != 400 {
		t.Fatalf("expected solver error 400, got %v", err)
	}
	if len(solver.calls) != 1 {
		t.Errorf("expected a single call, got %d", len(solver.calls))
	}
}

func TestRouteService_InvalidInput(t *testing.T) {
	solver := &mockSolver{}
	svc := usecases.NewRouteService(storedFloods(), solver, nil, usecases.RouteOptions{})

	queries := []domain.RouteQuery{
		{Origin: domain.Point{X: math.NaN(), Y: 0}, Destination: destination},
		{Origin: origin, Destination: domain.Point{X: 0, Y: math.Inf(1)}},
		{Origin: origin, Destination: destination, FloodLines: []domain.Polyline{{{0, math.NaN()}}}},
	}
	for _, q := range queries {
		if _, err := svc.ComputeRoute(context.Background(), q); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %+v, got %v", q, err)
		}
	}
	if len(solver.calls) != 0 {
		t.Errorf("solver should not be called, got %d calls", len(solver.calls))
	}
}

func TestRouteService_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	repo := &mockFloodRepo{listFn: func(ctx context.Context) ([]domain.FloodLine, error) { return nil, boom }}
	svc := usecases.NewRouteService(repo, &mockSolver{}, nil, usecases.RouteOptions{})

	if _, err := svc.ComputeRoute(context.Background(), domain.RouteQuery{Origin: origin, Destination: destination}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestRouteService_CacheHitSkipsSolver(t *testing.T) {
	cache := newMockCache()
	solver := &mockSolver{
		solveFn: func(ctx context.Context, o, d domain.Point, b []domain.Polyline, credential string) (*domain.RouteResult, error) {
			return &domain.RouteResult{
				Route:      json.RawMessage(`{"paths":[[[0,0],[1,1]]]}`),
				DistanceKm: 1.2, DurationMin: 3.4,
				Directions: []string{"Go"},
			}, nil
		},
	}
	svc := usecases.NewRouteService(storedFloods(), solver, cache, usecases.RouteOptions{Credential: "key", CacheTTL: 60})
	q := domain.RouteQuery{Origin: origin, Destination: destination}

	first, err := svc.ComputeRoute(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.ComputeRoute(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(solver.calls) != 1 {
		t.Errorf("expected cached second call, solver called %d times", len(solver.calls))
	}
	if second.DistanceKm != first.DistanceKm || string(second.Route) != string(first.Route) {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
	for _, ttl := range cache.ttls {
		if ttl != 60 {
			t.Errorf("expected ttl 60, got %d", ttl)
		}
	}
}

func TestRouteService_CacheKeyTracksBarriers(t *testing.T) {
	cache := newMockCache()
	solver := &mockSolver{}
	lines := []domain.Polyline{{{1, 1}, {2, 2}}}
	repo := &mockFloodRepo{
		listFn: func(ctx context.Context) ([]domain.FloodLine, error) {
			out := make([]domain.FloodLine, len(lines))
			for i, l := range lines {
				out[i] = domain.FloodLine{ID: "x", Coordinates: l}
			}
			return out, nil
		},
	}
	svc := usecases.NewRouteService(repo, solver, cache, usecases.RouteOptions{Credential: "key", CacheTTL: 60})
	q := domain.RouteQuery{Origin: origin, Destination: destination}

	_, _ = svc.ComputeRoute(context.Background(), q)
	lines = append(lines, domain.Polyline{{5, 5}, {6, 6}})
	_, _ = svc.ComputeRoute(context.Background(), q)

	if len(solver.calls) != 2 {
		t.Errorf("expected a new solve after the flood set changed, got %d calls", len(solver.calls))
	}
}

func TestRouteService_NoCacheWithoutCredential(t *testing.T) {
	cache := newMockCache()
	solver := &mockSolver{}
	svc := usecases.NewRouteService(storedFloods(), solver, cache, usecases.RouteOptions{CacheTTL: 60})

	_, _ = svc.ComputeRoute(context.Background(), domain.RouteQuery{Origin: origin, Destination: destination})
	if len(cache.data) != 0 {
		t.Errorf("expected direct estimates not to be cached, got %d entries", len(cache.data))
	}
	if svc.CredentialConfigured() {
		t.Error("expected no credential")
	}
}
