package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/pkg/geospatial"
	"github.com/samirrijal/floodroute/internal/pkg/metrics"
)

// DefaultSolveURL is the ArcGIS Platform world routing service.
const DefaultSolveURL = "https://route-api.arcgis.com/arcgis/rest/services/World/Route/NAServer/Route_World/solve"

// MockDirection is the single direction returned by the offline estimate.
const MockDirection = "Mocked direct path (no API key)"

const (
	requestTimeout  = 20 * time.Second
	maxResponseSize = 10 << 20
	tracerName      = "github.com/samirrijal/floodroute/internal/adapters/arcgis"
)

// HTTPDoer is the subset of *http.Client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.RouteSolver against the ArcGIS route service.
type Client struct {
	solveURL string
	http     HTTPDoer
	limiter  *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithSolveURL overrides the solve endpoint.
func WithSolveURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.solveURL = u
		}
	}
}

// WithHTTPDoer replaces the HTTP client, mostly for tests.
func WithHTTPDoer(d HTTPDoer) Option {
	return func(c *Client) { c.http = d }
}

// WithRateLimit caps outbound solve requests per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a route solver client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		solveURL: DefaultSolveURL,
		http:     &http.Client{Timeout: requestTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Solve computes a route from origin to destination that avoids barriers.
// With an empty credential no request is made and a straight-line estimate
// is returned instead.
func (c *Client) Solve(ctx context.Context, origin, destination domain.Point, barriers []domain.Polyline, credential string) (*domain.RouteResult, error) {
	if strings.TrimSpace(credential) == "" {
		metrics.RouteSolves.WithLabelValues("mock").Inc()
		return DirectRoute(origin, destination), nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "arcgis.solve")
	defer span.End()
	span.SetAttributes(attribute.Int("arcgis.barriers", len(barriers)))

	start := time.Now()
	result, err := c.solve(ctx, origin, destination, barriers, credential)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RouteSolves.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RouteSolves.WithLabelValues("ok").Inc()
	return result, nil
}

func (c *Client) solve(ctx context.Context, origin, destination domain.Point, barriers []domain.Polyline, credential string) (*domain.RouteResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.SolverError{Message: "route request not sent", Err: err}
		}
	}

	form, err := solveForm(origin, destination, barriers)
	if err != nil {
		return nil, &domain.SolverError{Message: "failed to encode route request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.solveURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.SolverError{Message: "failed to create route request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.SolverError{Message: "route request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &domain.SolverError{StatusCode: resp.StatusCode, Message: "failed to read route response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &domain.SolverError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("route service returned HTTP %d", resp.StatusCode),
		}
		if json.Valid(body) {
			se.Details = body
		}
		return nil, se
	}

	return parseSolveResponse(resp.StatusCode, body)
}

func solveForm(origin, destination domain.Point, barriers []domain.Polyline) (url.Values, error) {
	stops, err := json.Marshal(StopsFeatureSet(origin, destination))
	if err != nil {
		return nil, fmt.Errorf("marshal stops: %w", err)
	}

	form := url.Values{}
	form.Set("f", "json")
	form.Set("returnRoutes", "true")
	form.Set("returnDirections", "true")
	form.Set("outSR", strconv.Itoa(domain.WKID))
	form.Set("stops", string(stops))

	if fs, ok := BarriersFeatureSet(barriers); ok {
		data, err := json.Marshal(fs)
		if err != nil {
			return nil, fmt.Errorf("marshal barriers: %w", err)
		}
		form.Set("polylineBarriers", string(data))
	}
	return form, nil
}

// DirectRoute is the straight-line estimate used when no credential is available.
func DirectRoute(origin, destination domain.Point) *domain.RouteResult {
	km := geospatial.HaversineKm(origin.Y, origin.X, destination.Y, destination.X)
	return &domain.RouteResult{
		Route:       domain.PathGeometry(domain.Polyline{origin.Coordinate(), destination.Coordinate()}),
		DistanceKm:  km,
		DurationMin: geospatial.EstimateMinutes(km, geospatial.AssumedSpeedKmh),
		Directions:  []string{MockDirection},
	}
}
