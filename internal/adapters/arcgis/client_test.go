package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

var (
	sfOrigin      = domain.Point{X: -122.4, Y: 37.78}
	sfDestination = domain.Point{X: -122.41, Y: 37.79}
)

type failingDoer struct{ t *testing.T }

func (d failingDoer) Do(*http.Request) (*http.Response, error) {
	d.t.Fatal("unexpected network call")
	return nil, errors.New("unreachable")
}

// solveServer serves body for every request and hands the parsed form to inspect.
func solveServer(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const twoStepResponse = `{
  "routes": {"features": [
    {"attributes": {"Total_Kilometers": 9.9, "Total_TravelTime": 9.9},
     "geometry": {"paths": [[[-122.4, 37.78], [-122.405, 37.785], [-122.41, 37.79]]]}},
    {"attributes": {}, "geometry": {"paths": [[[0, 0], [1, 1]]]}}
  ]},
  "directions": {"features": [
    {"attributes": {"text": "Start at A", "length": 0.6, "time": 1.7}},
    {"attributes": {"text": "Finish at B", "length": 0.6, "time": 1.7}}
  ]}
}`

func TestSolve_NoCredentialReturnsDirectEstimate(t *testing.T) {
	c := NewClient(WithHTTPDoer(failingDoer{t}))

	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "")
	require.NoError(t, err)

	assert.JSONEq(t, `{"paths":[[[-122.4,37.78],[-122.41,37.79]]]}`, string(res.Route))
	assert.Greater(t, res.DistanceKm, 0.0)
	assert.InDelta(t, 1.4, res.DistanceKm, 0.05)
	assert.InDelta(t, res.DistanceKm/50*60, res.DurationMin, 1e-9)
	assert.Equal(t, []string{MockDirection}, res.Directions)
}

func TestSolve_WhitespaceCredentialIsEmpty(t *testing.T) {
	c := NewClient(WithHTTPDoer(failingDoer{t}))

	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "  ")
	require.NoError(t, err)
	assert.Equal(t, []string{MockDirection}, res.Directions)
}

func TestSolve_SumsDirectionSteps(t *testing.T) {
	srv := solveServer(t, http.StatusOK, twoStepResponse, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "json", r.PostForm.Get("f"))
		assert.Equal(t, "true", r.PostForm.Get("returnRoutes"))
		assert.Equal(t, "true", r.PostForm.Get("returnDirections"))
		assert.Equal(t, "4326", r.PostForm.Get("outSR"))
		assert.True(t, json.Valid([]byte(r.PostForm.Get("stops"))))
		assert.True(t, json.Valid([]byte(r.PostForm.Get("polylineBarriers"))))
	})
	c := NewClient(WithSolveURL(srv.URL))

	barriers := []domain.Polyline{{{-122.405, 37.78}, {-122.405, 37.79}}}
	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, barriers, "secret")
	require.NoError(t, err)

	assert.InDelta(t, 1.2, res.DistanceKm, 1e-9)
	assert.InDelta(t, 3.4, res.DurationMin, 1e-9)
	assert.Equal(t, []string{"Start at A", "Finish at B"}, res.Directions)
	assert.JSONEq(t, `{"paths": [[[-122.4, 37.78], [-122.405, 37.785], [-122.41, 37.79]]]}`, string(res.Route))
}

func TestSolve_OmitsBarriersWhenNoneRoutable(t *testing.T) {
	srv := solveServer(t, http.StatusOK, twoStepResponse, func(r *http.Request) {
		_, ok := r.PostForm["polylineBarriers"]
		assert.False(t, ok, "polylineBarriers must be omitted")
	})
	c := NewClient(WithSolveURL(srv.URL))

	_, err := c.Solve(context.Background(), sfOrigin, sfDestination, []domain.Polyline{{{1, 1}}}, "secret")
	require.NoError(t, err)
}

func TestSolve_FallsBackToRouteTotals(t *testing.T) {
	body := `{
	  "routes": {"features": [{"attributes": {"Total_Kilometers": 2.5, "Total_TravelTime": 4.25},
	                          "geometry": {"paths": [[[0, 0], [1, 1]]]}}]},
	  "directions": {"features": []}
	}`
	c := NewClient(WithSolveURL(solveServer(t, http.StatusOK, body, nil).URL))

	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.DistanceKm)
	assert.Equal(t, 4.25, res.DurationMin)
	assert.Empty(t, res.Directions)
	assert.NotNil(t, res.Directions)
}

func TestSolve_NonNumericAttributesCountAsZero(t *testing.T) {
	body := `{
	  "routes": {"features": [{"attributes": {}, "geometry": {"paths": []}}]},
	  "directions": {"features": [
	    {"attributes": {"text": "Go", "length": "far", "time": null}},
	    {"attributes": {"text": "Stop", "length": 1.5, "time": true}}
	  ]}
	}`
	c := NewClient(WithSolveURL(solveServer(t, http.StatusOK, body, nil).URL))

	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.DistanceKm)
	assert.Equal(t, 0.0, res.DurationMin)
	assert.Equal(t, []string{"Go", "Stop"}, res.Directions)
}

func TestSolve_DirectionSetsList(t *testing.T) {
	body := `{
	  "routes": {"features": [{"geometry": {"paths": [[[0, 0], [1, 1]]]}}]},
	  "directions": [{"routeId": 1, "features": [
	    {"attributes": {"text": "One", "length": 1, "time": 2}},
	    {"attributes": {"text": "Two", "length": 3, "time": 4}}
	  ]}]
	}`
	c := NewClient(WithSolveURL(solveServer(t, http.StatusOK, body, nil).URL))

	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.DistanceKm)
	assert.Equal(t, 6.0, res.DurationMin)
	assert.Equal(t, []string{"One", "Two"}, res.Directions)
}

func TestSolve_MissingGeometryIsEmptyObject(t *testing.T) {
	body := `{"routes": {"features": [{"attributes": {"Total_Kilometers": 1}}]}}`
	c := NewClient(WithSolveURL(solveServer(t, http.StatusOK, body, nil).URL))

	res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(res.Route))
}

func TestSolve_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantCode   int
		wantMsg    string
		auth       bool
	}{
		{
			name:       "upstream error object",
			status:     http.StatusOK,
			body:       `{"error": {"code": 498, "message": "Invalid Token", "details": []}}`,
			wantStatus: 200,
			wantCode:   498,
			wantMsg:    "Invalid Token",
			auth:       true,
		},
		{
			name:       "upstream error string code",
			status:     http.StatusOK,
			body:       `{"error": {"code": "499", "message": "Token Required"}}`,
			wantStatus: 200,
			wantCode:   499,
			wantMsg:    "Token Required",
			auth:       true,
		},
		{
			name:       "empty routes",
			status:     http.StatusOK,
			body:       `{"routes": {"features": []}}`,
			wantStatus: 200,
			wantMsg:    "no route returned",
		},
		{
			name:       "missing routes",
			status:     http.StatusOK,
			body:       `{}`,
			wantStatus: 200,
			wantMsg:    "no route returned",
		},
		{
			name:       "http status",
			status:     http.StatusBadGateway,
			body:       `oops`,
			wantStatus: 502,
			wantMsg:    "route service returned HTTP 502",
		},
		{
			name:       "http unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error": "denied"}`,
			wantStatus: 401,
			wantMsg:    "route service returned HTTP 401",
			auth:       true,
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       `{"routes": `,
			wantStatus: 200,
			wantMsg:    "malformed route response",
		},
		{
			name:   "malformed direction step",
			status: http.StatusOK,
			body: `{"routes": {"features": [{"geometry": {"paths": [[[-122.4, 37.78], [-122.41, 37.79]]]},
				"attributes": {"Total_Kilometers": 9, "Total_TravelTime": 9}}]},
				"directions": [{"features": [
					{"attributes": {"text": "Start", "length": 0.6, "time": 1.7}},
					{"attributes": "garbage"}]}]}`,
			wantStatus: 200,
			wantMsg:    "malformed route response",
		},
		{
			name:   "directions not an object or list",
			status: http.StatusOK,
			body: `{"routes": {"features": [{"geometry": {"paths": [[[-122.4, 37.78], [-122.41, 37.79]]]},
				"attributes": {"Total_Kilometers": 9, "Total_TravelTime": 9}}]},
				"directions": "none"}`,
			wantStatus: 200,
			wantMsg:    "malformed route response",
		},
	}

	isAuth := AuthErrorPredicate(DefaultAuthErrorCodes, DefaultAuthErrorMarkers)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(WithSolveURL(solveServer(t, tt.status, tt.body, nil).URL))

			res, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
			require.Error(t, err)
			assert.Nil(t, res)

			var se *domain.SolverError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStatus, se.StatusCode)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Equal(t, tt.auth, isAuth(err))
		})
	}
}

func TestSolve_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(WithSolveURL(url))
	_, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
	require.Error(t, err)

	var se *domain.SolverError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 0, se.StatusCode)
	assert.NotNil(t, se.Unwrap())
}

func TestSolve_RateLimitHonoursContext(t *testing.T) {
	srv := solveServer(t, http.StatusOK, twoStepResponse, nil)
	c := NewClient(WithSolveURL(srv.URL), WithRateLimit(0.001, 1))

	_, err := c.Solve(context.Background(), sfOrigin, sfDestination, nil, "secret")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Solve(ctx, sfOrigin, sfDestination, nil, "secret")
	require.Error(t, err)
}

func TestAuthErrorPredicate(t *testing.T) {
	pred := AuthErrorPredicate([]int{498}, []string{"Invalid Token"})

	assert.True(t, pred(&domain.SolverError{Code: 498}))
	assert.True(t, pred(&domain.SolverError{StatusCode: 498}))
	assert.True(t, pred(&domain.SolverError{Message: "Invalid Token"}))
	assert.True(t, pred(&domain.SolverError{Message: "bad", Details: json.RawMessage(`{"message":"Invalid Token"}`)}))
	assert.False(t, pred(&domain.SolverError{Code: 400, Message: "Unable to complete operation"}))
	assert.False(t, pred(errors.New("Invalid Token")))
	assert.False(t, pred(nil))

	none := AuthErrorPredicate(nil, nil)
	assert.False(t, none(&domain.SolverError{Code: 498, Message: "Invalid Token"}))
}

func TestDirectRoute_AntipodalIsFinite(t *testing.T) {
	res := DirectRoute(
		domain.Point{X: -155.23028261516512, Y: 47.7949796307083},
		domain.Point{X: 24.769717384834877, Y: -47.7949796307083},
	)
	require.False(t, math.IsNaN(res.DistanceKm))
	require.False(t, math.IsNaN(res.DurationMin))
	assert.InDelta(t, math.Pi*6371, res.DistanceKm, 0.01)

	_, err := json.Marshal(res)
	require.NoError(t, err)
}

func TestDirectRoute_Duration(t *testing.T) {
	res := DirectRoute(domain.Point{X: 0, Y: 0}, domain.Point{X: 0, Y: 1})
	assert.InDelta(t, 111.19, res.DistanceKm, 0.01)
	assert.True(t, math.Abs(res.DurationMin-res.DistanceKm/50*60) < 1e-9)
}
