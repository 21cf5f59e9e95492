package arcgis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

type solveResponse struct {
	Error      json.RawMessage `json:"error"`
	Routes     *featureList    `json:"routes"`
	Directions json.RawMessage `json:"directions"`
}

type featureList struct {
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Attributes map[string]any  `json:"attributes"`
}

type upstreamError struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
}

var emptyGeometry = json.RawMessage(`{}`)

// parseSolveResponse maps a successful HTTP response body onto a RouteResult.
// An error object in the payload is reported even when the HTTP status is 200.
func parseSolveResponse(status int, body []byte) (*domain.RouteResult, error) {
	var payload solveResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.SolverError{StatusCode: status, Message: "malformed route response", Err: err}
	}

	if present(payload.Error) {
		return nil, solverErrorFrom(status, payload.Error)
	}

	if payload.Routes == nil || len(payload.Routes.Features) == 0 {
		return nil, &domain.SolverError{StatusCode: status, Message: "no route returned"}
	}
	route := payload.Routes.Features[0]

	result := &domain.RouteResult{
		Route:      emptyGeometry,
		Directions: []string{},
	}
	if present(route.Geometry) {
		result.Route = route.Geometry
	}

	steps, err := directionFeatures(payload.Directions)
	if err != nil {
		return nil, &domain.SolverError{StatusCode: status, Message: "malformed route response", Err: err}
	}
	for _, f := range steps {
		if text, ok := f.Attributes["text"].(string); ok && text != "" {
			result.Directions = append(result.Directions, text)
		}
		result.DistanceKm += number(f.Attributes["length"])
		result.DurationMin += number(f.Attributes["time"])
	}

	if len(result.Directions) == 0 {
		if v, ok := route.Attributes["Total_Kilometers"].(float64); ok {
			result.DistanceKm = v
		}
		if v, ok := route.Attributes["Total_TravelTime"].(float64); ok {
			result.DurationMin = v
		}
	}

	return result, nil
}

// directionFeatures accepts both a single directions object and the list of
// per-route direction sets the service returns for multi-route solves.
// A directions payload that decodes as neither is an error.
func directionFeatures(raw json.RawMessage) ([]rawFeature, error) {
	if !present(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var sets []featureList
		if err := json.Unmarshal(trimmed, &sets); err != nil {
			return nil, fmt.Errorf("decode directions: %w", err)
		}
		var out []rawFeature
		for _, s := range sets {
			out = append(out, s.Features...)
		}
		return out, nil
	}
	var single featureList
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("decode directions: %w", err)
	}
	return single.Features, nil
}

func solverErrorFrom(status int, raw json.RawMessage) *domain.SolverError {
	se := &domain.SolverError{StatusCode: status, Message: "route service error", Details: raw}

	var ue upstreamError
	if err := json.Unmarshal(raw, &ue); err != nil {
		var msg string
		if json.Unmarshal(raw, &msg) == nil && msg != "" {
			se.Message = msg
		}
		return se
	}
	if ue.Message != "" {
		se.Message = ue.Message
	}
	if n, err := ue.Code.Int64(); err == nil {
		se.Code = int(n)
	}
	return se
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// number returns v as a float when it is a JSON number and zero otherwise.
func number(v any) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}
