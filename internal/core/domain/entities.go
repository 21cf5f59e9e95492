package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FloodLine is a stored flood-affected polyline.
type FloodLine struct {
	ID          string   `json:"id"`
	Coordinates Polyline `json:"coordinates"`
}

// RouteQuery is one routing request.
type RouteQuery struct {
	Origin      Point      `json:"origin"`
	Destination Point      `json:"destination"`
	FloodLines  []Polyline `json:"flood_lines,omitempty"`
}

// RouteResult is the solved (or estimated) route.
// Route holds the solver geometry verbatim, e.g. {"paths": [[[x,y],...]]}.
type RouteResult struct {
	Route       json.RawMessage `json:"route"`
	DistanceKm  float64         `json:"distanceKm"`
	DurationMin float64         `json:"durationMin"`
	Directions  []string        `json:"directions"`
}

// SolverError is returned by a RouteSolver when the upstream service
// rejects or fails a request.
type SolverError struct {
	// StatusCode is the HTTP status of the upstream response, 0 if none was received.
	StatusCode int
	// Code is the error code reported inside the upstream JSON body, 0 if absent.
	Code    int
	Message string
	// Details carries the raw upstream error payload when one was returned.
	Details json.RawMessage
	Err     error
}

func (e *SolverError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	} else if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.Write(e.Details)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SolverError) Unwrap() error { return e.Err }

// Flood event types carried on the message bus.
const (
	FloodEventAdded   = "added"
	FloodEventRemoved = "removed"
)

// FloodEvent announces a flood store mutation.
type FloodEvent struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Coordinates Polyline  `json:"coordinates,omitempty"`
	At          time.Time `json:"at"`
}
