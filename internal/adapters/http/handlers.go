package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

type pointBody struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p *pointBody) point() (domain.Point, bool) {
	if p == nil || p.X == nil || p.Y == nil {
		return domain.Point{}, false
	}
	return domain.Point{X: *p.X, Y: *p.Y}, true
}

type floodBody struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type routeBody struct {
	Origin      *pointBody    `json:"origin"`
	Destination *pointBody    `json:"destination"`
	FloodLines  [][][]float64 `json:"flood_lines"`
}

type routeResponse struct {
	domain.RouteResult
	EncodedPolyline string `json:"encodedPolyline,omitempty"`
}

type configResponse struct {
	ArcGISAPIKey *string `json:"arcgisApiKey"`
	Exposed      bool    `json:"exposed"`
}

// toPolyline converts raw JSON coordinate lists, requiring [x, y] pairs.
func toPolyline(raw [][]float64) (domain.Polyline, error) {
	line := make(domain.Polyline, len(raw))
	for i, c := range raw {
		if len(c) != 2 {
			return nil, fmt.Errorf("coordinate %d must be an [x, y] pair", i)
		}
		line[i] = domain.Coordinate{c[0], c[1]}
	}
	return line, nil
}

// ListFloodsHandler returns every stored flood line in insertion order.
func ListFloodsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		floods, err := deps.Floods.List(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if floods == nil {
			floods = []domain.FloodLine{}
		}
		return c.JSON(floods)
	}
}

// AddFloodHandler stores a new flood line and returns it with its id.
func AddFloodHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body floodBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if body.Coordinates == nil {
			return errBadRequest(c, "coordinates is required")
		}
		line, err := toPolyline(body.Coordinates)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		fl, err := deps.Floods.Add(c.UserContext(), line)
		if errors.Is(err, domain.ErrInvalidInput) {
			return errBadRequest(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fl)
	}
}

// DeleteFloodHandler removes a flood line by id.
func DeleteFloodHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := deps.Floods.Remove(c.UserContext(), c.Params("id"))
		if err != nil {
			return errInternal(c, err.Error())
		}
		if !ok {
			return errNotFound(c, "Not found")
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// RouteHandler solves a route that avoids stored and request-supplied flood lines.
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body routeBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		origin, ok := body.Origin.point()
		if !ok {
			return errBadRequest(c, "origin with x and y is required")
		}
		destination, ok := body.Destination.point()
		if !ok {
			return errBadRequest(c, "destination with x and y is required")
		}

		q := domain.RouteQuery{Origin: origin, Destination: destination}
		for i, raw := range body.FloodLines {
			line, err := toPolyline(raw)
			if err != nil {
				return errBadRequest(c, fmt.Sprintf("flood_lines[%d]: %v", i, err))
			}
			q.FloodLines = append(q.FloodLines, line)
		}

		res, err := deps.Routes.ComputeRoute(c.UserContext(), q)
		if err != nil {
			var se *domain.SolverError
			switch {
			case errors.Is(err, domain.ErrInvalidInput):
				return errBadRequest(c, err.Error())
			case errors.As(err, &se):
				return errBadGateway(c, "Routing failed: "+se.Error())
			default:
				return errInternal(c, err.Error())
			}
		}

		if res.Directions == nil {
			res.Directions = []string{}
		}
		return c.JSON(routeResponse{
			RouteResult:     *res,
			EncodedPolyline: encodeFirstPath(res.Route),
		})
	}
}

// ConfigHandler tells the map client whether it may use the routing key directly.
func ConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := configResponse{Exposed: deps.Client.ExposeAPIKey}
		if deps.Client.ExposeAPIKey && deps.Client.APIKey != "" {
			key := deps.Client.APIKey
			resp.ArcGISAPIKey = &key
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(resp)
	}
}

// FloodsGeoJSONHandler returns the flood store as a GeoJSON FeatureCollection.
func FloodsGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		floods, err := deps.Floods.List(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		data, err := floodsFeatureCollection(floods).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}
