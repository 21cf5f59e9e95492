package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinatesType := graphql.NewList(graphql.NewList(graphql.Float))

	floodLineType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FloodLine",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"coordinates": &graphql.Field{Type: coordinatesType},
		},
	})

	routeResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteResult",
		Fields: graphql.Fields{
			"distanceKm":      &graphql.Field{Type: graphql.Float},
			"durationMin":     &graphql.Field{Type: graphql.Float},
			"directions":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"route":           &graphql.Field{Type: graphql.String, Description: "Route geometry as JSON"},
			"encodedPolyline": &graphql.Field{Type: graphql.String},
		},
	})

	pointInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PointInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"x": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"y": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	lineArg := graphql.NewList(graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Float))))

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"floods": &graphql.Field{
				Type:        graphql.NewList(floodLineType),
				Description: "List stored flood lines",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					floods, err := deps.Floods.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(floods))
					for i, fl := range floods {
						out[i] = floodToMap(fl)
					}
					return out, nil
				},
			},
			"route": &graphql.Field{
				Type:        routeResultType,
				Description: "Solve a route avoiding stored and supplied flood lines",
				Args: graphql.FieldConfigArgument{
					"origin":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(pointInput)},
					"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(pointInput)},
					"floodLines":  &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(lineArg))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := domain.RouteQuery{
						Origin:      pointArg(p.Args["origin"]),
						Destination: pointArg(p.Args["destination"]),
					}
					if raw, ok := p.Args["floodLines"].([]interface{}); ok {
						for i, l := range raw {
							line, err := polylineArg(l)
							if err != nil {
								return nil, fmt.Errorf("floodLines[%d]: %w", i, err)
							}
							q.FloodLines = append(q.FloodLines, line)
						}
					}

					res, err := deps.Routes.ComputeRoute(p.Context, q)
					if err != nil {
						var se *domain.SolverError
						if errors.As(err, &se) {
							return nil, fmt.Errorf("routing failed: %w", se)
						}
						return nil, err
					}
					directions := res.Directions
					if directions == nil {
						directions = []string{}
					}
					return map[string]interface{}{
						"distanceKm":      res.DistanceKm,
						"durationMin":     res.DurationMin,
						"directions":      directions,
						"route":           string(res.Route),
						"encodedPolyline": encodeFirstPath(res.Route),
					}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addFlood": &graphql.Field{
				Type:        floodLineType,
				Description: "Store a flood line",
				Args: graphql.FieldConfigArgument{
					"coordinates": &graphql.ArgumentConfig{Type: graphql.NewNonNull(lineArg)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					line, err := polylineArg(p.Args["coordinates"])
					if err != nil {
						return nil, err
					}
					fl, err := deps.Floods.Add(p.Context, line)
					if err != nil {
						return nil, err
					}
					return floodToMap(fl), nil
				},
			},
			"removeFlood": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Remove a flood line; false when the id is unknown",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return deps.Floods.Remove(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func floodToMap(fl domain.FloodLine) map[string]interface{} {
	coords := make([][]float64, len(fl.Coordinates))
	for i, c := range fl.Coordinates {
		coords[i] = []float64{c[0], c[1]}
	}
	return map[string]interface{}{"id": fl.ID, "coordinates": coords}
}

func pointArg(v interface{}) domain.Point {
	m, _ := v.(map[string]interface{})
	return domain.Point{X: toFloat(m["x"]), Y: toFloat(m["y"])}
}

func polylineArg(v interface{}) (domain.Polyline, error) {
	raw, _ := v.([]interface{})
	line := make(domain.Polyline, len(raw))
	for i, c := range raw {
		pair, _ := c.([]interface{})
		if len(pair) != 2 {
			return nil, fmt.Errorf("coordinate %d must be an [x, y] pair", i)
		}
		line[i] = domain.Coordinate{toFloat(pair[0]), toFloat(pair[1])}
	}
	return line, nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
