package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/floodroute/internal/adapters/arcgis"
	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/core/usecases"
	"github.com/samirrijal/floodroute/internal/pkg/config"
)

var (
	fromFlag   string
	toFlag     string
	avoidFlags []string
	directFlag bool
)

var routeCmd = &cobra.Command{
	Use:   "route --from lon,lat --to lon,lat",
	Short: "Solve a route that avoids stored flood lines",
	Long: `Solve a route between two points. Stored flood lines are always avoided;
--avoid adds extra lines for this request only, each as space separated
lon,lat pairs:

  floodctl route --from=-122.40,37.78 --to=-122.41,37.79 \
    --avoid "-122.405,37.781 -122.405,37.789"`,
	Args: cobra.NoArgs,
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().StringVar(&fromFlag, "from", "", "origin as lon,lat")
	routeCmd.Flags().StringVar(&toFlag, "to", "", "destination as lon,lat")
	routeCmd.Flags().StringArrayVar(&avoidFlags, "avoid", nil, "extra flood line as space separated lon,lat pairs (repeatable)")
	routeCmd.Flags().BoolVar(&directFlag, "direct", false, "skip the route service and print the straight-line estimate")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	origin, err := parseCoordinate(fromFlag)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	destination, err := parseCoordinate(toFlag)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	q := domain.RouteQuery{
		Origin:      domain.Point{X: origin.Lon(), Y: origin.Lat()},
		Destination: domain.Point{X: destination.Lon(), Y: destination.Lat()},
	}
	for _, a := range avoidFlags {
		line, err := parsePolyline(strings.Fields(a))
		if err != nil {
			return fmt.Errorf("--avoid: %w", err)
		}
		q.FloodLines = append(q.FloodLines, line)
	}

	cfg, err := config.Load("floodctl")
	if err != nil {
		return err
	}
	store, closeFn, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	credential := cfg.ArcGIS.APIKey
	if directFlag {
		credential = ""
	}
	svc := usecases.NewRouteService(store, arcgis.NewClient(arcgis.WithSolveURL(cfg.ArcGIS.SolveURL)), nil, usecases.RouteOptions{
		Credential:          credential,
		FallbackOnAuthError: cfg.ArcGIS.FallbackToMockOnAuthError,
		IsAuthError:         arcgis.AuthErrorPredicate(cfg.ArcGIS.AuthErrorCodes, cfg.ArcGIS.AuthErrorMarkers),
	})

	res, err := svc.ComputeRoute(cmd.Context(), q)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(res)
	}

	fmt.Printf("Distance: %.2f km\n", res.DistanceKm)
	fmt.Printf("Duration: %.1f min\n", res.DurationMin)
	if len(res.Directions) > 0 {
		fmt.Println()
		for i, d := range res.Directions {
			fmt.Printf("%3d. %s\n", i+1, d)
		}
	}
	if paths, err := domain.DecodePaths(res.Route); err == nil && len(paths) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d path(s), %d vertices in the first\n", len(paths), len(paths[0]))
	}
	return nil
}
