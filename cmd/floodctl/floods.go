package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/core/usecases"
	"github.com/samirrijal/floodroute/internal/pkg/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flood lines",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:   "add <lon,lat>...",
	Short: "Store a flood line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove"},
	Short:   "Remove flood lines by id",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRemove,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
}

func floodService(cmd *cobra.Command) (*usecases.FloodService, func(), error) {
	cfg, err := config.Load("floodctl")
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	events, closeEvents := openPublisher(cfg)
	closeFn := func() {
		closeEvents()
		closeStore()
	}
	return usecases.NewFloodService(store, events), closeFn, nil
}

func runList(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := floodService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	floods, err := svc.List(cmd.Context())
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(floods)
	}
	if len(floods) == 0 {
		fmt.Println("No flood lines stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPOINTS\tROUTABLE\tSTART")
	for _, fl := range floods {
		start := "-"
		if len(fl.Coordinates) > 0 {
			start = formatCoordinate(fl.Coordinates[0])
		}
		fmt.Fprintf(w, "%s\t%d\t%t\t%s\n", fl.ID, len(fl.Coordinates), fl.Coordinates.Routable(), start)
	}
	return w.Flush()
}

func runAdd(cmd *cobra.Command, args []string) error {
	line, err := parsePolyline(args)
	if err != nil {
		return err
	}

	svc, closeFn, err := floodService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	fl, err := svc.Add(cmd.Context(), line)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(fl)
	}
	fmt.Println(fl.ID)
	if !line.Routable() {
		fmt.Fprintln(os.Stderr, "note: lines with fewer than two points are stored but ignored when routing")
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := floodService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	missing := 0
	for _, id := range args {
		ok, err := svc.Remove(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: not found\n", id)
			missing++
			continue
		}
		fmt.Printf("removed %s\n", id)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d ids not found", missing, len(args))
	}
	return nil
}

// parseCoordinate parses "lon,lat".
func parseCoordinate(s string) (domain.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.Coordinate{}, fmt.Errorf("%q: expected lon,lat", s)
	}
	var c domain.Coordinate
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Coordinate{}, fmt.Errorf("%q: %w", s, err)
		}
		c[i] = f
	}
	return c, nil
}

func parsePolyline(args []string) (domain.Polyline, error) {
	line := make(domain.Polyline, 0, len(args))
	for _, a := range args {
		c, err := parseCoordinate(a)
		if err != nil {
			return nil, err
		}
		line = append(line, c)
	}
	return line, nil
}

func formatCoordinate(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Lon(), 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat(), 'f', -1, 64)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
