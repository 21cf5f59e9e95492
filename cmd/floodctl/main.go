// Command floodctl manages the flood store and solves routes from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/floodroute/internal/adapters/floodfile"
	natsadapter "github.com/samirrijal/floodroute/internal/adapters/nats"
	"github.com/samirrijal/floodroute/internal/adapters/postgres"
	"github.com/samirrijal/floodroute/internal/core/ports"
	"github.com/samirrijal/floodroute/internal/pkg/config"
	"github.com/samirrijal/floodroute/internal/pkg/logging"
)

var (
	storePathFlag string
	jsonFlag      bool
	verboseFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "floodctl",
	Short: "Manage flood lines and solve flood-aware routes",
	Long: `floodctl works against the same flood store as the API server.

The store driver and database settings come from the usual configuration
(config.yaml, .env, FLOODROUTE_* variables). With the file driver the store
is always persisted so changes survive the command.

Coordinates are written as lon,lat. Put "--" before negative values:
  floodctl add -- -122.40,37.78 -122.41,37.79`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verboseFlag {
			level = "debug"
		}
		slog.SetDefault(logging.New(os.Stderr, level, "text"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePathFlag, "store-path", "", "flood file path (overrides store.path)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "print JSON instead of a table")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging on stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// openStore returns the configured flood repository and a cleanup func.
func openStore(ctx context.Context, cfg *config.Config) (ports.FloodRepository, func(), error) {
	if cfg.Store.Driver == config.StoreDriverPostgres {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		return postgres.NewFloodRepo(db), db.Close, nil
	}

	path := cfg.Store.Path
	if storePathFlag != "" {
		path = storePathFlag
	}
	return floodfile.New(path, true), func() {}, nil
}

// openPublisher connects the flood event publisher when NATS is enabled, so
// CLI mutations reach watchers and the WebSocket relay. A broker that cannot
// be reached only costs the events.
func openPublisher(cfg *config.Config) (ports.EventPublisher, func()) {
	if !cfg.NATS.Enabled {
		return nil, func() {}
	}
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, flood events disabled", "url", cfg.NATS.URL, "error", err)
		return nil, func() {}
	}
	return pub, pub.Close
}
