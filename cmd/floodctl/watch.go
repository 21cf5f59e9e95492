package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	natsadapter "github.com/samirrijal/floodroute/internal/adapters/nats"
	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/pkg/config"
)

var durableFlag string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print flood store changes as they are published on NATS",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&durableFlag, "durable", "", "durable consumer name; resumes where the last watch stopped")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("floodctl")
	if err != nil {
		return err
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.SubscribeFloodEvents(cmd.Context(), durableFlag, func(_ context.Context, ev domain.FloodEvent) error {
		if jsonFlag {
			return printJSON(ev)
		}
		fmt.Println(formatEvent(ev))
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("watching %s on %s (ctrl-c to stop)\n", natsadapter.SubjectFloodAll, cfg.NATS.URL)
	<-cmd.Context().Done()
	return nil
}

func formatEvent(ev domain.FloodEvent) string {
	line := fmt.Sprintf("%s  %-7s  %s", ev.At.Format(time.RFC3339), ev.Type, ev.ID)
	if ev.Type == domain.FloodEventAdded {
		line += fmt.Sprintf("  (%d points)", len(ev.Coordinates))
	}
	return line
}
