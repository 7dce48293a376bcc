package main

import (
	"fmt"
	"time"

	"meatengine/internal/config"

	"github.com/spf13/cobra"
)

// openWindowCmd does by hand what the scheduler does every week, for
// backfills and for deployments that run it from an external cron.
func openWindowCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "open-window",
		Short: "Create the pending weekly count cycles for every store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			t := time.Now()
			if at != "" {
				parsed, err := time.ParseInLocation("2006-01-02 15:04", at, cfg.Location)
				if err != nil {
					return fmt.Errorf("invalid --at, want \"2006-01-02 15:04\": %w", err)
				}
				t = parsed
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			w, n, err := a.gate.OpenWindow(cmd.Context(), t)
			if err != nil {
				return err
			}
			fmt.Printf("window %s (cutoff %s): %d stores pending\n", w.Key, w.Cutoff.Format(time.RFC3339), n)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Local time inside the window (default: now)")
	return cmd
}
