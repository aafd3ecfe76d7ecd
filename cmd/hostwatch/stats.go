package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hostwatch/internal/config"
	"hostwatch/internal/metrics"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		window time.Duration
		path   string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the telemetry log per host and interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.TelemetryLogPath
			}
			if path == "" {
				return errors.New("telemetry log path required (telemetry_log_path or --path)")
			}

			items, err := metrics.ReadCSV(path)
			if err != nil {
				return err
			}

			cutoff := time.Now().UTC().Add(-window)
			summaries := metrics.Summarize(items, cutoff)
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "no samples in window")
				return nil
			}

			for _, s := range summaries {
				fmt.Fprintf(out, "%s %s samples=%d from=%s to=%s\n", s.Hostname, s.Interface, s.Count, s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
				fmt.Fprintf(out, "  in  avg=%.2f p95=%.2f min=%.2f max=%.2f kbps\n", s.AvgInKbps, s.P95InKbps, s.MinInKbps, s.MaxInKbps)
				fmt.Fprintf(out, "  out avg=%.2f p95=%.2f max=%.2f kbps\n", s.AvgOutKbps, s.P95OutKbps, s.MaxOutKbps)
			}
			return nil
		},
	}
	defaultWindow, _ := time.ParseDuration(config.DefaultStatsWindow)
	cmd.Flags().DurationVar(&window, "window", defaultWindow, "time window")
	cmd.Flags().StringVar(&path, "path", "", "telemetry CSV path override")
	return cmd
}
