package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"hostwatch/internal/api"
	"hostwatch/internal/netdiag"
	"hostwatch/internal/telemetry"
)

const doctorTimeout = 5 * time.Second

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Probe every tracked host once and report reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir: %s\n", a.cfg.DataDir)
			fmt.Fprintf(out, "storage: %s (%s)\n", a.cfg.Storage, a.cfg.StatePath())

			hosts := a.reg.Hosts()
			if len(hosts) == 0 {
				fmt.Fprintln(out, "no hosts")
			}
			client := api.NewClient(doctorTimeout)
			failed := 0
			for _, h := range hosts {
				hctx, hcancel := context.WithTimeout(ctx, 3*doctorTimeout)
				report := netdiag.CheckHost(hctx, client, telemetry.WebSocketDialer{}, h.Hostname)
				hcancel()
				printReport(out, report)
				if !report.OK() {
					failed++
				}
			}

			if len(a.cfg.STUNServers) > 0 {
				res, err := netdiag.PublicAddress(ctx, a.cfg.STUNServers, doctorTimeout)
				if err != nil {
					fmt.Fprintf(out, "public address: %s\n", failStyle.Render(err.Error()))
				} else {
					fmt.Fprintf(out, "public address: %s nat=%s\n", res.Addr, res.NATType)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d hosts failed checks", failed, len(hosts))
			}
			return nil
		},
	}
}

func printReport(w io.Writer, report netdiag.HostReport) {
	fmt.Fprintln(w, headerStyle.Render(report.Hostname))
	for _, c := range report.Checks {
		mark := onlineStyle.Render("ok  ")
		if !c.OK {
			mark = failStyle.Render("FAIL")
		}
		fmt.Fprintf(w, "  %s %-7s %6s  %s\n", mark, c.Name, c.Elapsed.Round(time.Millisecond), c.Detail)
	}
}
