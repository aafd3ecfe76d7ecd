package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"hostwatch/internal/api"
	"hostwatch/internal/dashboard"
	"hostwatch/internal/model"
	"hostwatch/internal/monitor"
	"hostwatch/internal/store"
	"hostwatch/internal/telemetry"
	"hostwatch/internal/view"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor the visible hosts and print every state change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := model.ParseFilterState(filter)
			if err != nil {
				return err
			}
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			show, err := store.ShowDetailedStats(a.storage)
			if err != nil {
				return err
			}
			printer := &changePrinter{w: cmd.OutOrStdout(), detailed: show, last: map[string]string{}}

			v := view.New(a.reg)
			defer v.Close()
			v.SetFilter(state)

			m := a.startMonitor(ctx, v, printer.print)
			defer m.Close()

			wait := a.follow(ctx, show, printer.setDetailed)
			defer func() {
				cancel()
				wait()
			}()

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all|online|offline")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Monitor hosts and serve the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if listen == "" {
				listen = a.cfg.Listen
			}

			ctx, cancel := signalContext()
			defer cancel()

			v := view.New(a.reg)
			defer v.Close()

			// Bursts of host changes collapse into one broadcast.
			changes := make(chan struct{}, 1)
			notify := func() {
				select {
				case changes <- struct{}{}:
				default:
				}
			}
			m := a.startMonitor(ctx, v, func([]monitor.HostState) { notify() })
			defer m.Close()

			show, err := store.ShowDetailedStats(a.storage)
			if err != nil {
				a.log.Warn("read settings: %v", err)
			}
			wait := a.follow(ctx, show, func(bool) { notify() })
			defer func() {
				cancel()
				wait()
			}()

			srv := dashboard.NewServer(dashboard.Deps{
				Hosts:   a.reg,
				Filter:  v,
				States:  m,
				Storage: a.storage,
				Log:     a.log,
			})

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case <-changes:
						srv.Broadcast()
					}
				}
			}()
			defer wg.Wait()

			err = srv.ListenAndServe(ctx, listen)
			cancel()
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}

func (a *app) startMonitor(ctx context.Context, v *view.View, onChange func([]monitor.HostState)) *monitor.Monitor {
	return monitor.New(ctx, v, monitor.Options{
		Prober:           api.NewClient(a.cfg.RequestTimeout()),
		Sink:             a.reg,
		PollInterval:     a.cfg.PollInterval(),
		RetryDelay:       a.cfg.RetryDelay(),
		ReconnectDelay:   a.cfg.ReconnectDelay(),
		Dialer:           telemetry.WebSocketDialer{},
		TelemetryLogPath: a.cfg.TelemetryLogPath,
		Log:              a.log,
		OnChange:         onChange,
	})
}

// follow brings host list and detailed-stats changes written by other
// processes into this one until ctx is done. onSettings receives each new
// toggle value. The returned function waits for both loops to exit.
func (a *app) follow(ctx context.Context, show bool, onSettings func(bool)) (wait func()) {
	interval := a.cfg.PollInterval()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.reg.Follow(ctx, interval, a.log)
	}()
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			next, err := store.ShowDetailedStats(a.storage)
			if err != nil {
				a.log.Warn("reload settings: %v", err)
				continue
			}
			if next != show {
				show = next
				onSettings(show)
			}
		}
	}()
	return wg.Wait
}

// changePrinter prints one line per host whenever its summary changes.
type changePrinter struct {
	w        io.Writer
	detailed bool

	mu   sync.Mutex
	last map[string]string
}

func (p *changePrinter) setDetailed(show bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detailed = show
}

func (p *changePrinter) print(states []monitor.HostState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(states))
	for _, st := range states {
		name := st.Record.Hostname
		seen[name] = true
		line := describe(st, p.detailed)
		if p.last[name] == line {
			continue
		}
		p.last[name] = line
		fmt.Fprintf(p.w, "%s %s\n", name, line)
	}
	for name := range p.last {
		if !seen[name] {
			delete(p.last, name)
			fmt.Fprintf(p.w, "%s hidden\n", name)
		}
	}
}

func describe(st monitor.HostState, detailed bool) string {
	var b strings.Builder

	rec := st.Record
	if rec.Online() {
		fmt.Fprintf(&b, "online ip=%s", rec.IP)
	} else {
		b.WriteString("offline")
	}

	switch {
	case st.Status.HealthLoading:
		b.WriteString(" health=...")
	case st.Status.Healthy:
		b.WriteString(" health=ok")
	default:
		b.WriteString(" health=down")
	}
	if st.Status.StatusError != "" {
		fmt.Fprintf(&b, " status_error=%q", st.Status.StatusError)
	}

	fmt.Fprintf(&b, " stream=%s", st.Telemetry.State)
	if st.Telemetry.Error != "" {
		fmt.Fprintf(&b, " stream_error=%q", st.Telemetry.Error)
	}
	if detailed {
		for _, name := range st.Telemetry.Sample.Interfaces() {
			r := st.Telemetry.Sample[name]
			fmt.Fprintf(&b, " %s=%.0f/%.0fkbps", name, r.InKbps, r.OutKbps)
		}
	}
	return b.String()
}
