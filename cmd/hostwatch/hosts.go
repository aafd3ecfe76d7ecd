package main

import (
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"hostwatch/internal/addrutil"
	"hostwatch/internal/model"
	"hostwatch/internal/view"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cell         = lipgloss.NewStyle().PaddingRight(2)
)

func newHostsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage tracked hosts",
	}

	add := &cobra.Command{
		Use:   "add <hostname>",
		Short: "Start tracking a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname, err := addrutil.Normalize(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.reg.Add(hostname)
		},
	}

	remove := &cobra.Command{
		Use:     "remove <hostname>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a host",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.reg.Remove(addrutil.Key(args[0]))
		},
	}

	var filter, match string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked hosts with their last known status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := model.ParseFilterState(filter)
			if err != nil {
				return err
			}
			if match != "" && !doublestar.ValidatePattern(match) {
				return fmt.Errorf("invalid --match pattern %q", match)
			}
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			printHosts(cmd.OutOrStdout(), matchHosts(view.Apply(a.reg.Hosts(), state), match))
			return nil
		},
	}
	list.Flags().StringVar(&filter, "filter", "all", "all|online|offline")
	list.Flags().StringVar(&match, "match", "", "only hostnames matching this glob, e.g. 'enc-*'")

	cmd.AddCommand(add, remove, list)
	return cmd
}

func printHosts(w io.Writer, hosts []model.HostRecord) {
	if len(hosts) == 0 {
		fmt.Fprintln(w, "no hosts")
		return
	}

	rows := [][]string{{"HOSTNAME", "STATE", "IP", "NETWORK WATCHER", "SRT STREAMER"}}
	for _, h := range hosts {
		state := "offline"
		if h.Online() {
			state = "online"
		}
		rows = append(rows, []string{h.Hostname, state, dash(h.IP), dash(h.NetworkWatcher), dash(h.SRTStreamer)})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, col := range row {
			widths[i] = max(widths[i], lipgloss.Width(col))
		}
	}

	for n, row := range rows {
		cols := make([]string, len(row))
		for i, col := range row {
			style := cell.Width(widths[i] + 2)
			switch {
			case n == 0:
				style = style.Inherit(headerStyle)
			case i == 1 && col == "online":
				style = style.Inherit(onlineStyle)
			case i == 1:
				style = style.Inherit(offlineStyle)
			}
			cols[i] = style.Render(col)
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
}

// matchHosts keeps the hosts whose name matches pattern. An empty pattern
// keeps everything.
func matchHosts(hosts []model.HostRecord, pattern string) []model.HostRecord {
	if pattern == "" {
		return hosts
	}
	out := hosts[:0:0]
	for _, h := range hosts {
		if ok, _ := doublestar.Match(pattern, h.Hostname); ok {
			out = append(out, h)
		}
	}
	return out
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
