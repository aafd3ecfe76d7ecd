package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hostwatch/internal/store"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change display preferences",
	}

	detailed := &cobra.Command{
		Use:       "detailed-stats [on|off]",
		Short:     "Show or set whether per-interface rates are displayed",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				var show bool
				switch args[0] {
				case "on", "true":
					show = true
				case "off", "false":
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
				if err := store.SetShowDetailedStats(a.storage, show); err != nil {
					return err
				}
			}

			show, err := store.ShowDetailedStats(a.storage)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "detailed-stats: %s\n", onOff(show))
			return nil
		},
	}

	cmd.AddCommand(detailed)
	return cmd
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
