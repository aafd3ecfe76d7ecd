package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostwatch/internal/config"
)

func newInitCmd(root *rootOptions) *cobra.Command {
	var (
		cfg   config.Config
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.configPath == "" {
				return errors.New("--config (or HOSTWATCH_CONFIG) is required")
			}
			if _, err := os.Stat(root.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", root.configPath)
			}
			config.ApplyDefaults(&cfg)
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(root.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", root.configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", "", "directory for local state")
	cmd.Flags().StringVar(&cfg.Storage, "storage", config.DefaultStorage, "storage backend: file or sqlite")
	cmd.Flags().StringVar(&cfg.TelemetryLogPath, "telemetry-log", "", "append telemetry samples to this CSV file")
	cmd.Flags().StringSliceVar(&cfg.STUNServers, "stun", nil, "STUN servers used by doctor")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
