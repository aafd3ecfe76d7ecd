package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hostwatch/internal/config"
	"hostwatch/internal/logger"
	"hostwatch/internal/registry"
	"hostwatch/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "hostwatch",
		Short: "Track a fleet of hosts: status polling and live interface telemetry",
		Long: `hostwatch keeps a local list of hosts, polls each host's health and
status endpoints and streams per-interface bitrates over a WebSocket.

Examples:
  hostwatch hosts add encoder-1:8080
  hostwatch hosts list --filter online
  hostwatch watch
  hostwatch serve --listen 127.0.0.1:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("HOSTWATCH_CONFIG"), "path to YAML config")

	root.AddCommand(
		newInitCmd(opts),
		newHostsCmd(opts),
		newSettingsCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newStatsCmd(opts),
		newDoctorCmd(opts),
	)
	return root
}

// app is the state every command shares: config, storage and the registry.
type app struct {
	cfg     config.Config
	storage store.Storage
	reg     *registry.Registry
	log     logger.Logger
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	storage, err := store.Open(cfg.Storage, cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	log := logger.New("")
	reg, err := registry.New(storage, registry.LogNotifier{Log: log})
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("load hosts: %w", err)
	}
	return &app{cfg: cfg, storage: storage, reg: reg, log: log}, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
