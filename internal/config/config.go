package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir           = ".hostwatch"
	DefaultStorage           = StorageFile
	DefaultPollIntervalSec   = 5
	DefaultRetryDelaySec     = 1
	DefaultReconnectDelaySec = 1
	DefaultRequestTimeoutSec = 10
	DefaultListen            = "127.0.0.1:8080"
	DefaultStatsWindow       = "5m"
	DefaultSTUNServer        = "stun.l.google.com:19302"

	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config holds the settings of a hostwatch process.
type Config struct {
	DataDir           string   `yaml:"data_dir"`
	Storage           string   `yaml:"storage"`
	PollIntervalSec   int      `yaml:"poll_interval_sec"`
	RetryDelaySec     int      `yaml:"retry_delay_sec"`
	ReconnectDelaySec int      `yaml:"reconnect_delay_sec"`
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
	Listen            string   `yaml:"listen"`
	TelemetryLogPath  string   `yaml:"telemetry_log_path"`
	STUNServers       []string `yaml:"stun_servers"`
}

// Load reads and parses a YAML config file. A missing file yields defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch cfg.Storage {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageFile, StorageSQLite, cfg.Storage)
	}
	if cfg.PollIntervalSec < 0 || cfg.RetryDelaySec < 0 || cfg.ReconnectDelaySec < 0 || cfg.RequestTimeoutSec < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.Storage == "" {
		cfg.Storage = DefaultStorage
	}
	if cfg.PollIntervalSec == 0 {
		cfg.PollIntervalSec = DefaultPollIntervalSec
	}
	if cfg.RetryDelaySec == 0 {
		cfg.RetryDelaySec = DefaultRetryDelaySec
	}
	if cfg.ReconnectDelaySec == 0 {
		cfg.ReconnectDelaySec = DefaultReconnectDelaySec
	}
	if cfg.RequestTimeoutSec == 0 {
		cfg.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	// An explicit empty list turns the STUN check off.
	if cfg.STUNServers == nil {
		cfg.STUNServers = []string{DefaultSTUNServer}
	}
}

// StatePath is where the local storage backend keeps its data.
func (c Config) StatePath() string {
	if c.Storage == StorageSQLite {
		return filepath.Join(c.DataDir, "state.db")
	}
	return filepath.Join(c.DataDir, "state.yaml")
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySec) * time.Second
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySec) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
