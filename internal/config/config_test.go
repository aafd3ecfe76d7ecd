package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DataDir: "/tmp/hw"}
	ApplyDefaults(&cfg)

	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, time.Second, cfg.RetryDelay())
	assert.Equal(t, time.Second, cfg.ReconnectDelay())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, []string{DefaultSTUNServer}, cfg.STUNServers)
	assert.Equal(t, filepath.Join("/tmp/hw", "state.yaml"), cfg.StatePath())
}

func TestLoad_EmptySTUNListStaysEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hostwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/hw\nstun_servers: []\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg.STUNServers)
	assert.Empty(t, cfg.STUNServers)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPollIntervalSec, cfg.PollIntervalSec)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_ParsesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hostwatch.yaml")
	data := "data_dir: /srv/hw\nstorage: sqlite\npoll_interval_sec: 7\nstun_servers:\n  - stun.example.org:3478\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/hw", cfg.DataDir)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, 7, cfg.PollIntervalSec)
	assert.Equal(t, []string{"stun.example.org:3478"}, cfg.STUNServers)
	assert.Equal(t, filepath.Join("/srv/hw", "state.db"), cfg.StatePath())
	require.NoError(t, Validate(cfg))
}

func TestValidate_RejectsUnknownStorage(t *testing.T) {
	t.Parallel()

	cfg := Config{DataDir: "/tmp/hw", Storage: "redis"}
	ApplyDefaults(&cfg)
	assert.Error(t, Validate(cfg))
}

func TestSave_Writes0600(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "hostwatch.yaml")
	require.NoError(t, Save(path, Config{DataDir: "/tmp/hw"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hw", cfg.DataDir)
}
