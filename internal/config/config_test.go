package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobot-sh/lobot/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "ec2-user", cfg.RemoteUser)
	assert.Equal(t, "~/lobot", cfg.RemoteBase)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 40, cfg.Poll.Attempts)
	assert.Equal(t, 3, cfg.Poll.TransientRetries)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 8888, cfg.Notebook.LocalPort)
	assert.False(t, cfg.LoadPrices)
	assert.NotEmpty(t, cfg.InstanceTypes)
}

func TestLoadSparseFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lobot.yaml")
	content := "region: eu-west-1\nremote_user: ubuntu\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "ubuntu", cfg.RemoteUser)
	// Everything else falls back to defaults.
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 8888, cfg.Notebook.RemotePort)
}

func TestLoadFullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lobot.yaml")
	content := `region: us-west-2
remote_user: centos
keys_dir: /tmp/keys
notebook:
  local_port: 9999
  remote_port: 8889
poll:
  interval: 5s
  attempts: 10
  transient_retries: 1
connect_timeout: 30s
load_prices: true
instance_types:
  t3.nano: tiny
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "/tmp/keys", cfg.KeysDir)
	assert.Equal(t, 9999, cfg.Notebook.LocalPort)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 10, cfg.Poll.Attempts)
	assert.Equal(t, 1, cfg.Poll.TransientRetries)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.True(t, cfg.LoadPrices)
	assert.Equal(t, "tiny", cfg.InstanceTypes["t3.nano"])
}

func TestLoadKeepsDottedInstanceTypeNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lobot.yaml")
	content := `instance_types:
  t3.medium: general purpose
  c5.xlarge: compute optimized
  r5.large: memory optimized
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Type names contain dots and must survive as flat map keys.
	assert.Equal(t, "general purpose", cfg.InstanceTypes["t3.medium"])
	assert.Equal(t, "compute optimized", cfg.InstanceTypes["c5.xlarge"])
	assert.Equal(t, "memory optimized", cfg.InstanceTypes["r5.large"])
	// A split key would have left a nested map behind; make sure none did.
	for name := range cfg.InstanceTypes {
		assert.Contains(t, name, ".")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lobot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: [unclosed"), 0644))

	_, err := Load(path)
	assert.True(t, errors.IsCode(err, errors.ErrConfig), "got %v", err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty region", func(c *Config) { c.Region = "" }},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }},
		{"zero attempts", func(c *Config) { c.Poll.Attempts = 0 }},
		{"negative retries", func(c *Config) { c.Poll.TransientRetries = -1 }},
		{"bad local port", func(c *Config) { c.Notebook.LocalPort = 0 }},
		{"bad remote port", func(c *Config) { c.Notebook.RemotePort = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := validate(cfg)
			assert.True(t, errors.IsCode(err, errors.ErrConfig), "got %v", err)
		})
	}
}

func TestFindExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFindExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: us-east-1\n"), 0644))

	found, err := Find(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Region = "ap-northeast-1"
	cfg.Notebook.LocalPort = 9000
	cfg.LoadPrices = true

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# lobot configuration")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Region, loaded.Region)
	assert.Equal(t, cfg.Notebook.LocalPort, loaded.Notebook.LocalPort)
	assert.Equal(t, cfg.Poll, loaded.Poll)
	assert.True(t, loaded.LoadPrices)
	assert.Equal(t, cfg.InstanceTypes, loaded.InstanceTypes)
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.KeysDir = filepath.Join(base, "keys")
	cfg.DeployDir = filepath.Join(base, "deploy")
	cfg.FetchDir = filepath.Join(base, "fetch")

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.KeysDir)
	assert.DirExists(t, cfg.DeployDir)
	assert.DirExists(t, cfg.FetchDir)

	// Idempotent on a second run.
	assert.NoError(t, cfg.EnsureDirs())
}
