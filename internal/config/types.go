// Package config loads and saves the .lobot.yaml configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
const CurrentConfigVersion = 1

// RemoteUsers are the login users of the common image families, in
// the order they're offered for selection.
var RemoteUsers = []string{"ec2-user", "ubuntu", "centos", "admin"}

// Config represents the complete .lobot.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Region is the working region.
	Region string `yaml:"region" mapstructure:"region"`

	// RemoteUser is the SSH login user on instances.
	RemoteUser string `yaml:"remote_user" mapstructure:"remote_user"`

	// KeysDir holds per-key-pair .pem files.
	KeysDir string `yaml:"keys_dir" mapstructure:"keys_dir"`

	// DeployDir is the local directory pushed to instances.
	DeployDir string `yaml:"deploy_dir" mapstructure:"deploy_dir"`

	// FetchDir is the local directory remote results are pulled into.
	FetchDir string `yaml:"fetch_dir" mapstructure:"fetch_dir"`

	// RemoteBase is the working directory on instances.
	RemoteBase string `yaml:"remote_base" mapstructure:"remote_base"`

	// Notebook holds tunnel port settings.
	Notebook NotebookConfig `yaml:"notebook" mapstructure:"notebook"`

	// Poll controls convergence waiting.
	Poll PollConfig `yaml:"poll" mapstructure:"poll"`

	// ConnectTimeout bounds the SSH TCP dial.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// LoadPrices toggles on-demand price lookup in listings.
	LoadPrices bool `yaml:"load_prices" mapstructure:"load_prices"`

	// InstanceTypes is the catalog offered when resizing, with a short
	// description per type.
	InstanceTypes map[string]string `yaml:"instance_types" mapstructure:"instance_types"`
}

// NotebookConfig holds the ports used for notebook forwarding.
type NotebookConfig struct {
	// LocalPort is the first local port tried; the next two are
	// fallbacks.
	LocalPort int `yaml:"local_port" mapstructure:"local_port"`

	// RemotePort is where the notebook server listens on the instance.
	RemotePort int `yaml:"remote_port" mapstructure:"remote_port"`
}

// PollConfig bounds the convergence wait after lifecycle actions.
type PollConfig struct {
	// Interval between state fetches.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Attempts caps the number of fetches per wait.
	Attempts int `yaml:"attempts" mapstructure:"attempts"`

	// TransientRetries is how many consecutive transient provider
	// failures a wait absorbs before giving up.
	TransientRetries int `yaml:"transient_retries" mapstructure:"transient_retries"`
}

// DefaultConfig returns a Config with sensible defaults. Local
// directories live under ~/.lobot.
func DefaultConfig() *Config {
	base := defaultHome()
	return &Config{
		Version:    CurrentConfigVersion,
		Region:     "us-east-1",
		RemoteUser: "ec2-user",
		KeysDir:    filepath.Join(base, "keys"),
		DeployDir:  filepath.Join(base, "deploy"),
		FetchDir:   filepath.Join(base, "fetch"),
		RemoteBase: "~/lobot",
		Notebook: NotebookConfig{
			LocalPort:  8888,
			RemotePort: 8888,
		},
		Poll: PollConfig{
			Interval:         3 * time.Second,
			Attempts:         40,
			TransientRetries: 3,
		},
		ConnectTimeout: 10 * time.Second,
		LoadPrices:     false,
		InstanceTypes: map[string]string{
			"t2.micro":   "1 vCPU, 1 GiB",
			"t3.medium":  "2 vCPU, 4 GiB",
			"t3.xlarge":  "4 vCPU, 16 GiB",
			"m5.large":   "2 vCPU, 8 GiB",
			"m5.2xlarge": "8 vCPU, 32 GiB",
			"c5.2xlarge": "8 vCPU, 16 GiB",
			"r5.large":   "2 vCPU, 16 GiB",
			"p3.2xlarge": "8 vCPU, 61 GiB, 1x V100",
		},
	}
}

// defaultHome is the directory for keys and transfer staging.
func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lobot"
	}
	return filepath.Join(home, ".lobot")
}

// EnsureDirs creates the keys, deploy, and fetch directories if they
// don't exist yet, so a first run has somewhere to put things.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.KeysDir, c.DeployDir, c.FetchDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
