package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/lobot-sh/lobot/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".lobot.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/lobot"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	// Viper splits keys on "." by default, which mangles instance type
	// names like t3.medium into nested maps. Use a delimiter that can't
	// appear in a type name.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"config file not found",
				"Run 'lobot init' to create one, or point at it with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .lobot.yaml in the current directory
// 3. ~/.config/lobot/config.yaml
//
// Returns an empty string when no config exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"cannot determine current directory", "")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults
// when no config file exists.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// parseConfig unmarshals viper state over the defaults, so a sparse
// file only overrides what it names.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"invalid config format",
			"Check the YAML syntax in "+path)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("region", cfg.Region)
	v.SetDefault("remote_user", cfg.RemoteUser)
	v.SetDefault("keys_dir", cfg.KeysDir)
	v.SetDefault("deploy_dir", cfg.DeployDir)
	v.SetDefault("fetch_dir", cfg.FetchDir)
	v.SetDefault("remote_base", cfg.RemoteBase)
	v.SetDefault("notebook::local_port", cfg.Notebook.LocalPort)
	v.SetDefault("notebook::remote_port", cfg.Notebook.RemotePort)
	v.SetDefault("poll::interval", cfg.Poll.Interval)
	v.SetDefault("poll::attempts", cfg.Poll.Attempts)
	v.SetDefault("poll::transient_retries", cfg.Poll.TransientRetries)
	v.SetDefault("connect_timeout", cfg.ConnectTimeout)
	v.SetDefault("load_prices", cfg.LoadPrices)
}

// validate rejects values that would make waits or tunnels nonsensical.
func validate(cfg *Config) error {
	if cfg.Region == "" {
		return errors.New(errors.ErrConfig,
			"region can't be empty",
			"Set region in the config file or pass --region")
	}
	if cfg.Poll.Interval <= 0 {
		return errors.New(errors.ErrConfig,
			"poll.interval must be positive", "")
	}
	if cfg.Poll.Attempts <= 0 {
		return errors.New(errors.ErrConfig,
			"poll.attempts must be positive", "")
	}
	if cfg.Poll.TransientRetries < 0 {
		return errors.New(errors.ErrConfig,
			"poll.transient_retries can't be negative", "")
	}
	if cfg.Notebook.LocalPort <= 0 || cfg.Notebook.LocalPort > 65535 ||
		cfg.Notebook.RemotePort <= 0 || cfg.Notebook.RemotePort > 65535 {
		return errors.New(errors.ErrConfig,
			"notebook ports must be in 1-65535", "")
	}
	return nil
}
