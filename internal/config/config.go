package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - Local IPC listen address (unix socket path or host:port)
 * @property {string} network - "unix" or "tcp"
 * @property {string} mode - Application mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Network string `mapstructure:"network"`
	Mode    string `mapstructure:"mode"`
}

// LogConfig controls the ambient logger (see internal/logger).
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus pushgateway exporter (see internal/metrics).
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
}

// FetchConfig is the external artifact-fetch collaborator's endpoint; the
// core never reaches the network directly except through internal/fetcher,
// which is built from this.
type FetchConfig struct {
	BaseUrl   string `mapstructure:"base_url"`
	PublicKey string `mapstructure:"public_key"`
}

// DeploymentConfig carries the defaults the Deployment Task Orchestrator
// (internal/deployment) applies when a document doesn't override them.
type DeploymentConfig struct {
	DefaultDeadlineSeconds int `mapstructure:"default_deadline_seconds"`
}

// DirectoryConfig names the on-disk roots used by the Component Store
// (internal/store) and Deployment Directory Manager (internal/deployment).
type DirectoryConfig struct {
	Root string `mapstructure:"root"` // <root>/packages, <root>/deployments
	Logs string `mapstructure:"logs"`
}

var ErrComponentNotFound = errors.New("component not found")

type AppConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Directory  DirectoryConfig  `mapstructure:"directory"`
	Groups     []string         `mapstructure:"groups"`
}

/**
 * Load application configuration from YAML file, applying defaults for
 * anything the file omits.
 */
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.edgecored")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	collectConfig(&cfg)
	return &cfg, nil
}

var Config AppConfig

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Directory.Root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.Directory.Root = filepath.Join(home, ".edgecored")
	}
	if cfg.Directory.Logs == "" {
		cfg.Directory.Logs = filepath.Join(cfg.Directory.Root, "logs")
	}
	if cfg.Server.Network == "" {
		cfg.Server.Network = "unix"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = filepath.Join(cfg.Directory.Root, "edgecored.sock")
	}
	if cfg.Deployment.DefaultDeadlineSeconds == 0 {
		cfg.Deployment.DefaultDeadlineSeconds = 300
	}
	return cfg
}

// WatchForChanges reloads Pushgateway/log-level settings without a restart,
// the same role fsnotify plays for viper elsewhere in this codebase.
func WatchForChanges(onChange func(AppConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var cfg AppConfig
		if err := viper.Unmarshal(&cfg); err != nil {
			return
		}
		collectConfig(&cfg)
		Config = cfg
		if onChange != nil {
			onChange(cfg)
		}
	})
	viper.WatchConfig()
}

func init() {
	cfg, err := LoadConfig()
	if err == nil {
		Config = *cfg
	} else {
		collectConfig(&Config)
	}
}
