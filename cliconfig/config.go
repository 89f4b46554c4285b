// Package cliconfig loads attestctl's configuration from a YAML file,
// environment variables, and defaults: environment variables override
// the file, and the file overrides the defaults —
// the same three-tier Load attestctl's teacher uses in pkg/config, cut
// down to the handful of knobs a single-core CLI actually needs.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings attestctl commands read at startup.
type Config struct {
	// MaxSessions caps concurrently open sessions against the core.
	MaxSessions int `mapstructure:"max_sessions"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the metrics server.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// ExportDir is where the file-backed export sink writes. Empty
	// disables file export.
	ExportDir string `mapstructure:"export_dir"`

	// SQLiteDSN, if set, additionally persists exports to a SQLite
	// database at this path.
	SQLiteDSN string `mapstructure:"sqlite_dsn"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

func defaults() Config {
	return Config{
		MaxSessions: 256,
		MetricsAddr: "",
		ExportDir:   "",
		SQLiteDSN:   "",
		LogLevel:    "info",
	}
}

// Load reads configPath (if non-empty), overlays ATTESTCTL_*
// environment variables, and falls back to defaults for anything
// unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	cfg := defaults()

	v.SetEnvPrefix("ATTESTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"max_sessions", "metrics_addr", "export_dir", "sqlite_dsn", "log_level"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("attestctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "attestctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".attestctl"
	}
	return filepath.Join(home, ".config", "attestctl")
}
