// Package config handles configuration management for mdview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Sync      SyncConfig      `mapstructure:"sync"`
	DevServer DevServerConfig `mapstructure:"dev_server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Session storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ServerConfig points at the backend watcher service.
type ServerConfig struct {
	URL string `mapstructure:"url"`
}

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Backend           string `mapstructure:"backend"` // file, sqlite or memory
	StorePath         string `mapstructure:"store_path"`
	PersistDebounceMS int    `mapstructure:"persist_debounce_ms"`
}

// SyncConfig holds the live-sync reconnect contract.
type SyncConfig struct {
	BaseDelayMS    int `mapstructure:"base_delay_ms"`
	MaxDelayMS     int `mapstructure:"max_delay_ms"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	StatsTimeoutMS int `mapstructure:"stats_timeout_ms"`
}

// DevServerConfig holds the bundled dev backend configuration.
type DevServerConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Root    string        `mapstructure:"root"`
	Watcher WatcherConfig `mapstructure:"watcher"`
}

// WatcherConfig holds file watcher configuration.
type WatcherConfig struct {
	DebounceMS     int      `mapstructure:"debounce_ms"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mdview")
		v.AddConfigPath("/etc/mdview")
	}

	// Environment variable prefix
	v.SetEnvPrefix("MDVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Post-process configuration
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	// Default the session store path to the user config dir.
	if cfg.Session.StorePath == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve config directory: %w", err)
		}
		cfg.Session.StorePath = filepath.Join(dir, "session")
	}

	// Resolve the served root to an absolute path.
	if cfg.DevServer.Root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.DevServer.Root = cwd
	}
	absRoot, err := filepath.Abs(cfg.DevServer.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve served root: %w", err)
	}
	cfg.DevServer.Root = absRoot

	return nil
}

// GetConfigDir returns the user config directory for mdview.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".mdview"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
