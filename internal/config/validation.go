package config

import (
	"fmt"
	"net/url"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateSession(&cfg.Session); err != nil {
		return err
	}
	if err := validateSync(&cfg.Sync); err != nil {
		return err
	}
	if err := validateDevServer(&cfg.DevServer); err != nil {
		return err
	}
	return validateLogging(&cfg.Logging)
}

func validateServer(cfg *ServerConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("server.url must not be empty")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("server.url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.url scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}

func validateSession(cfg *SessionConfig) error {
	switch cfg.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("session.backend must be file, sqlite or memory, got %q", cfg.Backend)
	}
	if cfg.PersistDebounceMS < 0 {
		return fmt.Errorf("session.persist_debounce_ms must not be negative")
	}
	return nil
}

func validateSync(cfg *SyncConfig) error {
	if cfg.BaseDelayMS < 1 {
		return fmt.Errorf("sync.base_delay_ms must be at least 1")
	}
	if cfg.MaxDelayMS < cfg.BaseDelayMS {
		return fmt.Errorf("sync.max_delay_ms must be >= sync.base_delay_ms")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be at least 1")
	}
	if cfg.StatsTimeoutMS < 1 {
		return fmt.Errorf("sync.stats_timeout_ms must be at least 1")
	}
	return nil
}

func validateDevServer(cfg *DevServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("dev_server.port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Watcher.DebounceMS < 0 {
		return fmt.Errorf("dev_server.watcher.debounce_ms must not be negative")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "":
	default:
		return fmt.Errorf("logging.level must be a zerolog level, got %q", cfg.Level)
	}
	switch cfg.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Format)
	}
	return nil
}
