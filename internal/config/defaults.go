// Package config provides centralized default configuration values.
package config

import "github.com/spf13/viper"

// DefaultWatcherIgnorePatterns is the canonical ignore list for the dev
// server's file watcher. Users can override via dev_server.watcher.ignore_patterns.
var DefaultWatcherIgnorePatterns = []string{
	".git",
	".mdview",
	"node_modules",
	".venv",
	"venv",
	"__pycache__",
	"*.pyc",
	".DS_Store",
	"Thumbs.db",
	"dist",
	"build",
	"coverage",
	"*.log",
	".idea",
	".vscode",
	"*.swp",
	"*.swo",
	"*~",
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("server.url", "ws://127.0.0.1:8080/ws")

	// Session defaults
	v.SetDefault("session.backend", "file")
	v.SetDefault("session.store_path", "")
	v.SetDefault("session.persist_debounce_ms", 0)

	// Live-sync defaults, mirroring the reconnection contract
	v.SetDefault("sync.base_delay_ms", 1000)
	v.SetDefault("sync.max_delay_ms", 30000)
	v.SetDefault("sync.max_attempts", 5)
	v.SetDefault("sync.stats_timeout_ms", 5000)

	// Dev server defaults
	v.SetDefault("dev_server.host", "127.0.0.1")
	v.SetDefault("dev_server.port", 8080)
	v.SetDefault("dev_server.root", "")
	v.SetDefault("dev_server.watcher.debounce_ms", 100)
	v.SetDefault("dev_server.watcher.ignore_patterns", DefaultWatcherIgnorePatterns)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
