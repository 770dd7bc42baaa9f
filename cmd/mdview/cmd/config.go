package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mdview/mdview/internal/config"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage mdview configuration.

Without subcommands, shows the current effective configuration.

Examples:
  mdview config              # Show current config
  mdview config init         # Create config file with defaults
  mdview config path         # Show config file location
  mdview config get <key>    # Get a config value
  mdview config set <key> <value>  # Set a config value`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		printConfig(cfg)
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.mdview/config.yaml.
Use --local to create ./config.yaml in the current directory.`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	Run:   runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key. Keys use dot notation.

Examples:
  mdview config get server.url
  mdview config get session.backend
  mdview config get logging.level`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a config value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key. Keys use dot notation.
Creates the config file if it doesn't exist.

Examples:
  mdview config set server.url ws://localhost:9000/ws
  mdview config set session.backend sqlite
  mdview config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.mdview/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func printConfig(cfg *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Server URL:       %s\n", cfg.Server.URL)
	fmt.Printf("Session Backend:  %s\n", cfg.Session.Backend)
	fmt.Printf("Store Path:       %s\n", cfg.Session.StorePath)
	fmt.Printf("Persist Debounce: %dms\n", cfg.Session.PersistDebounceMS)
	fmt.Printf("Base Delay:       %dms\n", cfg.Sync.BaseDelayMS)
	fmt.Printf("Max Delay:        %dms\n", cfg.Sync.MaxDelayMS)
	fmt.Printf("Max Attempts:     %d\n", cfg.Sync.MaxAttempts)
	fmt.Printf("Log Level:        %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:       %s\n", cfg.Logging.Format)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		if !configInitForce {
			return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
		}
	}

	if err := writeDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit this file to customize mdview behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config dir: %v\n", err)
		os.Exit(1)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/mdview/config.yaml",
	}

	fmt.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}

	fmt.Printf("\nConfig directory: %s\n", configDir)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, key)
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Load existing config or start from scratch
	var data map[string]interface{}

	if content, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}

	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, configPath)
	return nil
}

func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid key: %s", key)
	}

	switch parts[0] {
	case "server":
		switch parts[1] {
		case "url":
			return cfg.Server.URL, nil
		}
	case "session":
		switch parts[1] {
		case "backend":
			return cfg.Session.Backend, nil
		case "store_path":
			return cfg.Session.StorePath, nil
		case "persist_debounce_ms":
			return cfg.Session.PersistDebounceMS, nil
		}
	case "sync":
		switch parts[1] {
		case "base_delay_ms":
			return cfg.Sync.BaseDelayMS, nil
		case "max_delay_ms":
			return cfg.Sync.MaxDelayMS, nil
		case "max_attempts":
			return cfg.Sync.MaxAttempts, nil
		case "stats_timeout_ms":
			return cfg.Sync.StatsTimeoutMS, nil
		}
	case "dev_server":
		switch parts[1] {
		case "host":
			return cfg.DevServer.Host, nil
		case "port":
			return cfg.DevServer.Port, nil
		case "root":
			return cfg.DevServer.Root, nil
		}
	case "logging":
		switch parts[1] {
		case "level":
			return cfg.Logging.Level, nil
		case "format":
			return cfg.Logging.Format, nil
		}
	}

	return nil, fmt.Errorf("unknown config key: %s", key)
}

func setNestedValue(data map[string]interface{}, key string, value string) error {
	parts := strings.Split(key, ".")

	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		if nested, ok := current[parts[i]].(map[string]interface{}); ok {
			current = nested
		} else {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
	}

	current[parts[len(parts)-1]] = value
	return nil
}

func writeDefaultConfig(path string) error {
	content := `# mdview Configuration
# Copy this file to ~/.mdview/config.yaml and modify as needed

# Backend watcher service
server:
  # WebSocket URL of the file watcher service
  url: "ws://127.0.0.1:8080/ws"

# Session persistence
session:
  # Storage backend: file, sqlite or memory
  backend: "file"

  # Where the session snapshot is stored (default: ~/.mdview/session)
  # store_path: "~/.mdview/session"

  # Milliseconds to coalesce rapid tab changes before writing (0 = immediate)
  persist_debounce_ms: 0

# Live-sync reconnect behavior
sync:
  # First retry delay after a dropped connection
  base_delay_ms: 1000

  # Retry delay ceiling
  max_delay_ms: 30000

  # Give up after this many consecutive failed attempts
  max_attempts: 5

  # Timeout for watcher stats requests
  stats_timeout_ms: 5000

# Bundled development server (mdview serve)
dev_server:
  host: "127.0.0.1"
  port: 8080

  # Directory to serve and watch (default: current directory)
  # root: "./docs"

  watcher:
    # Milliseconds to coalesce rapid file system events
    debounce_ms: 100

# Logging settings
logging:
  # Log level: trace, debug, info, warn, error
  level: "info"

  # Log format: console (human-readable) or json
  format: "console"
`

	return os.WriteFile(path, []byte(content), 0644)
}
