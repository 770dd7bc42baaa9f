package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mdview/mdview/internal/app"
	"github.com/mdview/mdview/internal/config"
)

var (
	serverURL string
	backend   string
	openFiles []string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the viewer session",
	Long: `Start the viewer session core: restore the previous session, attach
to the watcher service and keep open documents in sync.

Examples:
  mdview start                                # Attach to the configured server
  mdview start --url ws://localhost:8080/ws   # Attach to a specific server
  mdview start --open README.md --open doc.md # Open files on startup
  mdview start --backend sqlite               # Persist the session in SQLite`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&serverURL, "url", "", "watcher service WebSocket URL")
	startCmd.Flags().StringVar(&backend, "backend", "", "session storage backend (file, sqlite or memory)")
	startCmd.Flags().StringArrayVar(&openFiles, "open", nil, "file to open on startup (repeatable)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if backend != "" {
		cfg.Session.Backend = backend
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("server_url", cfg.Server.URL).
		Str("backend", cfg.Session.Backend).
		Msg("starting mdview")

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	for _, path := range openFiles {
		application.Controller().OpenFile(path)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	if err := application.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Info().Msg("mdview stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
