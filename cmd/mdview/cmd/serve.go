package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mdview/mdview/internal/config"
	"github.com/mdview/mdview/internal/server/devserver"
)

var (
	serveHost string
	servePort int
	serveRoot string
)

// serveCmd runs the bundled development server.
var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Serve viewer assets and watch for file changes",
	Long: `Run the bundled development server: serve static viewer assets over
HTTP and stream file change notifications to connected viewers over
WebSocket at /ws.

Examples:
  mdview serve                  # Serve the configured root
  mdview serve ./docs           # Serve a specific directory
  mdview serve --port 9000      # Listen on a custom port`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "interface to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "directory to serve and watch")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if len(args) > 0 {
		cfg.DevServer.Root = args[0]
	}
	if serveRoot != "" {
		cfg.DevServer.Root = serveRoot
	}
	if serveHost != "" {
		cfg.DevServer.Host = serveHost
	}
	if servePort != 0 {
		cfg.DevServer.Port = servePort
	}
	if cfg.DevServer.Root == "" {
		cfg.DevServer.Root = "."
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))

	server := devserver.NewServer(
		cfg.DevServer.Host,
		cfg.DevServer.Port,
		cfg.DevServer.Root,
		cfg.DevServer.Watcher.DebounceMS,
		cfg.DevServer.Watcher.IgnorePatterns,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}

	logger.Info("serving",
		"url", fmt.Sprintf("http://%s:%d", cfg.DevServer.Host, cfg.DevServer.Port),
		"root", cfg.DevServer.Root,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return server.Stop(shutdownCtx)
}
