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

	"github.com/pushbridge/pushbridge/internal/app"
	"github.com/pushbridge/pushbridge/internal/config"
)

var (
	watchPath string
	port      int
	journalOn bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pushbridge daemon",
	Long: `Start watching the configured directory and serve the resulting
event stream to WebSocket consumers.

The producer is activated at startup and stays active regardless of how
many consumers are connected; consumers attach and detach freely.

Example:
  pushbridge serve
  pushbridge serve --path /path/to/project --port 9100
  pushbridge serve --journal`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&watchPath, "path", "", "directory to watch (default: current directory)")
	serveCmd.Flags().IntVar(&port, "port", 0, "websocket server port (default: 8875)")
	serveCmd.Flags().BoolVar(&journalOn, "journal", false, "record every delivery to a sqlite journal")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if watchPath != "" {
		cfg.Watcher.Path = watchPath
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if journalOn {
		cfg.Journal.Enabled = true
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("path", cfg.Watcher.Path).
		Int("port", cfg.Server.Port).
		Msg("starting pushbridge")

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("pushbridge stopped")
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
