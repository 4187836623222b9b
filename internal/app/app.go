// Package app orchestrates the pushbridge daemon: it builds the push source,
// bridges it into a multicast stream, and attaches the consumers.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pushbridge/pushbridge/internal/adapters/fswatch"
	"github.com/pushbridge/pushbridge/internal/config"
	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/internal/server/websocket"
	"github.com/pushbridge/pushbridge/internal/services/journal"
	"github.com/pushbridge/pushbridge/pkg/stream"
)

// App owns the daemon's components and their lifecycle.
type App struct {
	cfg *config.Config

	bridge   *stream.Bridge[events.Event]
	wsServer *websocket.Server
	journal  *journal.Journal

	mu      sync.Mutex
	running bool
}

// New wires the pipeline: file source → bridge → stream consumers.
func New(cfg *config.Config) (*App, error) {
	source := fswatch.New(
		cfg.Watcher.Path,
		time.Duration(cfg.Watcher.DebounceMS)*time.Millisecond,
		cfg.Watcher.IgnorePatterns,
	)
	return newApp(cfg, source)
}

// newApp wires the pipeline around any push source.
func newApp(cfg *config.Config, source stream.Source[events.Event]) (*App, error) {
	bridge, err := stream.NewBridge[events.Event](source)
	if err != nil {
		return nil, fmt.Errorf("create bridge: %w", err)
	}

	a := &App{
		cfg:      cfg,
		bridge:   bridge,
		wsServer: websocket.NewServer(cfg.Server.Host, cfg.Server.Port, bridge.Stream()),
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
	}

	return a, nil
}

// Start activates the producer and starts the consumers, then blocks until
// the context is cancelled. Activation is explicit and independent of how
// many consumers are connected.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	if a.journal != nil {
		a.journal.Attach(a.bridge.Stream())
	}

	if err := a.wsServer.Start(); err != nil {
		return fmt.Errorf("start websocket server: %w", err)
	}

	if err := a.bridge.Activate(); err != nil {
		return fmt.Errorf("activate source: %w", err)
	}

	log.Info().
		Str("watch_path", a.cfg.Watcher.Path).
		Bool("journal", a.journal != nil).
		Msg("pushbridge running")

	<-ctx.Done()
	return a.shutdown()
}

// shutdown tears the pipeline down: stop the producer, complete the stream,
// then stop the consumers.
func (a *App) shutdown() error {
	log.Info().Msg("shutting down")

	if err := a.bridge.Close(); err != nil {
		log.Warn().Err(err).Msg("source deactivation failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.wsServer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("websocket server stop failed")
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("journal close failed")
		}
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	return nil
}
