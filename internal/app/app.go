// Package app orchestrates the viewer session components.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mdview/mdview/internal/adapters/storage"
	"github.com/mdview/mdview/internal/channel"
	"github.com/mdview/mdview/internal/config"
	"github.com/mdview/mdview/internal/controller"
	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
	"github.com/mdview/mdview/internal/hub"
	"github.com/mdview/mdview/internal/livesync"
	"github.com/mdview/mdview/internal/session"
)

// App wires the event hub, session store, live-sync client and controller
// into one runnable unit.
type App struct {
	cfg     *config.Config
	version string

	hub        *hub.Hub
	storage    ports.Storage
	store      *session.Store
	client     *livesync.Client
	controller *controller.Controller

	strip    ports.TabStrip
	notifier ports.Notifier

	startTime time.Time

	mu      sync.RWMutex
	running bool
}

// New creates a new App instance. UI ports default to headless no-ops and
// can be replaced before Start.
func New(cfg *config.Config, version string) (*App, error) {
	return &App{
		cfg:      cfg,
		version:  version,
		hub:      hub.New(),
		strip:    ports.NopTabStrip(),
		notifier: NewLogNotifier(),
	}, nil
}

// SetTabStrip installs the tab strip implementation. Must be called before
// Start.
func (a *App) SetTabStrip(strip ports.TabStrip) {
	a.strip = strip
}

// SetNotifier installs the user-facing notifier. Must be called before
// Start.
func (a *App) SetNotifier(notifier ports.Notifier) {
	a.notifier = notifier
}

// Start starts the application components.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// Trace every broadcast event for debugging
	traceSub := hub.NewFuncSubscriber(func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	})
	a.hub.Subscribe(traceSub)

	store, err := a.openStorage()
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	a.storage = store

	a.store = session.New(a.hub, session.Options{
		Storage:         a.storage,
		Strip:           a.strip,
		PersistDebounce: time.Duration(a.cfg.Session.PersistDebounceMS) * time.Millisecond,
	})

	a.client = livesync.New(
		channel.Dialer(a.cfg.Server.URL),
		a.hub,
		a.cfg.Server.URL,
		livesync.Options{
			BaseDelay:    time.Duration(a.cfg.Sync.BaseDelayMS) * time.Millisecond,
			MaxDelay:     time.Duration(a.cfg.Sync.MaxDelayMS) * time.Millisecond,
			MaxAttempts:  a.cfg.Sync.MaxAttempts,
			StatsTimeout: time.Duration(a.cfg.Sync.StatsTimeoutMS) * time.Millisecond,
		},
	)

	a.controller = controller.New(a.hub, a.store, a.client, a.notifier)
	a.controller.Start()

	log.Info().
		Str("server_url", a.cfg.Server.URL).
		Str("backend", a.cfg.Session.Backend).
		Int("restorable_tabs", len(a.store.RestorableTabs())).
		Msg("session started")

	a.client.Connect(ctx)

	return nil
}

// Stop gracefully shuts the components down in reverse start order.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Info().Msg("shutting down")

	if a.client != nil {
		a.client.Disconnect()
	}
	if a.controller != nil {
		a.controller.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close session store")
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close session storage")
		}
	}
	if err := a.hub.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop event hub")
	}

	return nil
}

// IsRunning returns true if the application has been started.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Hub exposes the event hub for UI layers to subscribe to.
func (a *App) Hub() ports.EventHub {
	return a.hub
}

// Controller exposes the session controller for UI command routing.
func (a *App) Controller() *controller.Controller {
	return a.controller
}

// Store exposes the session store.
func (a *App) Store() *session.Store {
	return a.store
}

// Client exposes the live-sync client.
func (a *App) Client() *livesync.Client {
	return a.client
}

// UptimeSeconds returns how long the application has been running.
func (a *App) UptimeSeconds() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(time.Since(a.startTime).Seconds())
}

// openStorage builds the session storage backend selected by config.
func (a *App) openStorage() (ports.Storage, error) {
	switch a.cfg.Session.Backend {
	case config.BackendFile:
		return storage.NewFile(a.cfg.Session.StorePath)
	case config.BackendSQLite:
		return storage.NewSQLite(a.cfg.Session.StorePath + ".db")
	case config.BackendMemory:
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown session backend: %s", a.cfg.Session.Backend)
	}
}
