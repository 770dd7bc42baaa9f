// Package devserver bundles a development HTTP server for the viewer
// assets with the WebSocket endpoint the live-sync client attaches to.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mdview/mdview/internal/channel"
	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/livesync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local development tool, origin is not enforced
		return true
	},
}

// mimeTypes overrides the platform MIME table so module scripts and
// markdown load correctly regardless of OS registry state.
var mimeTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".mjs":   "application/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// Server serves viewer assets and streams file updates over WebSocket.
type Server struct {
	addr    string
	root    string
	server  *http.Server
	watcher *Watcher
	logger  *slog.Logger

	mu        sync.RWMutex
	clients   map[string]*client
	startTime time.Time
}

// NewServer creates a development server rooted at root.
func NewServer(host string, port int, root string, debounceMS int, ignorePatterns []string, logger *slog.Logger) *Server {
	addr := fmt.Sprintf("%s:%d", host, port)
	s := &Server{
		addr:      addr,
		root:      root,
		clients:   make(map[string]*client),
		logger:    logger,
		startTime: time.Now(),
	}
	s.watcher = NewWatcher(root, debounceMS, ignorePatterns, s.broadcastUpdate, logger)

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.PathPrefix("/").Handler(s.staticHandler())

	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
		// No ReadTimeout/WriteTimeout: they would kill the long-lived
		// WebSocket connections. The pumps manage their own deadlines.
	}

	return s
}

// Start starts the HTTP listener and the file watcher.
func (s *Server) Start(ctx context.Context) error {
	if err := s.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	s.logger.Info("dev server starting", "addr", s.addr, "root", s.root)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dev server error", "error", err)
		}
	}()

	return nil
}

// Stop tells connected clients the shutdown is deliberate, then closes the
// listener and the watcher.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("dev server stopping")

	goodbye, _ := json.Marshal(channel.Envelope{Event: channel.EventDisconnect})

	s.mu.Lock()
	for _, c := range s.clients {
		c.enqueue(goodbye)
	}
	s.mu.Unlock()

	// Give the write pumps a moment to flush the goodbye frame.
	time.Sleep(50 * time.Millisecond)

	s.mu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	if err := s.watcher.Stop(); err != nil {
		s.logger.Warn("watcher stop failed", "error", err)
	}

	return s.server.Shutdown(ctx)
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ClientCount returns the number of connected viewers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Stats returns the current watcher statistics.
func (s *Server) Stats() livesync.Stats {
	return livesync.Stats{
		WatchedDirs:   s.watcher.WatchedDirs(),
		EventsEmitted: s.watcher.Emitted(),
		Clients:       s.ClientCount(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
}

// handleWebSocket upgrades the connection and registers the viewer.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(conn, s.handleMessage, s.removeClient, s.logger)

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.logger.Info("viewer connected", "client_id", c.id, "remote_addr", conn.RemoteAddr().String())

	c.start()

	welcome, _ := json.Marshal(channel.Envelope{Event: channel.EventConnected})
	c.enqueue(welcome)
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	s.logger.Info("viewer disconnected", "client_id", id)
}

// handleMessage processes a request frame from a viewer.
func (s *Server) handleMessage(c *client, message []byte) {
	var env channel.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Warn("malformed message", "client_id", c.id, "error", err)
		return
	}

	switch env.Event {
	case channel.EventGetWatcherStats:
		reply, err := channel.NewEnvelope(channel.EventGetWatcherStats, env.ID, s.Stats())
		if err != nil {
			s.logger.Warn("failed to encode stats reply", "error", err)
			return
		}
		data, _ := json.Marshal(reply)
		c.enqueue(data)

	default:
		s.logger.Debug("unhandled message", "client_id", c.id, "event", env.Event)
	}
}

// broadcastUpdate fans a watcher notification out to all viewers.
func (s *Server) broadcastUpdate(update events.FileUpdatePayload) {
	env, err := channel.NewEnvelope(channel.EventFileUpdate, 0, update)
	if err != nil {
		s.logger.Warn("failed to encode file update", "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.enqueue(data)
	}
}

// staticHandler serves viewer assets with development-friendly caching
// disabled and a conservative set of response headers.
func (s *Server) staticHandler() http.Handler {
	fs := http.FileServer(http.Dir(s.root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "..") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(r.URL.Path))]; ok {
			w.Header().Set("Content-Type", ct)
		}

		// Always revalidate during development
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		fs.ServeHTTP(w, r)
	})
}
