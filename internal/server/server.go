// Package server provides the HTTP server for the smart mirror: the layout
// and settings API, the camera preview stream and the render-surface socket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/capture"
	"github.com/ayusman/mirror/internal/layout"
	"github.com/ayusman/mirror/internal/server/api"
	"github.com/ayusman/mirror/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Layouts   *layout.Store
	Board     *layout.Board
	Settings  api.SettingsApplier
	Hub       *Hub
	Preview   *capture.Preview
	Log       logrus.FieldLogger
}

// Server represents the HTTP server for the mirror.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    logrus.FieldLogger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log.WithField("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Layouts != nil && s.config.Board != nil {
		var history *store.LayoutRepository
		if s.config.Store != nil {
			history = s.config.Store.Layouts()
		}
		layouts := api.NewLayoutHandler(s.config.Layouts, s.config.Board, history, s.log)
		s.mux.Handle("/api/layouts", layouts)
		s.mux.Handle("/api/layouts/", layouts)
	}

	if s.config.Store != nil {
		settings := api.NewSettingsHandler(s.config.Store.Settings(), s.config.Settings, s.log)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/ws", s.config.Hub)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	code := http.StatusOK
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Clients()
	}
	if s.config.Store != nil {
		if err := s.config.Store.Ping(r.Context()); err != nil {
			response["status"] = "degraded"
			response["store"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			response["store"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.WithError(err).Debug("encode health response")
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
