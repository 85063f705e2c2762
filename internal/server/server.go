// Package server provides the HTTP surface of personlens: playback control,
// session history, an MJPEG preview and a websocket event feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/personlens/internal/server/api"
	"github.com/ayusman/personlens/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Log        logs.Log
	StaticDir  string
	Store      *store.Store
	Controller api.Controller
	// Sink feeds /api/stream and /api/events. New creates one when nil.
	Sink *Sink
}

// Server represents the HTTP server for the personlens application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	hub    *Hub
	sink   *Sink
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log, _ = logs.NewLog()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	if config.Sink != nil {
		s.sink = config.Sink
		s.hub = config.Sink.hub
	} else {
		s.hub = NewHub(config.Log)
		s.sink = NewSink(config.Log, s.hub)
	}

	s.setupRoutes()
	return s
}

// NewSinkWithHub creates the sink and hub pair a Server will serve. It lets
// the sink be handed to the controller before the server is built.
func NewSinkWithHub(log logs.Log) *Sink {
	return NewSink(log, NewHub(log))
}

// Sink returns the present.Sink to attach to the controller.
func (s *Server) Sink() *Sink {
	return s.sink
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		control := api.NewControlHandler(s.config.Controller)
		for _, p := range api.Paths {
			s.mux.Handle(p, control)
		}
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	s.mux.Handle("/api/stream", NewStreamHandler(s.sink))
	s.mux.Handle("/api/events", s.hub)

	// Serve static files if StaticDir is configured
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
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"clients": s.hub.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		s.config.Log.Infof("HTTP server listening on %s", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
