// Package api provides HTTP handlers and the main API server logic for the
// curriculum-design conversation service.
//
// It exposes RESTful endpoints for managing projects and driving the guided
// conversation one turn at a time.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kjbranchesi/alfcoach/internal/flow"
	"github.com/kjbranchesi/alfcoach/internal/status"
	"github.com/kjbranchesi/alfcoach/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the store, the conversation engine, and the status deriver
// behind the HTTP surface.
type Server struct {
	st      store.Store
	engine  *flow.Engine
	deriver *status.Deriver
}

// NewServer creates an API server with its dependencies.
func NewServer(st store.Store, engine *flow.Engine, deriver *status.Deriver) *Server {
	slog.Debug("Server.NewServer: creating API server")
	return &Server{st: st, engine: engine, deriver: deriver}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects", s.createProjectHandler)
	mux.HandleFunc("GET /projects", s.listProjectsHandler)
	mux.HandleFunc("GET /projects/{id}", s.getProjectHandler)
	mux.HandleFunc("DELETE /projects/{id}", s.deleteProjectHandler)
	mux.HandleFunc("GET /projects/{id}/status", s.statusHandler)
	mux.HandleFunc("GET /projects/{id}/progress", s.progressHandler)
	mux.HandleFunc("POST /projects/{id}/turn", s.turnHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Server.Run: shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
