// Package api provides the StreamAgent status HTTP server.
//
// It exposes read-only views of every running agent (status, cycle history,
// statistics) and a trigger to reload the runtime settings file.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/agent"
	"github.com/BTreeMap/StreamAgent/internal/history"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Agent is the view of an orchestrator the server reads from.
type Agent interface {
	Name() string
	AgentID() string
	Status() agent.Status
	History() *history.History
}

// Reloader re-reads the runtime settings.
type Reloader interface {
	Reload() error
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr     string
	Reloader Reloader
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithReloader sets the target of POST /config/reload.
func WithReloader(r Reloader) Option {
	return func(o *Opts) {
		o.Reloader = r
	}
}

// Server serves the status API.
type Server struct {
	addr     string
	agents   []Agent
	byName   map[string]Agent
	reloader Reloader
	started  time.Time
}

// NewServer creates a server over the given agents. Agents are addressed by
// character name or agent id.
func NewServer(agents []Agent, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		addr:     cfg.Addr,
		agents:   agents,
		byName:   make(map[string]Agent, 2*len(agents)),
		reloader: cfg.Reloader,
		started:  time.Now(),
	}
	for _, a := range agents {
		s.byName[a.Name()] = a
		s.byName[a.AgentID()] = a
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /agents", s.agentsHandler)
	mux.HandleFunc("GET /agents/{name}/status", s.statusHandler)
	mux.HandleFunc("GET /agents/{name}/history", s.historyHandler)
	mux.HandleFunc("GET /agents/{name}/stats", s.statsHandler)
	mux.HandleFunc("POST /config/reload", s.reloadHandler)
	return mux
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Status API listening", "addr", ln.Addr().String(), "agents", len(s.agents))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status API: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Serve: shutdown failed", "error", err)
		return err
	}
	<-errCh
	slog.Info("Status API stopped")
	return nil
}
