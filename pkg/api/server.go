package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/metorm/groupBin/internal/logger"
)

// Server is the public GroupBin HTTP server. One listener carries the
// JSON API, the resumable upload protocol, downloads, health probes,
// and the Prometheus metrics handler.
type Server struct {
	server       *http.Server
	config       ServerConfig
	shutdownOnce sync.Once
}

// NewServer wires the router into an http.Server. Nothing listens
// until Start is called. Defaults are applied again here so a Server
// built directly in tests behaves like one built from a loaded config.
func NewServer(config ServerConfig, deps Deps) *Server {
	config.ApplyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(deps),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start binds the port and serves until ctx is cancelled, then drains
// in-flight requests for up to the configured shutdown timeout. It
// returns nil after a clean drain. Bind failures surface immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	logger.Info("API server listening", "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("API server draining", "timeout", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop drains in-flight requests and closes the listener. Safe to call
// more than once and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			logger.Error("API server shutdown failed", "error", err)
			stopErr = fmt.Errorf("shutdown: %w", err)
			return
		}
		logger.Info("API server stopped")
	})
	return stopErr
}

// Port reports the configured listen port.
func (s *Server) Port() int {
	return s.config.Port
}
