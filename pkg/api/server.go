package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/api/handlers"
)

// Server is the HTTP status server.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /status: Service status
//   - GET /metrics: Prometheus metrics
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer creates a stopped API server. Call Start to begin serving.
//
// source may be nil, in which case readiness and status report the service
// as not initialized. metricsHandler may be nil to disable /metrics.
func NewServer(config APIConfig, source handlers.Source, metricsHandler http.Handler) *Server {
	config.ApplyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         net.JoinHostPort(config.BindAddress, strconv.Itoa(config.Port)),
			Handler:      NewRouter(source, metricsHandler),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		ready:  make(chan struct{}),
	}
}

// Start serves until ctx is cancelled or the listener fails. Cancellation
// triggers a graceful shutdown and a nil return.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// ctx is already cancelled; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.config.Port
}
