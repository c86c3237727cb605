// Package transport bridges external processes to the request queues over a
// unix stream socket. Each frame is an ipc.Request; the server turns it into
// an ipc.Message, submits it to the queue registered for the handle's device
// and answers with an ipc.Reply.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/ipc"
)

// DefaultSocketPath is used when Config.SocketPath is empty.
const DefaultSocketPath = "/run/umsd/umsd.sock"

// Config configures the socket server.
type Config struct {
	// SocketPath is the unix socket to listen on. A stale socket file is
	// removed before listening.
	SocketPath string

	// MaxConnections limits concurrent clients. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds the wait for connections during Stop.
	ShutdownTimeout time.Duration
}

// Allocator provides request buffers. *heap.Heap satisfies it.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(b []byte) error
}

// MetricsRecorder observes connection lifecycle. May be nil.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// Server accepts client connections.
type Server struct {
	cfg      Config
	registry *ipc.Registry
	alloc    Allocator
	metrics  MetricsRecorder

	listenerMu sync.RWMutex
	listener   net.Listener
	ready      chan struct{}

	activeConns  sync.WaitGroup
	connCount    atomic.Int32
	conns        sync.Map // *connection -> struct{}
	sem          chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once

	requestCtx    context.Context
	cancelRequest context.CancelFunc
}

// New creates a server routing OPEN paths through registry. alloc and m may
// be nil; without an allocator request buffers are ordinary Go slices.
func New(cfg Config, registry *ipc.Registry, alloc Allocator, m MetricsRecorder) *Server {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:           cfg,
		registry:      registry,
		alloc:         alloc,
		metrics:       m,
		ready:         make(chan struct{}),
		sem:           sem,
		shutdown:      make(chan struct{}),
		requestCtx:    ctx,
		cancelRequest: cancel,
	}
}

// Ready is closed once the socket is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the listening address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveConnections returns the number of connected clients.
func (s *Server) ActiveConnections() int32 { return s.connCount.Load() }

// Serve listens and accepts connections until ctx is cancelled or Stop is
// called. It returns nil after a graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("transport: remove stale socket %s: %w", s.cfg.SocketPath, err)
	}
	l, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.cfg.SocketPath, err)
	}

	s.listenerMu.Lock()
	s.listener = l
	s.listenerMu.Unlock()
	close(s.ready)
	logger.Info("Socket transport listening", logger.KeyPath, s.cfg.SocketPath)

	go func() {
		select {
		case <-ctx.Done():
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		nc, err := l.Accept()
		if err != nil {
			if s.sem != nil {
				<-s.sem
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Accept failed", logger.Err(err))
				continue
			}
		}

		c := newConnection(s, nc)
		s.activeConns.Add(1)
		count := s.connCount.Add(1)
		s.conns.Store(c, struct{}{})
		if s.metrics != nil {
			s.metrics.RecordConnectionAccepted()
			s.metrics.SetActiveConnections(count)
		}
		logger.Debug("Client connected", logger.KeyPeer, c.peer, "active", count)

		go func() {
			defer func() {
				s.conns.Delete(c)
				s.activeConns.Done()
				count := s.connCount.Add(-1)
				if s.sem != nil {
					<-s.sem
				}
				if s.metrics != nil {
					s.metrics.RecordConnectionClosed()
					s.metrics.SetActiveConnections(count)
				}
				logger.Debug("Client disconnected", logger.KeyPeer, c.peer, "active", count)
			}()
			c.serve(s.requestCtx)
		}()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.Unlock()

		// Unblock frame reads; requests already queued still complete.
		deadline := time.Now().Add(100 * time.Millisecond)
		s.conns.Range(func(k, _ any) bool {
			_ = k.(*connection).conn.SetReadDeadline(deadline)
			return true
		})
		s.cancelRequest()
	})
}

func (s *Server) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Socket transport stopped")
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Shutdown timeout exceeded, closing connections", "active", remaining)
		s.conns.Range(func(k, _ any) bool {
			if err := k.(*connection).conn.Close(); err == nil && s.metrics != nil {
				s.metrics.RecordConnectionForceClosed()
			}
			return true
		})
		return fmt.Errorf("transport: shutdown timeout: %d connections force-closed", remaining)
	}
}

// Stop initiates shutdown. Serve returns once connections drain.
func (s *Server) Stop() {
	s.initiateShutdown()
}
