// Package server bootstraps umsd from configuration and runs its
// components until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/umsd/internal/adapter/usb"
	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/api"
	"github.com/marmos91/umsd/pkg/coherency"
	"github.com/marmos91/umsd/pkg/config"
	"github.com/marmos91/umsd/pkg/gate"
	"github.com/marmos91/umsd/pkg/heap"
	"github.com/marmos91/umsd/pkg/ipc"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage/backend"
	"github.com/marmos91/umsd/pkg/storage/backend/file"
	"github.com/marmos91/umsd/pkg/storage/ums"
	"github.com/marmos91/umsd/pkg/transport"
	"github.com/marmos91/umsd/pkg/wbfs"
)

// Options carries build information.
type Options struct {
	Version   string
	BuildDate string
}

// Banner returns the version line printed before bootstrap.
func (o Options) Banner() string {
	return fmt.Sprintf("$IOSVersion: USBS: %s %s $", o.BuildDate, o.Version)
}

// Server owns every runtime component.
type Server struct {
	cfg  *config.Config
	opts Options

	heap      *heap.Heap
	poller    *usb.Poller
	queue     *ipc.Queue
	registry  *ipc.Registry
	units     []backend.Backend
	device    *ums.Device
	disc      *wbfs.Reader
	gate      gate.Policy
	closeGate func() error
	service   *usb.Service
	watcher   *ums.Watcher
	transport *transport.Server
	api       *api.Server

	started   time.Time
	closeOnce sync.Once
}

// New runs the bootstrap: heap, timer, queue, device registration, then
// the storage stack and the service. Any failure releases what was built
// and returns a *BootstrapError.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	s := &Server{cfg: cfg, opts: opts}
	if err := s.bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func fail(stage string, status int32, err error) error {
	logger.Error("Bootstrap failed", "stage", stage, logger.Status(status), logger.Err(err))
	return &BootstrapError{Stage: stage, Status: status, Err: err}
}

func (s *Server) bootstrap(ctx context.Context) error {
	cfg := s.cfg

	h, err := heap.New(cfg.Service.HeapSize.Int())
	if err != nil {
		return fail(StageHeap, ipc.StatusENOMEM, err)
	}
	s.heap = h

	if cfg.Service.MountPollInterval < 0 {
		return fail(StageTimer, ipc.StatusEINVAL, fmt.Errorf("negative mount poll interval %v", cfg.Service.MountPollInterval))
	}

	if cfg.Service.QueueDepth <= 0 {
		return fail(StageQueue, ipc.StatusEINVAL, fmt.Errorf("queue depth %d", cfg.Service.QueueDepth))
	}
	s.queue = ipc.NewQueue(cfg.Service.QueueDepth)
	s.poller = usb.NewPoller(s.queue, cfg.Service.MountPollInterval)

	s.registry = ipc.NewRegistry()
	if err := s.registry.Register(cfg.Service.DeviceName, s.queue); err != nil {
		return fail(StageRegister, ipc.StatusEINVAL, err)
	}

	storageMetrics := metrics.NewStorageMetrics()
	for i, u := range cfg.Storage.Units {
		b, err := config.CreateBackend(ctx, u, storageMetrics)
		if err != nil {
			return fail(StageStorage, ipc.StatusENOENT, fmt.Errorf("unit %d: %w", i, err))
		}
		s.units = append(s.units, b)
		logger.Info("Logical unit ready", logger.Unit(uint32(i)),
			logger.KeyBackend, b.Name(),
			logger.KeySectorSize, b.SectorSize(),
			logger.KeySectorCount, b.SectorCount(),
			"read_only", b.ReadOnly())
	}

	device, err := ums.New(s.units, nil)
	if err != nil {
		return fail(StageStorage, ipc.StatusEINVAL, err)
	}
	s.device = device
	s.disc = wbfs.NewReader(device, cfg.WBFS.PartitionLBA)

	policy, closeGate, err := gate.New(cfg.Gate.Type, cfg.Gate.MarkerPath)
	if err != nil {
		return fail(StageGate, ipc.StatusEINVAL, err)
	}
	s.gate, s.closeGate = policy, closeGate

	cache, err := coherency.New(cfg.Coherency.Mode)
	if err != nil {
		return fail(StageCoherency, ipc.StatusEINVAL, err)
	}

	s.service = usb.NewService(cfg.Service.DeviceName, usb.Deps{
		Queue:   s.queue,
		Device:  device,
		Disc:    s.disc,
		Gate:    policy,
		Cache:   cache,
		Metrics: metrics.NewIPCMetrics(),
	})
	device.SetSelector(s.service.State().Unit)

	if cfg.Storage.Watch {
		if targets := s.watchTargets(); len(targets) > 0 {
			w, err := ums.NewWatcher(targets, s.service)
			if err != nil {
				return fail(StageWatch, ipc.StatusEINVAL, err)
			}
			s.watcher = w
		}
	}

	s.transport = transport.New(transport.Config{
		SocketPath:      cfg.Service.SocketPath,
		MaxConnections:  cfg.Service.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, s.registry, s.heap, metrics.NewConnectionMetrics())

	if cfg.API.IsEnabled() {
		var metricsHandler http.Handler
		if metrics.IsEnabled() {
			metricsHandler = metrics.Handler()
		}
		s.api = api.NewServer(cfg.API, s, metricsHandler)
	}

	return nil
}

// watchTargets lists the image files of file-backed units.
func (s *Server) watchTargets() []ums.Target {
	var targets []ums.Target
	for i, b := range s.units {
		fb, ok := b.(*file.Backend)
		if !ok {
			continue
		}
		targets = append(targets, ums.Target{Path: s.cfg.Storage.Units[i].File.Path, Reopen: fb.Reopen})
	}
	return targets
}

// Banner is the version line printed on start.
func (s *Server) Banner() string {
	return s.opts.Banner()
}

// Service returns the request loop.
func (s *Server) Service() *usb.Service { return s.service }

// Registry returns the device registry.
func (s *Server) Registry() *ipc.Registry { return s.registry }

// Transport returns the socket server.
func (s *Server) Transport() *transport.Server { return s.transport }

// API returns the HTTP status server, or nil when disabled.
func (s *Server) API() *api.Server { return s.api }

// Run serves until ctx is cancelled or a front end fails. Shutdown stops
// the front ends first so queued requests are still answered, then the
// service loop, then syncs and releases storage.
func (s *Server) Run(ctx context.Context) error {
	s.started = time.Now()
	logger.Info("Starting umsd", "version", s.opts.Version, logger.KeyPath, s.service.Name())

	serviceCtx, stopService := context.WithCancel(context.Background())
	defer stopService()
	frontCtx, stopFront := context.WithCancel(ctx)
	defer stopFront()

	var loop sync.WaitGroup
	loop.Go(func() {
		if err := s.service.Serve(serviceCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Service loop failed", logger.Err(err))
		}
	})
	loop.Go(func() { s.poller.Run(serviceCtx) })

	var front sync.WaitGroup
	errc := make(chan error, 2)
	front.Go(func() {
		if err := s.transport.Serve(frontCtx); err != nil {
			errc <- err
		}
	})
	if s.api != nil {
		front.Go(func() {
			if err := s.api.Start(frontCtx); err != nil {
				errc <- err
			}
		})
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case runErr = <-errc:
		logger.Error("Front end failed - initiating shutdown", logger.Err(runErr))
	}

	stopFront()
	front.Wait()
	stopService()
	loop.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.device.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Storage shutdown error", logger.Err(err))
	}

	s.Close()
	logger.Info("umsd stopped")
	return runErr
}

// Close releases every component. It is called by Run and is safe to call
// again.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		if s.closeGate != nil {
			_ = s.closeGate()
		}
		if s.registry != nil && s.queue != nil {
			s.registry.Unregister(s.cfg.Service.DeviceName)
		}
		if s.device != nil {
			if err := s.device.Close(); err != nil {
				logger.Warn("Storage close error", logger.Err(err))
			}
		} else {
			for _, b := range s.units {
				_ = b.Close()
			}
		}
		if s.heap != nil {
			_ = s.heap.Close()
		}
	})
}
