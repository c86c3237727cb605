// Package file provides a sector backend over a raw disk image file.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage"
	"github.com/marmos91/umsd/pkg/storage/backend"
)

// Config holds configuration for a file backend.
type Config struct {
	// Path is the image file.
	Path string

	// SectorSize defaults to 512.
	SectorSize uint32

	// Size creates the image with this many bytes when it does not exist.
	// Zero requires the file to exist.
	Size int64

	// ReadOnly opens the image read-only with a shared lock.
	ReadOnly bool
}

// Backend serves sectors from an image file held under an flock(2) so two
// daemons cannot serve the same image.
type Backend struct {
	cfg      Config
	path     string
	f        *os.File
	geometry backend.Geometry
	readOnly bool
	metrics  metrics.StorageMetrics

	mu     sync.RWMutex
	closed bool
}

// New opens (or creates) the image described by cfg.
func New(cfg Config, m metrics.StorageMetrics) (*Backend, error) {
	if cfg.SectorSize == 0 {
		cfg.SectorSize = backend.DefaultSectorSize
	}

	f, g, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{cfg: cfg, path: cfg.Path, f: f, geometry: g, readOnly: cfg.ReadOnly, metrics: m}, nil
}

// open opens and locks the image and derives its geometry.
func open(cfg Config) (*os.File, backend.Geometry, error) {
	flags := os.O_RDWR
	lock := unix.LOCK_EX
	if cfg.ReadOnly {
		flags = os.O_RDONLY
		lock = unix.LOCK_SH
	} else if cfg.Size > 0 {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(cfg.Path, flags, 0o644)
	if err != nil {
		return nil, backend.Geometry{}, fmt.Errorf("file backend: open %s: %w", cfg.Path, err)
	}

	fail := func(err error) (*os.File, backend.Geometry, error) {
		_ = f.Close()
		return nil, backend.Geometry{}, err
	}

	if err := unix.Flock(int(f.Fd()), lock|unix.LOCK_NB); err != nil {
		return fail(fmt.Errorf("file backend: lock %s: %w", cfg.Path, err))
	}

	st, err := f.Stat()
	if err != nil {
		return fail(fmt.Errorf("file backend: stat %s: %w", cfg.Path, err))
	}

	size := st.Size()
	if size == 0 && cfg.Size > 0 && !cfg.ReadOnly {
		if err := f.Truncate(cfg.Size); err != nil {
			return fail(fmt.Errorf("file backend: size %s: %w", cfg.Path, err))
		}
		size = cfg.Size
		logger.Info("Created image file", logger.KeyPath, cfg.Path, logger.KeyLength, size)
	}

	g := backend.Geometry{SectorSize: cfg.SectorSize, SectorCount: uint32(size / int64(cfg.SectorSize))}
	if err := g.Validate(); err != nil {
		return fail(fmt.Errorf("file backend: %s: %w", cfg.Path, err))
	}
	return f, g, nil
}

// Reopen replaces the open image with whatever file now exists at the
// configured path. It is used when the image is swapped while the daemon
// runs; the geometry is re-read from the new file.
func (b *Backend) Reopen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}

	// Release the old lock first: the new path may be the same inode.
	_ = unix.Flock(int(b.f.Fd()), unix.LOCK_UN)
	_ = b.f.Close()

	f, g, err := open(b.cfg)
	if err != nil {
		b.closed = true
		return err
	}
	b.f, b.geometry = f, g
	logger.Info("Image reopened", logger.KeyPath, b.path, logger.KeySectorCount, g.SectorCount)
	return nil
}

func (b *Backend) Name() string { return "file" }
func (b *Backend) Path() string { return b.path }

func (b *Backend) SectorSize() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.geometry.SectorSize
}

func (b *Backend) SectorCount() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.geometry.SectorCount
}

func (b *Backend) ReadOnly() bool { return b.readOnly }

func (b *Backend) ReadAt(_ context.Context, buf []byte, sector uint32) (err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}
	if err := backend.CheckRange(b.geometry, sector, len(buf)); err != nil {
		return err
	}

	start := time.Now()
	defer func() { metrics.ObserveOperation(b.metrics, "file", "read", time.Since(start), err) }()

	n, err := b.f.ReadAt(buf, int64(sector)*int64(b.geometry.SectorSize))
	if err != nil {
		return fmt.Errorf("file backend: read %s: %w", b.path, err)
	}
	metrics.RecordBytes(b.metrics, "file", "read", int64(n))
	return nil
}

func (b *Backend) WriteAt(_ context.Context, buf []byte, sector uint32) (err error) {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}
	if err := backend.CheckRange(b.geometry, sector, len(buf)); err != nil {
		return err
	}

	start := time.Now()
	defer func() { metrics.ObserveOperation(b.metrics, "file", "write", time.Since(start), err) }()

	n, err := b.f.WriteAt(buf, int64(sector)*int64(b.geometry.SectorSize))
	if err != nil {
		return fmt.Errorf("file backend: write %s: %w", b.path, err)
	}
	metrics.RecordBytes(b.metrics, "file", "write", int64(n))
	return nil
}

// HealthCheck verifies the image is still present and not truncated.
func (b *Backend) HealthCheck(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}
	st, err := os.Stat(b.path)
	if err != nil {
		return fmt.Errorf("file backend: %w", err)
	}
	if st.Size() < b.geometry.Bytes() {
		return fmt.Errorf("file backend: %s shrank to %d bytes", b.path, st.Size())
	}
	return nil
}

// Sync flushes file data with fdatasync(2).
func (b *Backend) Sync(context.Context) (err error) {
	if b.readOnly {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}

	start := time.Now()
	defer func() { metrics.ObserveOperation(b.metrics, "file", "sync", time.Since(start), err) }()
	return fdatasync(b.f)
}

// Close syncs, unlocks and closes the image.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if !b.readOnly {
		errs = append(errs, fdatasync(b.f))
	}
	errs = append(errs, unix.Flock(int(b.f.Fd()), unix.LOCK_UN), b.f.Close())
	return errors.Join(errs...)
}

var _ backend.Backend = (*Backend)(nil)
