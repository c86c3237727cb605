// Package memory provides an in-memory sector backend.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/umsd/pkg/storage"
	"github.com/marmos91/umsd/pkg/storage/backend"
)

// Backend keeps all sectors in a byte slice.
type Backend struct {
	mu       sync.RWMutex
	geometry backend.Geometry
	data     []byte
	readOnly bool
	closed   bool
}

// New allocates a zeroed unit with the given geometry.
func New(g backend.Geometry, readOnly bool) (*Backend, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Backend{geometry: g, data: make([]byte, g.Bytes()), readOnly: readOnly}, nil
}

// NewFromImage wraps an existing image. len(image) must be a whole number
// of sectors; the slice is used in place.
func NewFromImage(image []byte, sectorSize uint32, readOnly bool) (*Backend, error) {
	g := backend.Geometry{SectorSize: sectorSize}
	if sectorSize > 0 {
		g.SectorCount = uint32(len(image) / int(sectorSize))
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Backend{geometry: g, data: image[:g.Bytes()], readOnly: readOnly}, nil
}

func (b *Backend) Name() string        { return "memory" }
func (b *Backend) SectorSize() uint32  { return b.geometry.SectorSize }
func (b *Backend) SectorCount() uint32 { return b.geometry.SectorCount }
func (b *Backend) ReadOnly() bool      { return b.readOnly }

func (b *Backend) ReadAt(_ context.Context, buf []byte, sector uint32) error {
	if err := backend.CheckRange(b.geometry, sector, len(buf)); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}
	off := int64(sector) * int64(b.geometry.SectorSize)
	copy(buf, b.data[off:])
	return nil
}

func (b *Backend) WriteAt(_ context.Context, buf []byte, sector uint32) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	if err := backend.CheckRange(b.geometry, sector, len(buf)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}
	off := int64(sector) * int64(b.geometry.SectorSize)
	copy(b.data[off:], buf)
	return nil
}

func (b *Backend) HealthCheck(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}
	return nil
}

func (b *Backend) Sync(ctx context.Context) error { return b.HealthCheck(ctx) }

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

var _ backend.Backend = (*Backend)(nil)
