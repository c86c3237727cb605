// Package backend defines the sector stores behind a logical unit.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/umsd/pkg/storage"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("backend: closed")

// DefaultSectorSize is used when a backend is configured without one.
const DefaultSectorSize = 512

// Backend stores the sectors of one logical unit.
//
// ReadAt and WriteAt transfer whole sectors: len(buf) must be a multiple of
// SectorSize and the range must lie within SectorCount.
type Backend interface {
	// Name identifies the implementation ("memory", "file", "s3", "badger").
	Name() string

	SectorSize() uint32
	SectorCount() uint32

	ReadAt(ctx context.Context, buf []byte, sector uint32) error
	WriteAt(ctx context.Context, buf []byte, sector uint32) error

	// ReadOnly reports whether writes are rejected.
	ReadOnly() bool

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Sync makes completed writes durable.
	Sync(ctx context.Context) error

	Close() error
}

// Geometry is the sector layout of a backend.
type Geometry struct {
	SectorSize  uint32
	SectorCount uint32
}

// Validate checks the geometry is usable.
func (g Geometry) Validate() error {
	if g.SectorSize == 0 || g.SectorSize&(g.SectorSize-1) != 0 {
		return fmt.Errorf("backend: sector size %d is not a power of two", g.SectorSize)
	}
	if g.SectorCount == 0 {
		return fmt.Errorf("backend: sector count must be positive")
	}
	return nil
}

// Bytes returns the capacity in bytes.
func (g Geometry) Bytes() int64 {
	return int64(g.SectorSize) * int64(g.SectorCount)
}

// CheckRange verifies that a transfer of n bytes starting at sector fits g.
func CheckRange(g Geometry, sector uint32, n int) error {
	if n%int(g.SectorSize) != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of %d-byte sectors", storage.ErrOutOfRange, n, g.SectorSize)
	}
	count := uint64(n) / uint64(g.SectorSize)
	if uint64(sector)+count > uint64(g.SectorCount) {
		return fmt.Errorf("%w: sectors [%d, %d) beyond %d", storage.ErrOutOfRange, sector, uint64(sector)+count, g.SectorCount)
	}
	return nil
}
