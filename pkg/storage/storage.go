// Package storage defines the mass-storage device contract consumed by the
// request dispatcher and the disc-image layer.
package storage

import (
	"context"
	"errors"
)

// Common errors returned by Device implementations.
var (
	// ErrNotStarted is returned for I/O before a successful Startup.
	ErrNotStarted = errors.New("storage: device not started")

	// ErrNoMedia is returned when no medium is attached.
	ErrNoMedia = errors.New("storage: no media")

	// ErrOutOfRange is returned when a transfer exceeds the unit capacity
	// or the supplied buffer.
	ErrOutOfRange = errors.New("storage: sector range out of bounds")

	// ErrReadOnly is returned when writing to a read-only unit.
	ErrReadOnly = errors.New("storage: unit is read-only")

	// ErrNoUnit is returned when the selected logical unit has no backend.
	ErrNoUnit = errors.New("storage: logical unit not configured")
)

// MaxUnits is the number of addressable logical units.
const MaxUnits = 2

// Device is a sector-addressed mass-storage device with up to MaxUnits
// logical units. Sector I/O targets the currently selected unit.
type Device interface {
	// Startup performs the device handshake. It fails with ErrNoMedia when
	// nothing is attached.
	Startup(ctx context.Context) error

	// ReadSectors reads count sectors starting at sector into buf.
	ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error

	// WriteSectors writes count sectors starting at sector from buf.
	WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error

	// ReadCapacity returns the sector size and sector count of the
	// selected unit.
	ReadCapacity(ctx context.Context) (sectorSize, sectorCount uint32, err error)

	// IsInserted reports whether media is present on the selected unit.
	IsInserted(ctx context.Context) bool

	// Shutdown ends the device session. The device can be started again.
	Shutdown(ctx context.Context) error

	// DeviceChange delivers the result of a device-change notification.
	DeviceChange(result int32)

	// AttachFinish delivers the result of an attach-completion notification.
	AttachFinish(result int32)
}
