// Package ums implements the mass-storage device served by the dispatcher.
//
// A Device exposes up to storage.MaxUnits logical units, each backed by a
// backend.Backend. Sector I/O targets the unit returned by the selector,
// which is normally the session state of the request loop.
package ums

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/storage"
	"github.com/marmos91/umsd/pkg/storage/backend"
)

// Selector returns the currently selected logical unit.
type Selector func() uint32

// Device is a storage.Device over a fixed set of backends.
type Device struct {
	units    [storage.MaxUnits]backend.Backend
	selector Selector

	mu       sync.Mutex
	attached bool
	started  bool
}

// New creates a device. units[i] serves logical unit i; a nil entry leaves
// that unit unconfigured. A nil selector always selects unit 0.
func New(units []backend.Backend, sel Selector) (*Device, error) {
	if len(units) == 0 || len(units) > storage.MaxUnits {
		return nil, fmt.Errorf("ums: %d units configured, want 1..%d", len(units), storage.MaxUnits)
	}
	if sel == nil {
		sel = func() uint32 { return 0 }
	}

	d := &Device{selector: sel, attached: true}
	copy(d.units[:], units)
	return d, nil
}

// SetSelector replaces the unit selector. It must be called before the
// device is shared with the request loop.
func (d *Device) SetSelector(sel Selector) {
	d.selector = sel
}

// Unit returns the backend of logical unit i, or nil.
func (d *Device) Unit(i uint32) backend.Backend {
	if i >= storage.MaxUnits {
		return nil
	}
	return d.units[i]
}

// selected returns the backend of the selected unit after checking the
// device is usable for I/O.
func (d *Device) selected(requireStarted bool) (backend.Backend, uint32, error) {
	d.mu.Lock()
	attached, started := d.attached, d.started
	d.mu.Unlock()

	if !attached {
		return nil, 0, storage.ErrNoMedia
	}
	if requireStarted && !started {
		return nil, 0, storage.ErrNotStarted
	}

	unit := d.selector()
	b := d.Unit(unit)
	if b == nil {
		return nil, unit, fmt.Errorf("%w: unit %d", storage.ErrNoUnit, unit)
	}
	return b, unit, nil
}

// Startup checks that media is attached and every configured unit is
// reachable.
func (d *Device) Startup(ctx context.Context) error {
	ctx, span := telemetry.StartStorageSpan(ctx, "ums", "startup")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attached {
		return storage.ErrNoMedia
	}
	for i, b := range d.units {
		if b == nil {
			continue
		}
		if err := b.HealthCheck(ctx); err != nil {
			d.started = false
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("%w: unit %d: %w", storage.ErrNoMedia, i, err)
		}
	}

	if !d.started {
		logger.InfoCtx(ctx, "Mass storage started", "units", d.configured())
	}
	d.started = true
	return nil
}

func (d *Device) configured() int {
	n := 0
	for _, b := range d.units {
		if b != nil {
			n++
		}
	}
	return n
}

// transfer validates a sector transfer and returns the slice to move.
func transfer(b backend.Backend, count uint32, buf []byte) ([]byte, error) {
	n := uint64(count) * uint64(b.SectorSize())
	if n > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: %d sectors need %d bytes, buffer has %d", storage.ErrOutOfRange, count, n, len(buf))
	}
	return buf[:n], nil
}

// ReadSectors reads count sectors of the selected unit into buf.
func (d *Device) ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	b, unit, err := d.selected(true)
	if err != nil {
		return err
	}
	p, err := transfer(b, count, buf)
	if err != nil {
		return err
	}
	if err := b.ReadAt(ctx, p, sector); err != nil {
		return fmt.Errorf("ums: read unit %d: %w", unit, err)
	}
	return nil
}

// WriteSectors writes count sectors from buf to the selected unit.
func (d *Device) WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	b, unit, err := d.selected(true)
	if err != nil {
		return err
	}
	if b.ReadOnly() {
		return fmt.Errorf("%w: unit %d", storage.ErrReadOnly, unit)
	}
	p, err := transfer(b, count, buf)
	if err != nil {
		return err
	}
	if err := b.WriteAt(ctx, p, sector); err != nil {
		return fmt.Errorf("ums: write unit %d: %w", unit, err)
	}
	return nil
}

// ReadCapacity returns the geometry of the selected unit.
func (d *Device) ReadCapacity(context.Context) (uint32, uint32, error) {
	b, _, err := d.selected(true)
	if err != nil {
		return 0, 0, err
	}
	return b.SectorSize(), b.SectorCount(), nil
}

// IsInserted reports whether media is attached and the selected unit
// answers a health check.
func (d *Device) IsInserted(ctx context.Context) bool {
	b, _, err := d.selected(false)
	if err != nil {
		return false
	}
	return b.HealthCheck(ctx) == nil
}

// Shutdown syncs every writable unit and stops the device. Backends stay
// open; Close releases them.
func (d *Device) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for i, b := range d.units {
		if b == nil || b.ReadOnly() {
			continue
		}
		if err := b.Sync(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ums: sync unit %d: %w", i, err))
		}
	}
	if d.started {
		logger.InfoCtx(ctx, "Mass storage stopped")
	}
	d.started = false
	return errors.Join(errs...)
}

// DeviceChange handles a device-change notification. A result <= 0 means
// the medium went away; the device must be started again after it returns.
func (d *Device) DeviceChange(result int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if result <= 0 {
		if d.attached {
			logger.Info("Mass storage detached", logger.KeyStatus, result)
		}
		d.attached = false
		d.started = false
		return
	}
	logger.Debug("Mass storage change pending attach", logger.KeyStatus, result)
}

// AttachFinish handles completion of an attach. Zero marks the medium
// attached; any other value leaves it detached.
func (d *Device) AttachFinish(result int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if result != 0 {
		logger.Warn("Mass storage attach failed", logger.KeyStatus, result)
		d.attached = false
		return
	}
	if !d.attached {
		logger.Info("Mass storage attached")
	}
	d.attached = true
}

// Attached reports whether media is attached.
func (d *Device) Attached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached
}

// Started reports whether Startup succeeded since the last Shutdown or
// detach.
func (d *Device) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Close closes every backend.
func (d *Device) Close() error {
	var errs []error
	for _, b := range d.units {
		if b != nil {
			errs = append(errs, b.Close())
		}
	}
	return errors.Join(errs...)
}

var _ storage.Device = (*Device)(nil)
