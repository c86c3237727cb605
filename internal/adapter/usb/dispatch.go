package usb

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/coherency"
	"github.com/marmos91/umsd/pkg/ipc"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage"
)

// DiscImage is the disc-image layer behind the WBFS commands.
type DiscImage interface {
	// Open selects the disc with the given identifier and returns a status
	// that is passed to the client unchanged.
	Open(ctx context.Context, id []byte) int32

	// Read reads length bytes at offset (in 4-byte words) of the open disc.
	Read(ctx context.Context, buf []byte, length, offset uint32) error
}

// Dispatcher executes IOCTLV commands against the storage and disc-image
// layers. It is the single place where errors become protocol statuses.
type Dispatcher struct {
	state   *State
	device  storage.Device
	disc    DiscImage
	cache   coherency.Cache
	metrics metrics.IPCMetrics
}

// NewDispatcher creates a dispatcher. cache and m may be nil.
func NewDispatcher(state *State, device storage.Device, disc DiscImage, cache coherency.Cache, m metrics.IPCMetrics) *Dispatcher {
	if cache == nil {
		cache = coherency.Noop{}
	}
	return &Dispatcher{state: state, device: device, disc: disc, cache: cache, metrics: m}
}

// ============================================================================
// Dispatch Table
// ============================================================================

// request is the decoded view of an IOCTLV vector handed to a handler.
type request struct {
	vector [][]byte
	numIn  int
	numIO  int
}

// handlerFunc executes one command and returns its acknowledgment status.
type handlerFunc func(ctx context.Context, d *Dispatcher, req *request) int32

// command describes one dispatch table entry.
type command struct {
	// Name is the command name used in logs, traces and metrics.
	Name string

	// Handler executes the command.
	Handler handlerFunc
}

// dispatchTable maps command codes to handlers. Legacy USB and UMS aliases
// share one entry.
var dispatchTable map[uint32]*command

func init() {
	initDispatchTable()
}

func initDispatchTable() {
	initCmd := &command{Name: "INIT", Handler: handleInit}
	readCmd := &command{Name: "READ_SECTORS", Handler: handleReadSectors}
	writeCmd := &command{Name: "WRITE_SECTORS", Handler: handleWriteSectors}

	dispatchTable = map[uint32]*command{
		CmdUSBInit:         initCmd,
		CmdUMSInit:         initCmd,
		CmdUSBRead:         readCmd,
		CmdUMSReadSectors:  readCmd,
		CmdUSBWrite:        writeCmd,
		CmdUMSWriteSectors: writeCmd,
		CmdUSBIsInserted: {
			Name:    "IS_INSERTED",
			Handler: handleIsInserted,
		},
		CmdUSBUnmount: {
			Name:    "UNMOUNT",
			Handler: handleUnmount,
		},
		CmdUMSGetCapacity: {
			Name:    "GET_CAPACITY",
			Handler: handleGetCapacity,
		},
		CmdUMSSetDrive: {
			Name:    "SET_DRIVE",
			Handler: handleSetDrive,
		},
		CmdWBFSOpenDisc: {
			Name:    "WBFS_OPEN_DISC",
			Handler: handleOpenDisc,
		},
		CmdWBFSReadDisc: {
			Name:    "WBFS_READ_DISC",
			Handler: handleReadDisc,
		},
	}
}

// ============================================================================
// Dispatch Entry Point
// ============================================================================

// Dispatch runs one IOCTLV command. The first numIn vector entries are
// inputs and the next numIO are input/output. Every declared buffer is
// invalidated before the command runs and every input/output buffer is
// flushed after it, whatever the command code and outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, code uint32, vector [][]byte, numIn, numIO int) int32 {
	req := &request{vector: vector, numIn: max(numIn, 0), numIO: max(numIO, 0)}

	inEnd := min(req.numIn, len(vector))
	ioEnd := min(req.numIn+req.numIO, len(vector))

	for _, buf := range vector[:ioEnd] {
		d.cache.Invalidate(buf)
	}
	defer func() {
		for _, buf := range vector[inEnd:ioEnd] {
			d.cache.Flush(buf)
		}
	}()

	cmd, ok := dispatchTable[code]
	if !ok {
		logger.DebugCtx(ctx, "Unknown command", logger.KeyCode, code)
		return ipc.StatusEINVAL
	}

	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithCommand(cmd.Name))
	}

	ctx, span := telemetry.StartDispatchSpan(ctx, cmd.Name, code, telemetry.Unit(d.state.Unit()))
	defer span.End()

	start := time.Now()
	status := cmd.Handler(ctx, d, req)

	telemetry.SetAttributes(ctx, telemetry.Status(status))
	logger.DebugCtx(ctx, "Command complete",
		logger.KeyStatus, status,
		logger.KeyUnit, d.state.Unit(),
		logger.KeyDurationMs, logger.Duration(start))

	return status
}

// ============================================================================
// Vector Access
// ============================================================================

// word returns vector entry i as a big-endian uint32.
func (r *request) word(i int) (uint32, bool) {
	b, ok := r.buffer(i, 4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

// buffer returns vector entry i if it is declared and at least minLen long.
func (r *request) buffer(i, minLen int) ([]byte, bool) {
	if i >= r.numIn+r.numIO || i >= len(r.vector) {
		return nil, false
	}
	b := r.vector[i]
	if len(b) < minLen {
		return nil, false
	}
	return b, true
}

// ok inverts a storage error into the boolean status space: 0 on success.
func ok(err error) int32 {
	if err != nil {
		return StatusStorageFailure
	}
	return ipc.StatusOK
}

func (d *Dispatcher) recordBytes(direction string, n int) {
	if d.metrics != nil {
		d.metrics.RecordBytes(direction, n)
	}
}

// ============================================================================
// Command Handlers
// ============================================================================

func handleInit(ctx context.Context, d *Dispatcher, _ *request) int32 {
	err := d.device.Startup(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Device startup failed", logger.Err(err))
		telemetry.RecordError(ctx, err)
	}
	return ok(err)
}

// sectorArgs decodes the [sector][count][data] layout shared by reads and writes.
func sectorArgs(req *request) (sector, count uint32, buf []byte, valid bool) {
	sector, ok1 := req.word(0)
	count, ok2 := req.word(1)
	buf, ok3 := req.buffer(2, 0)
	return sector, count, buf, ok1 && ok2 && ok3
}

func handleReadSectors(ctx context.Context, d *Dispatcher, req *request) int32 {
	sector, count, buf, valid := sectorArgs(req)
	if !valid {
		return ipc.StatusEINVAL
	}
	telemetry.SetAttributes(ctx, telemetry.Sector(sector), telemetry.Count(count))

	if err := d.device.ReadSectors(ctx, sector, count, buf); err != nil {
		logger.WarnCtx(ctx, "Sector read failed", logger.Sector(sector), logger.Count(count), logger.Err(err))
		telemetry.RecordError(ctx, err)
		return StatusStorageFailure
	}
	d.recordBytes("read", len(buf))
	return ipc.StatusOK
}

func handleWriteSectors(ctx context.Context, d *Dispatcher, req *request) int32 {
	sector, count, buf, valid := sectorArgs(req)
	if !valid {
		return ipc.StatusEINVAL
	}
	telemetry.SetAttributes(ctx, telemetry.Sector(sector), telemetry.Count(count))

	if err := d.device.WriteSectors(ctx, sector, count, buf); err != nil {
		logger.WarnCtx(ctx, "Sector write failed", logger.Sector(sector), logger.Count(count), logger.Err(err))
		telemetry.RecordError(ctx, err)
		return StatusStorageFailure
	}
	d.recordBytes("write", len(buf))
	return ipc.StatusOK
}

func handleIsInserted(ctx context.Context, d *Dispatcher, _ *request) int32 {
	if d.device.IsInserted(ctx) {
		return ipc.StatusOK
	}
	return StatusStorageFailure
}

func handleUnmount(ctx context.Context, d *Dispatcher, _ *request) int32 {
	err := d.device.Shutdown(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Device shutdown failed", logger.Err(err))
	}
	return ok(err)
}

// handleGetCapacity writes the sector size into the output buffer and
// returns the sector count as the status. Clients depend on this overlay.
func handleGetCapacity(ctx context.Context, d *Dispatcher, req *request) int32 {
	out, valid := req.buffer(0, 4)
	if !valid {
		return ipc.StatusEINVAL
	}

	sectorSize, sectorCount, err := d.device.ReadCapacity(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Capacity query failed", logger.Err(err))
		telemetry.RecordError(ctx, err)
		return StatusStorageFailure
	}

	binary.BigEndian.PutUint32(out, sectorSize)
	return int32(sectorCount)
}

func handleSetDrive(ctx context.Context, d *Dispatcher, req *request) int32 {
	unit, valid := req.word(0)
	if !valid {
		return ipc.StatusEINVAL
	}
	if !d.state.SetUnit(unit) {
		logger.DebugCtx(ctx, "Rejected logical unit", logger.Unit(unit))
		return StatusBadUnit
	}
	if d.metrics != nil {
		d.metrics.SetSelectedUnit(unit)
	}
	return int32(unit)
}

func handleOpenDisc(ctx context.Context, d *Dispatcher, req *request) int32 {
	id, valid := req.buffer(0, DiscIDLen)
	if !valid {
		return ipc.StatusEINVAL
	}
	id = id[:DiscIDLen]
	telemetry.SetAttributes(ctx, telemetry.DiscID(id))

	status := d.disc.Open(ctx, id)
	logger.DebugCtx(ctx, "Disc open", logger.DiscID(id), logger.KeyStatus, status)
	return status
}

func handleReadDisc(ctx context.Context, d *Dispatcher, req *request) int32 {
	offset, ok1 := req.word(0)
	length, ok2 := req.word(1)
	buf, ok3 := req.buffer(2, 0)
	if !ok1 || !ok2 || !ok3 || uint64(length) > uint64(len(buf)) {
		return ipc.StatusEINVAL
	}

	if err := d.disc.Read(ctx, buf, length, offset); err != nil {
		logger.WarnCtx(ctx, "Disc read failed",
			logger.KeyOffset, offset,
			logger.KeyLength, length,
			logger.Err(err))
		telemetry.RecordError(ctx, err)
		return StatusDiscReadFailure
	}
	d.recordBytes("read", int(length))
	return ipc.StatusOK
}
