// Package coherency provides the cache maintenance primitives applied to
// request buffers before and after a command touches them.
package coherency

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/marmos91/umsd/internal/logger"
)

// Cache makes buffers coherent between the service and the other side of a
// shared mapping.
type Cache interface {
	// Invalidate makes buf reflect the latest externally written data.
	Invalidate(buf []byte)

	// Flush pushes local writes in buf to where the other side observes them.
	Flush(buf []byte)
}

// Noop is a Cache for buffers in ordinary process memory.
type Noop struct{}

func (Noop) Invalidate([]byte) {}
func (Noop) Flush([]byte)      {}

// Msync flushes buffers that live in a shared mapping (the heap arena) to
// the backing object with msync(2). Invalidate issues MS_INVALIDATE, Flush
// issues MS_SYNC. Buffers outside any mapping make msync fail with ENOMEM,
// which is ignored.
type Msync struct{}

func (Msync) Invalidate(buf []byte) { msync(buf, unix.MS_INVALIDATE) }
func (Msync) Flush(buf []byte)      { msync(buf, unix.MS_SYNC) }

var pageSize = uintptr(unix.Getpagesize())

func msync(buf []byte, flags int) {
	if len(buf) == 0 {
		return
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	end := start + uintptr(len(buf))
	aligned := start &^ (pageSize - 1)

	_, _, errno := unix.Syscall(unix.SYS_MSYNC, aligned, end-aligned, uintptr(flags))
	runtime.KeepAlive(buf)
	if errno != 0 && errno != unix.ENOMEM {
		logger.Debug("msync failed", logger.KeyLength, len(buf), logger.Err(errno))
	}
}

// Op is one recorded cache operation.
type Op struct {
	Flush bool // false for Invalidate
	Len   int
	Data  *byte // address of the first byte, for identity checks
}

func (o Op) String() string {
	name := "invalidate"
	if o.Flush {
		name = "flush"
	}
	return fmt.Sprintf("%s(%d)", name, o.Len)
}

// Recorder is a Cache that records every call in order.
type Recorder struct {
	mu  sync.Mutex
	ops []Op
}

func (r *Recorder) Invalidate(buf []byte) { r.record(false, buf) }
func (r *Recorder) Flush(buf []byte)      { r.record(true, buf) }

func (r *Recorder) record(flush bool, buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Flush: flush, Len: len(buf), Data: unsafe.SliceData(buf)})
}

// Ops returns a copy of the recorded operations.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

// New returns the Cache for a configured mode ("none" or "msync").
func New(mode string) (Cache, error) {
	switch mode {
	case "", "none":
		return Noop{}, nil
	case "msync":
		return Msync{}, nil
	default:
		return nil, fmt.Errorf("coherency: unknown mode %q", mode)
	}
}
