// Package heap provides the module heap: a fixed mmap'd arena with a
// first-fit allocator. Request buffers live here so coherency operations
// act on page-backed memory that is never moved by the Go runtime.
package heap

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Alignment of every allocation.
const Alignment = 32

var (
	// ErrNoMemory is returned when no free range is large enough.
	ErrNoMemory = errors.New("heap: out of memory")

	// ErrInvalidFree is returned for a buffer that is not a live allocation.
	ErrInvalidFree = errors.New("heap: invalid free")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("heap: closed")
)

type extent struct {
	off, size int
}

// Heap is a fixed-size arena. It is safe for concurrent use.
type Heap struct {
	mu     sync.Mutex
	mem    []byte
	free   []extent    // sorted by offset, never adjacent
	live   map[int]int // offset -> size
	closed bool
}

// Stats describes heap usage.
type Stats struct {
	Size        int `json:"size"`
	Used        int `json:"used"`
	Free        int `json:"free"`
	Allocations int `json:"allocations"`
	LargestFree int `json:"largest_free"`
}

// New maps an anonymous arena of size bytes, rounded up to the alignment.
func New(size int) (*Heap, error) {
	size = align(size)
	if size <= 0 {
		return nil, fmt.Errorf("heap: invalid size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("heap: mmap %d bytes: %w", size, err)
	}
	return &Heap{
		mem:  mem,
		free: []extent{{0, size}},
		live: make(map[int]int),
	}, nil
}

func align(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// Alloc returns a zeroed buffer of n bytes. The buffer's capacity is n.
func (h *Heap) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("heap: invalid allocation size %d", n)
	}
	size := align(n)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	for i, e := range h.free {
		if e.size < size {
			continue
		}
		if e.size == size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = extent{e.off + size, e.size - size}
		}
		h.live[e.off] = size

		b := h.mem[e.off : e.off+n : e.off+n]
		clear(b)
		return b, nil
	}
	return nil, fmt.Errorf("%w: %d bytes requested", ErrNoMemory, n)
}

// offset returns the arena offset of b, or -1 when b is not in the arena.
func (h *Heap) offset(b []byte) int {
	if cap(b) == 0 {
		return -1
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(h.mem)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if p < base || p >= base+uintptr(len(h.mem)) {
		return -1
	}
	return int(p - base)
}

// Contains reports whether b points into the arena.
func (h *Heap) Contains(b []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && h.offset(b) >= 0
}

// Free releases a buffer returned by Alloc.
func (h *Heap) Free(b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	off := h.offset(b)
	size, ok := h.live[off]
	if off < 0 || !ok {
		return ErrInvalidFree
	}
	delete(h.live, off)

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].off > off })
	h.free = append(h.free, extent{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = extent{off, size}

	// Coalesce with the following and then the preceding extent.
	if i+1 < len(h.free) && h.free[i].off+h.free[i].size == h.free[i+1].off {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].off+h.free[i-1].size == h.free[i].off {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
	return nil
}

// Stats returns current usage.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{Size: len(h.mem), Allocations: len(h.live)}
	for _, e := range h.free {
		s.Free += e.size
		s.LargestFree = max(s.LargestFree, e.size)
	}
	s.Used = s.Size - s.Free
	return s
}

// Close unmaps the arena. Buffers returned by Alloc must not be used
// afterwards.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.live = nil
	h.free = nil
	return unix.Munmap(h.mem)
}
