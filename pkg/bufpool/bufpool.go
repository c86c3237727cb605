// Package bufpool recycles frame buffers for the socket transport.
//
// Buffers come from a small number of size classes. A request for more
// than the largest class is allocated directly and dropped on Put, so an
// occasional huge transfer does not pin memory.
//
//	buf := bufpool.Get(n)
//	defer bufpool.Put(buf)
package bufpool

import (
	"slices"
	"sync"
)

// Default size classes.
const (
	// DefaultSmallSize fits control frames (open, close, capacity).
	DefaultSmallSize = 4 << 10

	// DefaultMediumSize fits typical sector transfers.
	DefaultMediumSize = 64 << 10

	// DefaultLargeSize fits a full chunk or WBFS read.
	DefaultLargeSize = 1 << 20
)

// Pool is a set of sync.Pools, one per size class.
type Pool struct {
	sizes []int // ascending
	pools []sync.Pool
}

// Config lists the size classes. Zero or negative entries are ignored and
// an empty list selects the defaults.
type Config struct {
	Sizes []int
}

// DefaultConfig returns the default classes.
func DefaultConfig() Config {
	return Config{Sizes: []int{DefaultSmallSize, DefaultMediumSize, DefaultLargeSize}}
}

// NewPool creates a pool. A nil cfg uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	var sizes []int
	if cfg != nil {
		for _, s := range cfg.Sizes {
			if s > 0 {
				sizes = append(sizes, s)
			}
		}
	}
	if len(sizes) == 0 {
		sizes = DefaultConfig().Sizes
	}
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)

	p := &Pool{sizes: sizes, pools: make([]sync.Pool, len(sizes))}
	for i, size := range sizes {
		p.pools[i].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// Sizes returns the size classes.
func (p *Pool) Sizes() []int {
	return slices.Clone(p.sizes)
}

// class returns the index of the smallest class holding n, or -1.
func (p *Pool) class(n int) int {
	i, _ := slices.BinarySearch(p.sizes, n)
	if i == len(p.sizes) {
		return -1
	}
	return i
}

// Get returns a slice of length n. Its capacity is the size class, so the
// caller may reslice up to cap. Contents are not cleared.
func (p *Pool) Get(n int) []byte {
	if n < 0 {
		n = 0
	}
	i := p.class(n)
	if i < 0 {
		return make([]byte, n)
	}
	buf := *p.pools[i].Get().(*[]byte)
	return buf[:n]
}

// Put returns buf to its class. Buffers whose capacity is not exactly a
// class size were not produced by Get and are left to the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	i, found := slices.BinarySearch(p.sizes, cap(buf))
	if !found {
		return
	}
	full := buf[:cap(buf)]
	p.pools[i].Put(&full)
}

var defaultPool = NewPool(nil)

// Get returns a buffer of length n from the default pool.
func Get(n int) []byte { return defaultPool.Get(n) }

// Put returns buf to the default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// GetUint32 is Get for wire lengths.
func GetUint32(n uint32) []byte { return defaultPool.Get(int(n)) }
