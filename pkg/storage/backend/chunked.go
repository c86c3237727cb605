package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage"
)

// DefaultChunkSize is the object size used by chunked backends.
const DefaultChunkSize = 1 << 20

// ChunkStore persists fixed-size chunks addressed by index. A chunk that was
// never written reads as zeroes.
type ChunkStore interface {
	// ReadChunk fills p with the bytes of chunk idx starting at off.
	ReadChunk(ctx context.Context, idx uint64, off int, p []byte) error

	// WriteChunk replaces chunk idx with data (exactly one chunk).
	WriteChunk(ctx context.Context, idx uint64, data []byte) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// Chunked adapts a ChunkStore to Backend. Sector writes that cover part of
// a chunk read the chunk, patch it and write it back; writes to the same
// chunk are serialised.
type Chunked struct {
	name      string
	geometry  Geometry
	chunkSize int
	readOnly  bool
	store     ChunkStore
	metrics   metrics.StorageMetrics

	mu     sync.Mutex // serialises read-modify-write
	closed bool
}

// ChunkedConfig configures a Chunked backend.
type ChunkedConfig struct {
	Name      string
	Geometry  Geometry
	ChunkSize int
	ReadOnly  bool
	Metrics   metrics.StorageMetrics
}

// NewChunked wraps store. The chunk size must be a positive multiple of the
// sector size.
func NewChunked(store ChunkStore, cfg ChunkedConfig) (*Chunked, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize < 0 || cfg.ChunkSize%int(cfg.Geometry.SectorSize) != 0 {
		return nil, fmt.Errorf("backend: chunk size %d is not a multiple of sector size %d", cfg.ChunkSize, cfg.Geometry.SectorSize)
	}
	return &Chunked{
		name:      cfg.Name,
		geometry:  cfg.Geometry,
		chunkSize: cfg.ChunkSize,
		readOnly:  cfg.ReadOnly,
		store:     store,
		metrics:   cfg.Metrics,
	}, nil
}

func (c *Chunked) Name() string        { return c.name }
func (c *Chunked) SectorSize() uint32  { return c.geometry.SectorSize }
func (c *Chunked) SectorCount() uint32 { return c.geometry.SectorCount }
func (c *Chunked) ReadOnly() bool      { return c.readOnly }

// span is the part of one chunk touched by a transfer.
type span struct {
	idx    uint64
	off    int // offset inside the chunk
	bufOff int // offset inside the caller buffer
	n      int
}

func (c *Chunked) spans(sector uint32, n int) []span {
	pos := int64(sector) * int64(c.geometry.SectorSize)
	cs := int64(c.chunkSize)

	var out []span
	for done := 0; done < n; {
		idx := (pos + int64(done)) / cs
		off := int((pos + int64(done)) % cs)
		l := min(c.chunkSize-off, n-done)
		out = append(out, span{idx: uint64(idx), off: off, bufOff: done, n: l})
		done += l
	}
	return out
}

func (c *Chunked) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ReadAt reads whole sectors.
func (c *Chunked) ReadAt(ctx context.Context, buf []byte, sector uint32) (err error) {
	if c.isClosed() {
		return ErrClosed
	}
	if err := CheckRange(c.geometry, sector, len(buf)); err != nil {
		return err
	}

	ctx, sp := telemetry.StartStorageSpan(ctx, c.name, "read", telemetry.Sector(sector), telemetry.Bytes(len(buf)))
	defer sp.End()
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(c.metrics, c.name, "read", time.Since(start), err)
		telemetry.RecordError(ctx, err)
	}()

	for _, s := range c.spans(sector, len(buf)) {
		if err := c.store.ReadChunk(ctx, s.idx, s.off, buf[s.bufOff:s.bufOff+s.n]); err != nil {
			return fmt.Errorf("%s: read chunk %d: %w", c.name, s.idx, err)
		}
	}
	metrics.RecordBytes(c.metrics, c.name, "read", int64(len(buf)))
	return nil
}

// WriteAt writes whole sectors.
func (c *Chunked) WriteAt(ctx context.Context, buf []byte, sector uint32) (err error) {
	if c.readOnly {
		return storage.ErrReadOnly
	}
	if err := CheckRange(c.geometry, sector, len(buf)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	ctx, sp := telemetry.StartStorageSpan(ctx, c.name, "write", telemetry.Sector(sector), telemetry.Bytes(len(buf)))
	defer sp.End()
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(c.metrics, c.name, "write", time.Since(start), err)
		telemetry.RecordError(ctx, err)
	}()

	chunk := make([]byte, c.chunkSize)
	for _, s := range c.spans(sector, len(buf)) {
		if s.n < c.chunkSize {
			if err := c.store.ReadChunk(ctx, s.idx, 0, chunk); err != nil {
				return fmt.Errorf("%s: load chunk %d: %w", c.name, s.idx, err)
			}
		}
		copy(chunk[s.off:], buf[s.bufOff:s.bufOff+s.n])
		if err := c.store.WriteChunk(ctx, s.idx, chunk); err != nil {
			return fmt.Errorf("%s: store chunk %d: %w", c.name, s.idx, err)
		}
	}
	metrics.RecordBytes(c.metrics, c.name, "write", int64(len(buf)))
	return nil
}

// HealthCheck delegates to the chunk store.
func (c *Chunked) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.store.HealthCheck(ctx)
}

// Sync is a no-op: every WriteChunk is durable when it returns.
func (c *Chunked) Sync(context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return nil
}

// Close closes the chunk store. Further calls return nil.
func (c *Chunked) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

var _ Backend = (*Chunked)(nil)
