// Package backendtest is a conformance suite run against every sector backend.
package backendtest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/marmos91/umsd/pkg/storage"
	"github.com/marmos91/umsd/pkg/storage/backend"
)

// Geometry is the unit layout the suite asks factories for. Chunked
// factories should use ChunkSize so transfers cross chunk boundaries.
var Geometry = backend.Geometry{SectorSize: 512, SectorCount: 64}

// ChunkSize is four sectors.
const ChunkSize = 2048

// Factory creates a fresh, writable backend with Geometry. It registers its
// own cleanup.
type Factory func(t *testing.T) backend.Backend

// RunConformanceSuite runs every check against backends built by factory.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("Geometry", func(t *testing.T) { testGeometry(t, factory(t)) })
	t.Run("UnwrittenReadsZero", func(t *testing.T) { testUnwrittenReadsZero(t, factory(t)) })
	t.Run("RoundTripAcrossChunks", func(t *testing.T) { testRoundTrip(t, factory(t)) })
	t.Run("PartialWritePreservesNeighbours", func(t *testing.T) { testNeighbours(t, factory(t)) })
	t.Run("OutOfRange", func(t *testing.T) { testOutOfRange(t, factory(t)) })
	t.Run("HealthAndSync", func(t *testing.T) { testHealthAndSync(t, factory(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, factory(t)) })
}

func pattern(seed byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func testGeometry(t *testing.T, b backend.Backend) {
	if b.SectorSize() != Geometry.SectorSize || b.SectorCount() != Geometry.SectorCount {
		t.Fatalf("geometry = %d x %d, want %d x %d", b.SectorSize(), b.SectorCount(), Geometry.SectorSize, Geometry.SectorCount)
	}
	if b.ReadOnly() {
		t.Fatal("factory backend is read-only")
	}
	if b.Name() == "" {
		t.Fatal("backend has no name")
	}
}

func testUnwrittenReadsZero(t *testing.T, b backend.Backend) {
	buf := bytes.Repeat([]byte{0xAA}, 3*512)
	if err := b.ReadAt(t.Context(), buf, 10); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(buf, make([]byte, len(buf))) {
		t.Fatal("unwritten sectors are not zero")
	}
}

func testRoundTrip(t *testing.T, b backend.Backend) {
	ctx := t.Context()
	data := pattern(7, 6*512) // sectors 3..8 span three chunks

	if err := b.WriteAt(ctx, data, 3); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(data))
	if err := b.ReadAt(ctx, got, 3); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read data differs from written data")
	}

	last := pattern(9, 512)
	if err := b.WriteAt(ctx, last, Geometry.SectorCount-1); err != nil {
		t.Fatalf("WriteAt last sector: %v", err)
	}
	if err := b.ReadAt(ctx, got[:512], Geometry.SectorCount-1); err != nil || !bytes.Equal(got[:512], last) {
		t.Fatalf("last sector round trip failed: %v", err)
	}
}

func testNeighbours(t *testing.T, b backend.Backend) {
	ctx := t.Context()
	a := pattern(1, 512)
	c := pattern(2, 512)

	if err := b.WriteAt(ctx, a, 4); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := b.WriteAt(ctx, c, 5); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got := make([]byte, 3*512)
	if err := b.ReadAt(ctx, got, 4); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got[:512], a) || !bytes.Equal(got[512:1024], c) || !bytes.Equal(got[1024:], make([]byte, 512)) {
		t.Fatal("neighbouring sectors were clobbered")
	}
}

func testOutOfRange(t *testing.T, b backend.Backend) {
	ctx := t.Context()
	cases := []struct {
		name   string
		buf    []byte
		sector uint32
	}{
		{"past end", make([]byte, 2*512), Geometry.SectorCount - 1},
		{"start beyond", make([]byte, 512), Geometry.SectorCount},
		{"partial sector", make([]byte, 100), 0},
		{"wrapping sector", make([]byte, 512), ^uint32(0)},
	}
	for _, tc := range cases {
		if err := b.ReadAt(ctx, tc.buf, tc.sector); !errors.Is(err, storage.ErrOutOfRange) {
			t.Errorf("%s: ReadAt err = %v, want ErrOutOfRange", tc.name, err)
		}
		if err := b.WriteAt(ctx, tc.buf, tc.sector); !errors.Is(err, storage.ErrOutOfRange) {
			t.Errorf("%s: WriteAt err = %v, want ErrOutOfRange", tc.name, err)
		}
	}
}

func testHealthAndSync(t *testing.T, b backend.Backend) {
	if err := b.HealthCheck(t.Context()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if err := b.WriteAt(t.Context(), pattern(3, 512), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := b.Sync(t.Context()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func testClosed(t *testing.T, b backend.Backend) {
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := b.ReadAt(t.Context(), make([]byte, 512), 0); !errors.Is(err, backend.ErrClosed) {
		t.Fatalf("ReadAt after Close = %v, want ErrClosed", err)
	}
	if err := b.WriteAt(t.Context(), make([]byte, 512), 0); !errors.Is(err, backend.ErrClosed) {
		t.Fatalf("WriteAt after Close = %v, want ErrClosed", err)
	}
}
