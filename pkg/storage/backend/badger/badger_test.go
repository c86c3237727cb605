package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/umsd/pkg/storage/backend"
	"github.com/marmos91/umsd/pkg/storage/backend/backendtest"
)

func newBackend(t *testing.T, path string) *backend.Chunked {
	b, err := New(Config{
		Path:        path,
		SectorSize:  backendtest.Geometry.SectorSize,
		SectorCount: backendtest.Geometry.SectorCount,
		ChunkSize:   backendtest.ChunkSize,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestConformanceInMemory(t *testing.T) {
	backendtest.RunConformanceSuite(t, func(t *testing.T) backend.Backend {
		return newBackend(t, "")
	})
}

func TestConformanceOnDisk(t *testing.T) {
	backendtest.RunConformanceSuite(t, func(t *testing.T) backend.Backend {
		return newBackend(t, filepath.Join(t.TempDir(), "unit.db"))
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unit.db")
	ctx := context.Background()

	b := newBackend(t, path)
	data := make([]byte, 512)
	copy(data, "WBFS")
	require.NoError(t, b.WriteAt(ctx, data, 2))
	require.NoError(t, b.Close())

	b = newBackend(t, path)
	got := make([]byte, 512)
	require.NoError(t, b.ReadAt(ctx, got, 2))
	assert.Equal(t, data, got)
}

func TestChunkKeyOrdering(t *testing.T) {
	assert.Less(t, string(chunkKey(1)), string(chunkKey(2)))
	assert.Less(t, string(chunkKey(255)), string(chunkKey(256)))
}
