package backend_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/umsd/pkg/storage"
	"github.com/marmos91/umsd/pkg/storage/backend"
	"github.com/marmos91/umsd/pkg/storage/backend/backendtest"
)

// mapStore is an in-memory ChunkStore.
type mapStore struct {
	mu     sync.Mutex
	chunks map[uint64][]byte
	writes int
}

func (m *mapStore) ReadChunk(_ context.Context, idx uint64, off int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[idx]
	if !ok {
		clear(p)
		return nil
	}
	copy(p, c[off:])
	return nil
}

func (m *mapStore) WriteChunk(_ context.Context, idx uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[idx] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func (m *mapStore) HealthCheck(context.Context) error { return nil }
func (m *mapStore) Close() error                      { return nil }

func newChunked(t *testing.T, store *mapStore, readOnly bool) *backend.Chunked {
	b, err := backend.NewChunked(store, backend.ChunkedConfig{
		Name:      "map",
		Geometry:  backendtest.Geometry,
		ChunkSize: backendtest.ChunkSize,
		ReadOnly:  readOnly,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestChunkedConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, func(t *testing.T) backend.Backend {
		return newChunked(t, &mapStore{chunks: map[uint64][]byte{}}, false)
	})
}

func TestChunkedWritesWholeChunks(t *testing.T) {
	store := &mapStore{chunks: map[uint64][]byte{}}
	b := newChunked(t, store, false)

	require.NoError(t, b.WriteAt(context.Background(), make([]byte, 512), 1))
	assert.Len(t, store.chunks[0], backendtest.ChunkSize)
	assert.Equal(t, 1, store.writes)
}

func TestChunkedReadOnly(t *testing.T) {
	b := newChunked(t, &mapStore{chunks: map[uint64][]byte{}}, true)
	assert.ErrorIs(t, b.WriteAt(context.Background(), make([]byte, 512), 0), storage.ErrReadOnly)
}
