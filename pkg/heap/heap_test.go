package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeap(t *testing.T, size int) *Heap {
	t.Helper()
	h, err := New(size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestAllocAlignment(t *testing.T) {
	h := newHeap(t, 4096)

	a, err := h.Alloc(5)
	require.NoError(t, err)
	b, err := h.Alloc(40)
	require.NoError(t, err)

	assert.Len(t, a, 5)
	assert.Equal(t, 5, cap(a), "capacity is clipped to the request")
	assert.Equal(t, 0, h.offset(a))
	assert.Equal(t, 32, h.offset(b))

	st := h.Stats()
	assert.Equal(t, 4096, st.Size)
	assert.Equal(t, 32+64, st.Used)
	assert.Equal(t, 2, st.Allocations)
}

func TestAllocZeroesReusedMemory(t *testing.T) {
	h := newHeap(t, 1024)

	a, err := h.Alloc(64)
	require.NoError(t, err)
	for i := range a {
		a[i] = 0xFF
	}
	require.NoError(t, h.Free(a))

	b, err := h.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 64), b)
}

func TestOutOfMemory(t *testing.T) {
	h := newHeap(t, 256)

	_, err := h.Alloc(257)
	assert.ErrorIs(t, err, ErrNoMemory)

	a, err := h.Alloc(256)
	require.NoError(t, err)
	_, err = h.Alloc(1)
	assert.ErrorIs(t, err, ErrNoMemory)

	require.NoError(t, h.Free(a))
	_, err = h.Alloc(1)
	assert.NoError(t, err)
}

func TestFreeCoalesces(t *testing.T) {
	h := newHeap(t, 32*4)

	bufs := make([][]byte, 4)
	for i := range bufs {
		var err error
		bufs[i], err = h.Alloc(32)
		require.NoError(t, err)
	}

	// Free out of order; the arena must end up as a single extent.
	for _, i := range []int{1, 3, 2, 0} {
		require.NoError(t, h.Free(bufs[i]))
	}
	st := h.Stats()
	assert.Equal(t, 0, st.Used)
	assert.Equal(t, 128, st.LargestFree)

	_, err := h.Alloc(128)
	assert.NoError(t, err)
}

func TestFirstFit(t *testing.T) {
	h := newHeap(t, 32*4)

	a, _ := h.Alloc(32)
	_, _ = h.Alloc(32)
	c, _ := h.Alloc(64)
	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))

	d, err := h.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, 0, h.offset(d), "first hole wins")

	e, err := h.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, 64, h.offset(e))
}

func TestInvalidFree(t *testing.T) {
	h := newHeap(t, 256)

	assert.ErrorIs(t, h.Free(make([]byte, 8)), ErrInvalidFree)
	assert.ErrorIs(t, h.Free(nil), ErrInvalidFree)

	a, err := h.Alloc(64)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Free(a[32:]), ErrInvalidFree, "interior pointer")
	require.NoError(t, h.Free(a))
	assert.ErrorIs(t, h.Free(a), ErrInvalidFree, "double free")
}

func TestContainsAndClose(t *testing.T) {
	h := newHeap(t, 256)
	a, err := h.Alloc(16)
	require.NoError(t, err)

	assert.True(t, h.Contains(a))
	assert.False(t, h.Contains(make([]byte, 16)))

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err = h.Alloc(16)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, h.Contains(a))
}

func TestNewInvalidSize(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
