package gate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll{}.MayOpen(context.Background()))
	assert.False(t, PolicyFunc(func(context.Context) bool { return false }).MayOpen(context.Background()))
}

func TestMarkerTracksFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "title.running")
	ctx := context.Background()

	m, err := NewMarker(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.True(t, m.MayOpen(ctx))

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Eventually(t, func() bool { return !m.MayOpen(ctx) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return m.MayOpen(ctx) }, 2*time.Second, 10*time.Millisecond)
}

func TestMarkerPresentAtStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title.running")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := NewMarker(path)
	require.NoError(t, err)
	defer m.Close()

	assert.False(t, m.MayOpen(context.Background()))
}

func TestNew(t *testing.T) {
	p, closeFn, err := New("", "")
	require.NoError(t, err)
	assert.IsType(t, AllowAll{}, p)
	assert.NoError(t, closeFn())

	_, _, err = New("marker", filepath.Join(t.TempDir(), "missing", "marker"))
	assert.Error(t, err)

	_, _, err = New("stealth", "")
	assert.ErrorIs(t, err, ErrUnknownType)
}
