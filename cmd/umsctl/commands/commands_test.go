package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/umsd/pkg/config"
	"github.com/marmos91/umsd/pkg/server"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// startServer runs umsd with two memory units and returns its socket path.
func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Service.SocketPath = filepath.Join(t.TempDir(), "umsd.sock")
	cfg.Service.HeapSize = 1 << 20
	cfg.Storage.Units = []config.UnitConfig{
		{Type: config.BackendMemory, SectorSize: 512, SectorCount: 128},
		{Type: config.BackendMemory, SectorSize: 512, SectorCount: 16},
	}
	off := false
	cfg.API.Enabled = &off

	s, err := server.New(t.Context(), cfg, server.Options{Version: "test"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	<-s.Transport().Ready()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return cfg.Service.SocketPath
}

func TestWriteThenRead(t *testing.T) {
	socket := startServer(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "in.bin")
	payload := bytes.Repeat([]byte("umsd"), 200)
	require.NoError(t, os.WriteFile(src, payload, 0644))

	require.NoError(t, execute(t, "write", "4", "--socket", socket, "--file", src, "--force"))

	dst := filepath.Join(dir, "out.bin")
	require.NoError(t, execute(t, "read", "4", "--socket", socket, "--count", "2", "--out", dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Len(t, got, 1024)
	assert.Equal(t, payload, got[:len(payload)])
	assert.Equal(t, make([]byte, 1024-len(payload)), got[len(payload):])
}

func TestReadBeyondEnd(t *testing.T) {
	socket := startServer(t)

	err := execute(t, "read", "127", "--socket", socket, "--count", "2", "--out", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond unit end")
}

func TestUnitSelection(t *testing.T) {
	socket := startServer(t)

	require.NoError(t, execute(t, "unit", "1", "--socket", socket))

	err := execute(t, "read", "16", "--socket", socket, "--count", "1", "--out", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond unit end 16")

	err = execute(t, "unit", "5", "--socket", socket)
	assert.Error(t, err)
}

func TestSectorData(t *testing.T) {
	t.Cleanup(func() { writeFile, writeFill, writeCount = "", 0, 1 })

	writeFile, writeFill, writeCount = "", 0xff, 2
	data, err := sectorData(512)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 1024), data)

	writeCount = 0
	_, err = sectorData(512)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	writeFile = empty
	_, err = sectorData(512)
	assert.Error(t, err)
}
