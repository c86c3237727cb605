package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		unit     UnitConfig
		backend  string
		sectors  uint32
		readOnly bool
	}{
		{
			name:    "memory by size",
			unit:    UnitConfig{Type: BackendMemory, Memory: &MemoryUnitConfig{Size: 1 << 20}},
			backend: "memory",
			sectors: 2048,
		},
		{
			name:     "memory read-only",
			unit:     UnitConfig{Type: BackendMemory, SectorSize: 4096, SectorCount: 4, ReadOnly: true},
			backend:  "memory",
			sectors:  4,
			readOnly: true,
		},
		{
			name: "file created",
			unit: UnitConfig{Type: BackendFile, SectorCount: 32,
				File: &FileUnitConfig{Path: filepath.Join(dir, "unit.img"), Create: true}},
			backend: "file",
			sectors: 32,
		},
		{
			name:    "badger in memory",
			unit:    UnitConfig{Type: BackendBadger, SectorCount: 128},
			backend: "badger",
			sectors: 128,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := CreateBackend(t.Context(), tt.unit, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })

			assert.Equal(t, tt.backend, b.Name())
			assert.Equal(t, tt.sectors, b.SectorCount())
			assert.Equal(t, tt.readOnly, b.ReadOnly())
		})
	}
}

func TestCreateBackendErrors(t *testing.T) {
	tests := []struct {
		name string
		unit UnitConfig
	}{
		{"unknown type", UnitConfig{Type: "nbd"}},
		{"file without config", UnitConfig{Type: BackendFile}},
		{"missing file", UnitConfig{Type: BackendFile, File: &FileUnitConfig{Path: filepath.Join(t.TempDir(), "absent.img")}}},
		{"s3 without bucket", UnitConfig{Type: BackendS3, SectorCount: 8}},
		{"memory without capacity", UnitConfig{Type: BackendMemory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := CreateBackend(t.Context(), tt.unit, nil)
			assert.Error(t, err)
			assert.Nil(t, b)
		})
	}
}
