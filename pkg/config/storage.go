package config

import (
	"context"
	"fmt"

	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage/backend"
	badgerbackend "github.com/marmos91/umsd/pkg/storage/backend/badger"
	"github.com/marmos91/umsd/pkg/storage/backend/file"
	"github.com/marmos91/umsd/pkg/storage/backend/memory"
	s3backend "github.com/marmos91/umsd/pkg/storage/backend/s3"
)

// Backend types.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendS3     = "s3"
	BackendBadger = "badger"
)

// StorageConfig lists the logical units of the mass-storage device.
type StorageConfig struct {
	// Units are the logical units in order; the first is unit 0.
	Units []UnitConfig `mapstructure:"units" validate:"required,min=1,max=2,dive" yaml:"units"`

	// Watch reports image files appearing or disappearing as media changes.
	// Only file-backed units are watched.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// UnitConfig configures one logical unit.
type UnitConfig struct {
	// Type selects the backend: memory, file, s3 or badger.
	Type string `mapstructure:"type" validate:"required,oneof=memory file s3 badger" yaml:"type"`

	// SectorSize in bytes.
	// Default: 512
	SectorSize uint32 `mapstructure:"sector_size" validate:"omitempty,min=512,max=65536" yaml:"sector_size"`

	// SectorCount is the capacity in sectors. For file units it is only used
	// to create a missing image; an existing image defines its own size.
	SectorCount uint32 `mapstructure:"sector_count" yaml:"sector_count,omitempty"`

	// ReadOnly rejects writes to the unit.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	Memory *MemoryUnitConfig `mapstructure:"memory" yaml:"memory,omitempty"`
	File   *FileUnitConfig   `mapstructure:"file" validate:"required_if=Type file" yaml:"file,omitempty"`
	S3     *S3UnitConfig     `mapstructure:"s3" validate:"required_if=Type s3" yaml:"s3,omitempty"`
	Badger *BadgerUnitConfig `mapstructure:"badger" yaml:"badger,omitempty"`
}

// MemoryUnitConfig configures a memory unit.
type MemoryUnitConfig struct {
	// Size overrides SectorCount with a human-readable capacity ("64MiB").
	Size bytesize.ByteSize `mapstructure:"size" yaml:"size,omitempty"`
}

// FileUnitConfig configures a raw image file unit.
type FileUnitConfig struct {
	// Path is the image file.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// Create makes a missing image of SectorCount sectors.
	Create bool `mapstructure:"create" yaml:"create"`
}

// S3UnitConfig configures an S3 chunked unit.
type S3UnitConfig struct {
	Bucket          string            `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Region          string            `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string            `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`
	KeyPrefix       string            `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	AccessKeyID     string            `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string            `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool              `mapstructure:"force_path_style" yaml:"force_path_style"`
	ChunkSize       bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size,omitempty"`
}

// BadgerUnitConfig configures a badger chunked unit.
type BadgerUnitConfig struct {
	// Path is the database directory; empty keeps the database in memory.
	Path      string            `mapstructure:"path" yaml:"path,omitempty"`
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size,omitempty"`
}

// sectorCount returns the configured capacity in sectors.
func (u *UnitConfig) sectorCount() uint32 {
	if u.Memory != nil && u.Memory.Size > 0 {
		return uint32(u.Memory.Size.Sectors(u.SectorSize))
	}
	return u.SectorCount
}

// CreateBackend opens the backend for one unit. m may be nil.
func CreateBackend(ctx context.Context, u UnitConfig, m metrics.StorageMetrics) (backend.Backend, error) {
	if u.SectorSize == 0 {
		u.SectorSize = backend.DefaultSectorSize
	}

	switch u.Type {
	case BackendMemory:
		return opened(memory.New(backend.Geometry{SectorSize: u.SectorSize, SectorCount: u.sectorCount()}, u.ReadOnly))
	case BackendFile:
		return createFileBackend(u, m)
	case BackendS3:
		return createS3Backend(ctx, u, m)
	case BackendBadger:
		return createBadgerBackend(u, m)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", u.Type)
	}
}

func createFileBackend(u UnitConfig, m metrics.StorageMetrics) (backend.Backend, error) {
	if u.File == nil || u.File.Path == "" {
		return nil, fmt.Errorf("file backend requires file.path to be set")
	}

	cfg := file.Config{
		Path:       u.File.Path,
		SectorSize: u.SectorSize,
		ReadOnly:   u.ReadOnly,
	}
	if u.File.Create {
		cfg.Size = int64(u.SectorCount) * int64(u.SectorSize)
	}
	return opened(file.New(cfg, m))
}

func createS3Backend(ctx context.Context, u UnitConfig, m metrics.StorageMetrics) (backend.Backend, error) {
	if u.S3 == nil || u.S3.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires s3.bucket to be set")
	}

	return opened(s3backend.NewFromConfig(ctx, s3backend.Config{
		Bucket:          u.S3.Bucket,
		Region:          u.S3.Region,
		Endpoint:        u.S3.Endpoint,
		KeyPrefix:       u.S3.KeyPrefix,
		AccessKeyID:     u.S3.AccessKeyID,
		SecretAccessKey: u.S3.SecretAccessKey,
		ForcePathStyle:  u.S3.ForcePathStyle,
		SectorSize:      u.SectorSize,
		SectorCount:     u.SectorCount,
		ChunkSize:       u.S3.ChunkSize.Int(),
		ReadOnly:        u.ReadOnly,
	}, m))
}

func createBadgerBackend(u UnitConfig, m metrics.StorageMetrics) (backend.Backend, error) {
	cfg := badgerbackend.Config{
		SectorSize:  u.SectorSize,
		SectorCount: u.SectorCount,
		ReadOnly:    u.ReadOnly,
	}
	if u.Badger != nil {
		cfg.Path = u.Badger.Path
		cfg.ChunkSize = u.Badger.ChunkSize.Int()
	}
	return opened(badgerbackend.New(cfg, m))
}

// opened keeps a failed constructor from yielding a non-nil interface.
func opened[B backend.Backend](b B, err error) (backend.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
