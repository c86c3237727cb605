package config

import (
	"strings"
	"time"

	"github.com/marmos91/umsd/internal/adapter/usb"
	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/marmos91/umsd/pkg/ipc"
	"github.com/marmos91/umsd/pkg/storage/backend"
	"github.com/marmos91/umsd/pkg/transport"
)

// DefaultHeapSize is the request-buffer arena size.
const DefaultHeapSize = 4 * bytesize.MiB

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.API.ApplyDefaults()
	applyServiceDefaults(&cfg.Service)
	applyGateDefaults(&cfg.Gate)
	applyCoherencyDefaults(&cfg.Coherency)
	applyStorageDefaults(&cfg.Storage)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyServiceDefaults(cfg *ServiceConfig) {
	if cfg.DeviceName == "" {
		cfg.DeviceName = usb.DefaultDeviceName
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = ipc.DefaultQueueDepth
	}
	if cfg.HeapSize == 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = transport.DefaultSocketPath
	}
}

func applyGateDefaults(cfg *GateConfig) {
	if cfg.Type == "" {
		cfg.Type = "allow"
	}
}

func applyCoherencyDefaults(cfg *CoherencyConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "none"
	}
}

// applyStorageDefaults fills per-unit sector sizes. An empty unit list is
// left alone: it is a validation error for a loaded file.
func applyStorageDefaults(cfg *StorageConfig) {
	for i := range cfg.Units {
		u := &cfg.Units[i]
		if u.SectorSize == 0 {
			u.SectorSize = backend.DefaultSectorSize
		}
		if u.Type == BackendMemory && u.SectorCount == 0 {
			u.SectorCount = u.sectorCount()
		}
	}
}

// GetDefaultConfig returns a Config with all default values applied and a
// single 64MiB memory unit.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Units: []UnitConfig{{
				Type:   BackendMemory,
				Memory: &MemoryUnitConfig{Size: 64 * bytesize.MiB},
			}},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
