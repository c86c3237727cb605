package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "json",
			Output: "/var/log/umsd.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Service: ServiceConfig{
			DeviceName: "/dev/usb123",
			QueueDepth: 4,
		},
		Storage: StorageConfig{Units: []UnitConfig{{Type: BackendMemory, SectorSize: 4096, SectorCount: 16}}},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/umsd.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Service.DeviceName != "/dev/usb123" || cfg.Service.QueueDepth != 4 {
		t.Errorf("Expected explicit service values, got %+v", cfg.Service)
	}
	if cfg.Storage.Units[0].SectorSize != 4096 {
		t.Errorf("Expected explicit sector size, got %d", cfg.Storage.Units[0].SectorSize)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Service.SocketPath == "" {
		t.Error("Default config missing socket path")
	}
	if cfg.Service.HeapSize != DefaultHeapSize {
		t.Errorf("Expected default heap size, got %v", cfg.Service.HeapSize)
	}
	if cfg.API.Port == 0 {
		t.Error("Default config missing API port")
	}
	if cfg.Storage.Units[0].SectorCount != 131072 {
		t.Errorf("Expected 64MiB of 512-byte sectors, got %d", cfg.Storage.Units[0].SectorCount)
	}
}
