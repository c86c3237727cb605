package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"api port out of range", func(c *Config) { c.API.Port = 70000 }, "max"},
		{"relative device name", func(c *Config) { c.Service.DeviceName = "usb2" }, "startswith"},
		{"zero queue depth", func(c *Config) { c.Service.QueueDepth = 0 }, "QueueDepth"},
		{"unknown gate", func(c *Config) { c.Gate.Type = "never" }, "Gate.Type"},
		{"marker without path", func(c *Config) { c.Gate.Type = "marker" }, "MarkerPath"},
		{"unknown coherency", func(c *Config) { c.Coherency.Mode = "dcache" }, "Mode"},
		{"no units", func(c *Config) { c.Storage.Units = nil }, "Units"},
		{"three units", func(c *Config) {
			u := c.Storage.Units[0]
			c.Storage.Units = []UnitConfig{u, u, u}
		}, "max"},
		{"unknown backend", func(c *Config) { c.Storage.Units[0].Type = "nbd" }, "Type"},
		{"file without path", func(c *Config) {
			c.Storage.Units[0] = UnitConfig{Type: BackendFile, SectorSize: 512}
		}, "File"},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Units[0] = UnitConfig{Type: BackendS3, SectorSize: 512, SectorCount: 8, S3: &S3UnitConfig{}}
		}, "Bucket"},
		{"badger without capacity", func(c *Config) {
			c.Storage.Units[0] = UnitConfig{Type: BackendBadger, SectorSize: 512}
		}, "sector_count"},
		{"sector size not power of two", func(c *Config) { c.Storage.Units[0].SectorSize = 1000 }, "power of two"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "SampleRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_FileUnit(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Units = []UnitConfig{{
		Type:       BackendFile,
		SectorSize: 512,
		File:       &FileUnitConfig{Path: "/var/lib/umsd/unit0.img"},
	}}

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected file unit to be valid, got: %v", err)
	}

	cfg.Storage.Units[0].File.Create = true
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "file.create") {
		t.Errorf("Expected file.create error, got: %v", err)
	}
}
