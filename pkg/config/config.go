package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/marmos91/umsd/pkg/api"
)

// Config represents the umsd configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (UMSD_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the HTTP status server
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Service configures the request loop and its transport
	Service ServiceConfig `mapstructure:"service" yaml:"service"`

	// Gate selects the open-gating policy
	Gate GateConfig `mapstructure:"gate" yaml:"gate"`

	// Coherency selects the buffer coherency primitives
	Coherency CoherencyConfig `mapstructure:"coherency" yaml:"coherency"`

	// Storage lists the logical units and their backends
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// WBFS locates the disc-image partition on the device
	WBFS WBFSConfig `mapstructure:"wbfs" yaml:"wbfs"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig controls Prometheus metrics. Metrics are served by the API
// server at /metrics. When Enabled is false nothing is collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ServiceConfig configures the request loop.
type ServiceConfig struct {
	// DeviceName is the registered device path.
	// Default: /dev/usb2
	DeviceName string `mapstructure:"device_name" validate:"required,startswith=/" yaml:"device_name"`

	// QueueDepth bounds the service message queue.
	// Default: 32
	QueueDepth int `mapstructure:"queue_depth" validate:"required,min=1,max=4096" yaml:"queue_depth"`

	// HeapSize is the size of the mmap arena for request buffers.
	// Supports human-readable formats: "4MiB", "32Ki"
	// Default: 4MiB
	HeapSize bytesize.ByteSize `mapstructure:"heap_size" validate:"required" yaml:"heap_size"`

	// MountPollInterval is the period of the mount-poll event; zero disables it.
	// Default: 0
	MountPollInterval time.Duration `mapstructure:"mount_poll_interval" validate:"gte=0" yaml:"mount_poll_interval"`

	// SocketPath is the unix socket of the client transport.
	// Default: /run/umsd/umsd.sock
	SocketPath string `mapstructure:"socket_path" validate:"required" yaml:"socket_path"`

	// MaxConnections limits concurrent socket clients; zero is unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`
}

// GateConfig selects the open-gating policy.
type GateConfig struct {
	// Type is "allow" (every open succeeds) or "marker" (opens are denied
	// while MarkerPath exists).
	// Default: allow
	Type string `mapstructure:"type" validate:"required,oneof=allow marker" yaml:"type"`

	// MarkerPath is the file whose presence marks a running title.
	MarkerPath string `mapstructure:"marker_path" validate:"required_if=Type marker" yaml:"marker_path,omitempty"`
}

// CoherencyConfig selects the coherency primitives used around transfers.
type CoherencyConfig struct {
	// Mode is "none" or "msync".
	// Default: none
	Mode string `mapstructure:"mode" validate:"required,oneof=none msync" yaml:"mode"`
}

// WBFSConfig locates the WBFS partition.
type WBFSConfig struct {
	// PartitionLBA is the first sector of the WBFS head on the device.
	// Default: 0
	PartitionLBA uint32 `mapstructure:"partition_lba" yaml:"partition_lba"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (UMSD_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file yields the default configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, failing with instructions when the file
// does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  umsd config init\n\n"+
				"Or specify a custom config file:\n"+
				"  umsd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  umsd config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// UMSD_SERVICE_QUEUE_DEPTH=64 overrides service.queue_depth
	v.SetEnvPrefix("UMSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks combines the ByteSize and time.Duration hooks.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "4MiB" and plain numbers to
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/umsd, ~/.config/umsd, or "." when
// the home directory is unknown.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "umsd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "umsd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
