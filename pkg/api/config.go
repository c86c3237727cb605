package api

import "time"

// DefaultPort is the HTTP port of the status API.
const DefaultPort = 8484

// APIConfig configures the HTTP status server.
//
// When Enabled is false, no API server is started.
type APIConfig struct {
	// Enabled controls whether the API server is started.
	// Use a pointer to distinguish "not set" from "explicitly false".
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8484
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// BindAddress restricts the listener to one interface.
	// Default: 127.0.0.1
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip" yaml:"bind_address"`

	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// IsEnabled returns whether the API server is enabled.
// Defaults to true if not explicitly set.
func (c *APIConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// ApplyDefaults fills in zero values.
func (c *APIConfig) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.BindAddress == "" {
		c.BindAddress = "127.0.0.1"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}
