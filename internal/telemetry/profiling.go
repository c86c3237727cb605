package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig contains configuration for Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040")
	Endpoint string

	// ProfileTypes lists the profiles to collect. See profileTypes for names.
	ProfileTypes []string
}

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

var profilingEnabled atomic.Bool

// InitProfiling starts Pyroscope continuous profiling.
// Returns a shutdown function that stops the profiler.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		profilingEnabled.Store(false)
		return func() error { return nil }, nil
	}

	types, err := ParseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}

	for _, pt := range cfg.ProfileTypes {
		switch pt {
		case "mutex_count", "mutex_duration":
			runtime.SetMutexProfileFraction(5)
		case "block_count", "block_duration":
			runtime.SetBlockProfileRate(5)
		}
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            map[string]string{"version": cfg.ServiceVersion},
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	profilingEnabled.Store(true)

	return func() error {
		profilingEnabled.Store(false)
		return p.Stop()
	}, nil
}

// IsProfilingEnabled returns whether profiling is enabled
func IsProfilingEnabled() bool {
	return profilingEnabled.Load()
}

// ParseProfileTypes converts profile names to Pyroscope profile types.
func ParseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	out := make([]pyroscope.ProfileType, 0, len(names))
	for _, n := range names {
		pt, ok := profileTypes[n]
		if !ok {
			return nil, fmt.Errorf("invalid profile type %q", n)
		}
		out = append(out, pt)
	}
	return out, nil
}
