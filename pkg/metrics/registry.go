// Package metrics defines the observability interfaces of the service and
// owns the Prometheus registry. Implementations live in pkg/metrics/prometheus;
// every consumer accepts a nil interface to disable collection.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry with Go runtime and process
// collectors. Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// Reset drops the registry, disabling metrics.
func Reset() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
