package prometheus

import (
	"time"

	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storageMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

var (
	storageInstance *storageMetrics
	storageReg      *prometheus.Registry
)

// NewStorageMetrics creates backend metrics on the process registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStorageMetrics() *storageMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if storageReg != reg {
		f := promauto.With(reg)
		storageInstance = &storageMetrics{
			operations: f.NewCounterVec(
				prometheus.CounterOpts{
					Name: "umsd_backend_operations_total",
					Help: "Backend operations by backend, operation and status",
				},
				[]string{"backend", "operation", "status"},
			),
			duration: f.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "umsd_backend_operation_duration_milliseconds",
					Help: "Backend operation duration in milliseconds",
					Buckets: []float64{
						0.1,  // memory
						1,    // local file, badger
						10,   // fsync
						50,   // S3 same region
						250,  // S3 cold
						1000, // read-modify-write of a large chunk
						5000,
					},
				},
				[]string{"backend", "operation"},
			),
			bytes: f.NewCounterVec(
				prometheus.CounterOpts{
					Name: "umsd_backend_bytes_total",
					Help: "Bytes moved to or from a backend",
				},
				[]string{"backend", "direction"},
			),
		}
		storageReg = reg
	}
	return storageInstance
}

func (m *storageMetrics) ObserveOperation(backend, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(backend, operation, status).Inc()
	m.duration.WithLabelValues(backend, operation).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *storageMetrics) RecordBytes(backend, direction string, n int64) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(backend, direction).Add(float64(n))
}
