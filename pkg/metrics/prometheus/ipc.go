// Package prometheus implements pkg/metrics interfaces on client_golang.
// Importing it registers the constructors with pkg/metrics.
package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterIPCMetricsConstructor(func() metrics.IPCMetrics {
		if m := NewIPCMetrics(); m != nil {
			return m
		}
		return nil
	})
	metrics.RegisterStorageMetricsConstructor(func() metrics.StorageMetrics {
		if m := NewStorageMetrics(); m != nil {
			return m
		}
		return nil
	})
	metrics.RegisterConnectionMetricsConstructor(func() metrics.ConnectionMetrics {
		if m := NewConnectionMetrics(); m != nil {
			return m
		}
		return nil
	})
}

type ipcMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	events       *prometheus.CounterVec
	opens        *prometheus.CounterVec
	selectedUnit prometheus.Gauge
	bytes        *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// Collectors are bound to one registry; a new registry gets new collectors.
var (
	mu          sync.Mutex
	ipcInstance *ipcMetrics
	ipcReg      *prometheus.Registry
)

// NewIPCMetrics creates the service loop metrics on the process registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called). Repeated
// calls against the same registry return the same collectors.
func NewIPCMetrics() *ipcMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if ipcReg != reg {
		ipcInstance, ipcReg = newIPCMetrics(reg), reg
	}
	return ipcInstance
}

func newIPCMetrics(reg prometheus.Registerer) *ipcMetrics {
	f := promauto.With(reg)
	return &ipcMetrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umsd_requests_total",
				Help: "Acknowledged client messages by kind, command and status",
			},
			[]string{"kind", "command", "status"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "umsd_request_duration_milliseconds",
				Help: "Time from receive to acknowledgment in milliseconds",
				Buckets: []float64{
					0.05, // in-memory control commands
					0.5,
					1,
					5, // single sector on local media
					25,
					100,
					500, // remote backends
					2500,
				},
			},
			[]string{"kind", "command"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umsd_events_total",
				Help: "Hardware events consumed by the multiplexer",
			},
			[]string{"class"},
		),
		opens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umsd_open_gate_total",
				Help: "OPEN gate decisions",
			},
			[]string{"result"},
		),
		selectedUnit: f.NewGauge(prometheus.GaugeOpts{
			Name: "umsd_selected_unit",
			Help: "Currently selected logical unit",
		}),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umsd_payload_bytes_total",
				Help: "Sector and disc payload bytes moved",
			},
			[]string{"direction"},
		),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "umsd_queue_depth",
			Help: "Messages waiting on the request queue",
		}),
	}
}

func (m *ipcMetrics) RecordRequest(kind, command string, status int32, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, command, strconv.Itoa(int(status))).Inc()
	m.duration.WithLabelValues(kind, command).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *ipcMetrics) RecordEvent(class string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(class).Inc()
}

func (m *ipcMetrics) RecordOpen(allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.opens.WithLabelValues(result).Inc()
}

func (m *ipcMetrics) SetSelectedUnit(unit uint32) {
	if m == nil {
		return
	}
	m.selectedUnit.Set(float64(unit))
}

func (m *ipcMetrics) RecordBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *ipcMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
