package prometheus

import (
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type connectionMetrics struct {
	events *prometheus.CounterVec
	active prometheus.Gauge
}

var (
	connInstance *connectionMetrics
	connReg      *prometheus.Registry
)

// NewConnectionMetrics creates socket client metrics on the process registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewConnectionMetrics() *connectionMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if connReg != reg {
		f := promauto.With(reg)
		connInstance = &connectionMetrics{
			events: f.NewCounterVec(
				prometheus.CounterOpts{
					Name: "umsd_connections_total",
					Help: "Socket connection lifecycle events",
				},
				[]string{"event"},
			),
			active: f.NewGauge(prometheus.GaugeOpts{
				Name: "umsd_connections_active",
				Help: "Connected socket clients",
			}),
		}
		connReg = reg
	}
	return connInstance
}

func (m *connectionMetrics) RecordConnectionAccepted() {
	if m != nil {
		m.events.WithLabelValues("accepted").Inc()
	}
}

func (m *connectionMetrics) RecordConnectionClosed() {
	if m != nil {
		m.events.WithLabelValues("closed").Inc()
	}
}

func (m *connectionMetrics) RecordConnectionForceClosed() {
	if m != nil {
		m.events.WithLabelValues("force_closed").Inc()
	}
}

func (m *connectionMetrics) SetActiveConnections(count int32) {
	if m != nil {
		m.active.Set(float64(count))
	}
}
