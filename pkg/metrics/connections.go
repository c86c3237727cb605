package metrics

// ConnectionMetrics observes socket clients. It matches
// transport.MetricsRecorder.
type ConnectionMetrics interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

var newConnectionMetrics func() ConnectionMetrics

// RegisterConnectionMetricsConstructor is called by the prometheus package at init.
func RegisterConnectionMetricsConstructor(constructor func() ConnectionMetrics) {
	newConnectionMetrics = constructor
}

// NewConnectionMetrics returns the registered implementation, or nil.
func NewConnectionMetrics() ConnectionMetrics {
	if !IsEnabled() || newConnectionMetrics == nil {
		return nil
	}
	return newConnectionMetrics()
}
