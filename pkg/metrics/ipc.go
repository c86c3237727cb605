package metrics

import "time"

// IPCMetrics observes the service loop.
//
// Pass nil to disable collection:
//
//	svc := usb.NewService(name, usb.Deps{Metrics: metrics.NewIPCMetrics()})
type IPCMetrics interface {
	// RecordRequest records an acknowledged client message.
	//   - kind: OPEN, CLOSE, IOCTLV or the unknown kind
	//   - command: ioctlv command name, empty for other kinds
	//   - status: acknowledgment status
	RecordRequest(kind, command string, status int32, duration time.Duration)

	// RecordEvent records a consumed hardware event
	// ("device_change", "attach_finish", "mount_poll").
	RecordEvent(class string)

	// RecordOpen records the outcome of an OPEN gate check.
	RecordOpen(allowed bool)

	// SetSelectedUnit publishes the selected logical unit.
	SetSelectedUnit(unit uint32)

	// RecordBytes records payload moved by sector or disc reads and writes.
	// direction is "read" or "write".
	RecordBytes(direction string, n int)

	// SetQueueDepth publishes the number of messages waiting in the queue.
	SetQueueDepth(n int)
}

var newIPCMetrics func() IPCMetrics

// RegisterIPCMetricsConstructor is called by the prometheus package at init.
func RegisterIPCMetricsConstructor(constructor func() IPCMetrics) {
	newIPCMetrics = constructor
}

// NewIPCMetrics returns the registered implementation, or nil when metrics
// are disabled or no implementation is linked in.
func NewIPCMetrics() IPCMetrics {
	if !IsEnabled() || newIPCMetrics == nil {
		return nil
	}
	return newIPCMetrics()
}
