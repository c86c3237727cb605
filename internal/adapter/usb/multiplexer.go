package usb

import (
	"context"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/ipc"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage"
)

// Multiplexer intercepts hardware event sentinels before the service loop
// classifies a message by kind. Sentinels are matched by identity, so they
// cannot collide with client message kinds.
type Multiplexer struct {
	state   *State
	device  storage.Device
	metrics metrics.IPCMetrics
}

// NewMultiplexer creates a multiplexer delivering events to device.
func NewMultiplexer(state *State, device storage.Device, m metrics.IPCMetrics) *Multiplexer {
	return &Multiplexer{state: state, device: device, metrics: m}
}

// Route consumes msg if it is a hardware event and reports whether it did.
// A consumed message must not be acknowledged.
func (m *Multiplexer) Route(ctx context.Context, msg *ipc.Message) bool {
	var class string

	switch msg {
	case ipc.DeviceChange:
		class = EventDeviceChange.String()
		v := m.state.Slot(EventDeviceChange).Take()
		m.device.DeviceChange(v)
		logger.DebugCtx(ctx, "Device change", logger.KeyEvent, class, logger.KeyStatus, v)
	case ipc.AttachFinish:
		class = EventAttachFinish.String()
		v := m.state.Slot(EventAttachFinish).Take()
		m.device.AttachFinish(v)
		logger.DebugCtx(ctx, "Attach finished", logger.KeyEvent, class, logger.KeyStatus, v)
	case ipc.MountPoll:
		class = EventMountPoll
		inserted := m.device.IsInserted(ctx)
		logger.DebugCtx(ctx, "Mount poll", logger.KeyEvent, class, logger.KeyInserted, inserted)
	default:
		return false
	}

	if m.metrics != nil {
		m.metrics.RecordEvent(class)
	}
	return true
}
