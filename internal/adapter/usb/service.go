package usb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/coherency"
	"github.com/marmos91/umsd/pkg/gate"
	"github.com/marmos91/umsd/pkg/ipc"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage"
)

// DefaultDeviceName is the device path served when none is configured.
const DefaultDeviceName = "/dev/usb2"

// Deps are the collaborators of a Service.
type Deps struct {
	Queue   *ipc.Queue
	Device  storage.Device
	Disc    DiscImage
	Gate    gate.Policy        // nil allows every open
	Cache   coherency.Cache    // nil uses coherency.Noop
	Metrics metrics.IPCMetrics // nil disables metrics
}

// Service is the request loop of one registered device. It owns the
// session state and is the only consumer of its queue.
type Service struct {
	name       string
	queue      *ipc.Queue
	state      *State
	mux        *Multiplexer
	dispatcher *Dispatcher
	gate       gate.Policy
	metrics    metrics.IPCMetrics

	notifyMu sync.Mutex
}

// NewService creates the service for deviceName.
func NewService(deviceName string, deps Deps) *Service {
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}
	if deps.Gate == nil {
		deps.Gate = gate.AllowAll{}
	}

	state := NewState()
	return &Service{
		name:       deviceName,
		queue:      deps.Queue,
		state:      state,
		mux:        NewMultiplexer(state, deps.Device, deps.Metrics),
		dispatcher: NewDispatcher(state, deps.Device, deps.Disc, deps.Cache, deps.Metrics),
		gate:       deps.Gate,
		metrics:    deps.Metrics,
	}
}

// Name returns the served device path.
func (s *Service) Name() string { return s.name }

// State returns the session state.
func (s *Service) State() *State { return s.state }

// Queue returns the request queue.
func (s *Service) Queue() *ipc.Queue { return s.queue }

// Serve receives and handles messages until ctx is cancelled. Cancellation
// only interrupts the wait for the next message: a message that has been
// received is handled and acknowledged with a context that is not cancelled.
func (s *Service) Serve(ctx context.Context) error {
	logger.Info("Service loop started", logger.KeyPath, s.name, "queue_depth", s.queue.Cap())

	for {
		msg, err := s.queue.Receive(ctx)
		if err != nil {
			logger.Info("Service loop stopped", logger.KeyPath, s.name)
			return err
		}
		s.handle(context.WithoutCancel(ctx), msg)
	}
}

// handle runs one message to completion.
func (s *Service) handle(ctx context.Context, msg *ipc.Message) {
	if s.mux.Route(ctx, msg) {
		return
	}

	start := time.Now()
	lc := logger.NewLogContext(msg.Kind.String())
	lc.RequestID = msg.RequestID
	lc.Handle = msg.Handle
	lc.Peer = msg.Peer
	ctx = logger.WithContext(ctx, lc)

	status, command := s.process(ctx, msg)

	if err := s.queue.Ack(msg, status); err != nil && !errors.Is(err, ipc.ErrAlreadyAcked) {
		logger.DebugCtx(ctx, "Acknowledgment not delivered", logger.Err(err))
	}

	if s.metrics != nil {
		s.metrics.RecordRequest(msg.Kind.String(), command, status, time.Since(start))
		s.metrics.SetQueueDepth(s.queue.Len())
	}
}

// process classifies msg by kind and returns its status and, for IOCTLV,
// the command name.
func (s *Service) process(ctx context.Context, msg *ipc.Message) (int32, string) {
	switch msg.Kind {
	case ipc.KindOpen:
		return s.open(ctx, msg.Open), ""

	case ipc.KindClose:
		return ipc.StatusOK, ""

	case ipc.KindIoctlv:
		req := msg.Ioctlv
		label := "UNKNOWN"
		if cmd, ok := dispatchTable[req.Command]; ok {
			label = cmd.Name
		}
		return s.dispatcher.Dispatch(ctx, req.Command, req.Vector, req.NumIn, req.NumIO), label

	default:
		logger.DebugCtx(ctx, "Unsupported message kind")
		return ipc.StatusEINVAL, ""
	}
}

// open applies the gate, then matches the path exactly against the served
// device name.
func (s *Service) open(ctx context.Context, req ipc.OpenRequest) int32 {
	allowed := s.gate.MayOpen(ctx)
	if s.metrics != nil {
		s.metrics.RecordOpen(allowed)
	}

	if !allowed {
		logger.InfoCtx(ctx, "Open denied while a title is running", logger.KeyPath, req.Path)
		return ipc.StatusENOENT
	}
	if req.Path != s.name {
		logger.DebugCtx(ctx, "Open of unknown path", logger.KeyPath, req.Path)
		return ipc.StatusENOENT
	}
	return req.ResultFD
}

// NotifyDeviceChange stores a device-change result and queues the event.
func (s *Service) NotifyDeviceChange(result int32) error {
	return s.notify(EventDeviceChange, ipc.DeviceChange, result)
}

// NotifyAttachFinish stores an attach-completion result and queues the event.
func (s *Service) NotifyAttachFinish(result int32) error {
	return s.notify(EventAttachFinish, ipc.AttachFinish, result)
}

// notify serialises producers of one class so slot order matches queue
// order.
func (s *Service) notify(class EventClass, sentinel *ipc.Message, result int32) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	slot := s.state.Slot(class)
	slot.Complete(result)
	if err := s.queue.Post(sentinel); err != nil {
		slot.Withdraw()
		logger.Warn("Hardware event dropped", logger.KeyEvent, class.String(), logger.Err(err))
		return err
	}
	return nil
}
