package usb

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/umsd/pkg/storage"
)

// EventClass indexes the asynchronous reply slots.
type EventClass int

const (
	EventDeviceChange EventClass = iota
	EventAttachFinish
	numEventClasses
)

func (c EventClass) String() string {
	switch c {
	case EventDeviceChange:
		return "device_change"
	case EventAttachFinish:
		return "attach_finish"
	default:
		return "unknown"
	}
}

// EventMountPoll is the metric and log name of the mount-poll class, which
// has no reply slot.
const EventMountPoll = "mount_poll"

// ReplySlot holds the results of one hardware event class. The event
// source fills it from its own goroutine and posts one sentinel per result;
// the service loop is the only consumer and takes results in the order they
// were stored, so each sentinel delivers the value reported with it.
type ReplySlot struct {
	mu     sync.Mutex
	result int32
	queued []int32
}

// Arm resets the slot to its initial state: result -1, awaiting an event.
func (s *ReplySlot) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = -1
	s.queued = nil
}

// Complete stores the result of an event. The caller must post exactly one
// sentinel for it, or call Withdraw when the post fails.
func (s *ReplySlot) Complete(result int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.queued = append(s.queued, result)
}

// Withdraw drops the newest undelivered result, whose sentinel never made
// it onto the queue. Result keeps reporting the last stored value.
func (s *ReplySlot) Withdraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.queued); n > 0 {
		s.queued = s.queued[:n-1]
	}
}

// Take returns the oldest undelivered result and re-arms the slot once
// none is left. A sentinel with nothing queued gets the last stored value.
func (s *ReplySlot) Take() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queued) == 0 {
		return s.result
	}
	v := s.queued[0]
	s.queued = s.queued[1:]
	if len(s.queued) == 0 {
		s.queued = nil
	}
	return v
}

// Result returns the most recently stored result without consuming it.
func (s *ReplySlot) Result() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Pending reports whether the slot is armed and waiting for an event, that
// is, no stored result is waiting for delivery.
func (s *ReplySlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued) == 0
}

// State is the session state owned by the service loop: the selected
// logical unit and one reply slot per event class. It persists for the life
// of the service and is not reset on CLOSE.
type State struct {
	unit  atomic.Uint32
	slots [numEventClasses]ReplySlot
}

// NewState returns state with unit 0 selected and all slots armed.
func NewState() *State {
	s := &State{}
	for i := range s.slots {
		s.slots[i].Arm()
	}
	return s
}

// Unit returns the selected logical unit.
func (s *State) Unit() uint32 {
	return s.unit.Load()
}

// SetUnit selects u. Units outside [0, storage.MaxUnits) are rejected and
// leave the selection unchanged.
func (s *State) SetUnit(u uint32) bool {
	if u >= storage.MaxUnits {
		return false
	}
	s.unit.Store(u)
	return true
}

// Slot returns the reply slot of class c.
func (s *State) Slot(c EventClass) *ReplySlot {
	return &s.slots[c]
}

// SlotSnapshot is a point-in-time view of a reply slot.
type SlotSnapshot struct {
	Class   string `json:"class"`
	Result  int32  `json:"result"`
	Pending bool   `json:"pending"`
}

// Snapshot returns the selected unit and all slots.
func (s *State) Snapshot() (uint32, []SlotSnapshot) {
	out := make([]SlotSnapshot, 0, numEventClasses)
	for c := EventClass(0); c < numEventClasses; c++ {
		slot := s.Slot(c)
		out = append(out, SlotSnapshot{Class: c.String(), Result: slot.Result(), Pending: slot.Pending()})
	}
	return s.Unit(), out
}
