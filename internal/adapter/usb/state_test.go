package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState()

	assert.Equal(t, uint32(0), s.Unit())
	for _, c := range []EventClass{EventDeviceChange, EventAttachFinish} {
		assert.Equal(t, int32(-1), s.Slot(c).Result(), c.String())
		assert.True(t, s.Slot(c).Pending(), c.String())
	}
}

func TestSetUnit(t *testing.T) {
	tests := []struct {
		unit uint32
		ok   bool
		want uint32
	}{
		{1, true, 1},
		{0, true, 0},
		{2, false, 0},
		{0xffffffff, false, 0},
	}

	s := NewState()
	for _, tt := range tests {
		assert.Equal(t, tt.ok, s.SetUnit(tt.unit), "unit %d", tt.unit)
		assert.Equal(t, tt.want, s.Unit(), "unit %d", tt.unit)
	}
}

func TestReplySlotLifecycle(t *testing.T) {
	var slot ReplySlot
	slot.Arm()

	slot.Complete(5)
	assert.False(t, slot.Pending())
	assert.Equal(t, int32(5), slot.Result())

	assert.Equal(t, int32(5), slot.Take())
	assert.True(t, slot.Pending())
	assert.Equal(t, int32(5), slot.Result())
}

func TestReplySlotDeliversEachResultInOrder(t *testing.T) {
	var slot ReplySlot
	slot.Arm()

	slot.Complete(0)
	slot.Complete(1)
	assert.Equal(t, int32(1), slot.Result())

	assert.Equal(t, int32(0), slot.Take())
	assert.False(t, slot.Pending())
	assert.Equal(t, int32(1), slot.Take())
	assert.True(t, slot.Pending())

	// A sentinel with nothing queued repeats the last stored value.
	assert.Equal(t, int32(1), slot.Take())
}

func TestReplySlotWithdraw(t *testing.T) {
	var slot ReplySlot
	slot.Arm()

	slot.Complete(2)
	slot.Complete(3)
	slot.Withdraw()

	assert.Equal(t, int32(2), slot.Take())
	assert.True(t, slot.Pending())
}

func TestSnapshot(t *testing.T) {
	s := NewState()
	s.SetUnit(1)
	s.Slot(EventAttachFinish).Complete(0)

	unit, slots := s.Snapshot()
	assert.Equal(t, uint32(1), unit)
	assert.Equal(t, []SlotSnapshot{
		{Class: "device_change", Result: -1, Pending: true},
		{Class: "attach_finish", Result: 0, Pending: false},
	}, slots)
}
