package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveAck(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	done := make(chan int32, 1)
	go func() {
		status, err := q.Send(ctx, NewOpen("/dev/usb2", 3))
		assert.NoError(t, err)
		done <- status
	}()

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindOpen, msg.Kind)
	assert.Equal(t, "/dev/usb2", msg.Open.Path)
	assert.False(t, msg.Acked())

	require.NoError(t, q.Ack(msg, 3))
	assert.True(t, msg.Acked())

	select {
	case status := <-done:
		assert.Equal(t, int32(3), status)
	case <-time.After(time.Second):
		t.Fatal("sender was not unblocked")
	}
}

func TestAckTwiceIsDropped(t *testing.T) {
	q := NewQueue(1)
	msg := NewClose(4)
	msg.reply = make(chan int32, 1)

	require.NoError(t, q.Ack(msg, StatusOK))
	assert.ErrorIs(t, q.Ack(msg, StatusEINVAL), ErrAlreadyAcked)
	assert.Equal(t, StatusOK, <-msg.reply)
	assert.Empty(t, msg.reply)
}

func TestAckPostedMessageHasNoReply(t *testing.T) {
	q := NewQueue(1)
	msg := NewClose(1)
	require.NoError(t, q.Post(msg))
	assert.ErrorIs(t, q.Ack(msg, StatusOK), ErrNoReply)
}

func TestPostFull(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Post(DeviceChange))
	require.NoError(t, q.Post(MountPoll))
	assert.ErrorIs(t, q.Post(AttachFinish), ErrQueueFull)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())
}

func TestDefaultDepth(t *testing.T) {
	assert.Equal(t, DefaultQueueDepth, NewQueue(0).Cap())
}

func TestReceiveCancelled(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendCancelledWhileWaiting(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Send(ctx, NewClose(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The request was enqueued and can still be acknowledged without blocking.
	msg, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.NoError(t, q.Ack(msg, StatusOK))
}

func TestSentinels(t *testing.T) {
	for _, s := range []*Message{DeviceChange, AttachFinish, MountPoll} {
		assert.True(t, IsSentinel(s))
		assert.Zero(t, s.Kind)
	}
	assert.False(t, IsSentinel(&Message{}))
	assert.NotSame(t, DeviceChange, AttachFinish)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "IOCTLV", KindIoctlv.String())
	assert.Equal(t, "KIND(42)", Kind(42).String())
}
