package ipc

import (
	"context"
	"errors"

	"github.com/marmos91/umsd/internal/logger"
)

var (
	// ErrQueueFull is returned by Post when the queue has no free slot.
	ErrQueueFull = errors.New("ipc: queue full")

	// ErrAlreadyAcked is returned when a message is acknowledged twice.
	ErrAlreadyAcked = errors.New("ipc: message already acknowledged")

	// ErrNoReply is returned when acknowledging a message nobody waits on.
	ErrNoReply = errors.New("ipc: message has no reply path")
)

// DefaultQueueDepth is the number of slots in a service queue.
const DefaultQueueDepth = 32

// Queue is the bounded request channel between clients, hardware event
// sources and the service loop.
type Queue struct {
	ch chan *Message
}

// NewQueue creates a queue with the given depth. Non-positive depths use
// DefaultQueueDepth.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue{ch: make(chan *Message, depth)}
}

// Send enqueues msg and blocks until it is acknowledged. ctx bounds both the
// enqueue and the wait; a request that was already enqueued still runs.
func (q *Queue) Send(ctx context.Context, msg *Message) (int32, error) {
	msg.reply = make(chan int32, 1)

	select {
	case q.ch <- msg:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case status := <-msg.reply:
		return status, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Post enqueues msg without waiting for an acknowledgment.
func (q *Queue) Post(msg *Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive blocks until a message is available or ctx is done.
func (q *Queue) Receive(ctx context.Context) (*Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack delivers status to the sender of msg. A message is acknowledged at
// most once; later calls are logged and ignored.
func (q *Queue) Ack(msg *Message, status int32) error {
	if msg.acked.Swap(true) {
		logger.Warn("Duplicate acknowledgment dropped",
			logger.KeyKind, msg.Kind.String(),
			logger.KeyHandle, msg.Handle,
			logger.KeyStatus, status)
		return ErrAlreadyAcked
	}
	if msg.reply == nil {
		return ErrNoReply
	}
	msg.reply <- status
	return nil
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue depth.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
