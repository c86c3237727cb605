// Package ipc models the request channel of the mass-storage service:
// messages, the bounded queue that carries them, the device registry that
// routes OPEN paths to a queue, and the frame codec used on the socket.
package ipc

import (
	"fmt"
	"sync/atomic"
)

// Kind identifies the class of a client message.
type Kind int32

const (
	KindOpen   Kind = 1
	KindClose  Kind = 2
	KindRead   Kind = 3
	KindWrite  Kind = 4
	KindSeek   Kind = 5
	KindIoctl  Kind = 6
	KindIoctlv Kind = 7
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "OPEN"
	case KindClose:
		return "CLOSE"
	case KindRead:
		return "READ"
	case KindWrite:
		return "WRITE"
	case KindSeek:
		return "SEEK"
	case KindIoctl:
		return "IOCTL"
	case KindIoctlv:
		return "IOCTLV"
	default:
		return fmt.Sprintf("KIND(%d)", int32(k))
	}
}

// Acknowledgment statuses.
const (
	StatusOK     int32 = 0
	StatusEINVAL int32 = -4
	StatusENOENT int32 = -6
	StatusENOMEM int32 = -22
)

// OpenRequest is the payload of a KindOpen message.
type OpenRequest struct {
	Path     string
	ResultFD int32 // handle returned to the caller on success
}

// IoctlvRequest is the payload of a KindIoctlv message. The first NumIn
// vector entries are inputs, the following NumIO are input/output.
type IoctlvRequest struct {
	Command uint32
	NumIn   int
	NumIO   int
	Vector  [][]byte
}

// Message is one entry on the request channel.
type Message struct {
	Kind   Kind
	Open   OpenRequest
	Ioctlv IoctlvRequest

	// Handle is the client handle the message arrived on. Zero for OPEN.
	Handle int32

	// RequestID and Peer are set by the transport for logging.
	RequestID string
	Peer      string

	reply chan int32
	acked atomic.Bool
}

// NewOpen builds an OPEN message.
func NewOpen(path string, resultFD int32) *Message {
	return &Message{Kind: KindOpen, Open: OpenRequest{Path: path, ResultFD: resultFD}}
}

// NewClose builds a CLOSE message for handle.
func NewClose(handle int32) *Message {
	return &Message{Kind: KindClose, Handle: handle}
}

// NewIoctlv builds an IOCTLV message.
func NewIoctlv(handle int32, command uint32, numIn, numIO int, vector [][]byte) *Message {
	return &Message{
		Kind:   KindIoctlv,
		Handle: handle,
		Ioctlv: IoctlvRequest{Command: command, NumIn: numIn, NumIO: numIO, Vector: vector},
	}
}

// Acked reports whether the message has been acknowledged.
func (m *Message) Acked() bool {
	return m.acked.Load()
}

// Hardware event sentinels. They are recognised by pointer identity and are
// never acknowledged. Their Kind is zero so they cannot be mistaken for a
// client message.
var (
	DeviceChange = &Message{}
	AttachFinish = &Message{}
	MountPoll    = &Message{}
)

// IsSentinel reports whether m is one of the hardware event sentinels.
func IsSentinel(m *Message) bool {
	return m == DeviceChange || m == AttachFinish || m == MountPoll
}
