package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// MaxFrameSize bounds a single frame on the wire.
const MaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned for frames over MaxFrameSize.
var ErrFrameTooLarge = errors.New("ipc: frame too large")

// Request is the wire form of a client message. Frames are a 4-byte
// big-endian length followed by the XDR encoding of the struct.
type Request struct {
	ID      uint32
	Kind    int32
	Handle  int32
	Path    string
	Command uint32
	NumIn   uint32
	NumIO   uint32
	Vector  [][]byte
}

// Reply carries the acknowledgment status and the input/output buffers of
// an IOCTLV back to the client.
type Reply struct {
	ID     uint32
	Status int32
	Vector [][]byte
}

// WriteFrame XDR-encodes v and writes it as one frame.
func WriteFrame(w io.Writer, v any) error {
	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, v); err != nil {
		return fmt.Errorf("ipc: encode frame: %w", err)
	}
	if body.Len() > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(body.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// ReadFrame reads one frame into buf (grown as needed) and decodes it into v.
// The returned slice can be reused for the next frame.
func ReadFrame(r io.Reader, buf []byte, v any) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return buf, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return buf, ErrFrameTooLarge
	}
	if uint32(cap(buf)) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if _, err := io.ReadFull(r, buf); err != nil {
		return buf, fmt.Errorf("ipc: short frame: %w", err)
	}
	if _, err := xdr.Unmarshal(bytes.NewReader(buf), v); err != nil {
		return buf, fmt.Errorf("ipc: decode frame: %w", err)
	}
	return buf, nil
}
