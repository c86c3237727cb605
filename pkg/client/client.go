// Package client talks to umsd over its unix socket.
//
//	c, err := client.Dial(ctx, "/run/umsd/umsd.sock")
//	h, err := c.Open(ctx, "/dev/usb2")
//	err = h.Init(ctx)
//	err = h.ReadSectors(ctx, 0, 1, buf)
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/umsd/internal/adapter/usb"
	"github.com/marmos91/umsd/pkg/ipc"
)

// StatusError is returned when the service answers with a failure status.
type StatusError struct {
	Op     string
	Status int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d (%s)", e.Op, e.Status, StatusText(e.Status))
}

// StatusText names well-known statuses.
func StatusText(status int32) string {
	switch status {
	case ipc.StatusOK:
		return "ok"
	case ipc.StatusEINVAL:
		return "invalid argument"
	case ipc.StatusENOENT:
		return "no such device"
	case ipc.StatusENOMEM:
		return "out of memory"
	case usb.StatusStorageFailure:
		return "storage failure"
	case usb.StatusDiscReadFailure:
		return "disc read failure"
	default:
		return "error"
	}
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int32) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// Client is one connection to the service. Requests on a client are
// serialised.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	buf    []byte
	nextID uint32
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}, nil
}

// Close closes the connection. The service closes any handle left open.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one request and waits for its reply. ctx's deadline applies to
// the socket I/O.
func (c *Client) Do(ctx context.Context, req *ipc.Request) (*ipc.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Now()) })
	defer stop()

	c.nextID++
	req.ID = c.nextID
	if err := ipc.WriteFrame(c.w, req); err != nil {
		return nil, c.ctxErr(ctx, err)
	}
	if err := c.w.Flush(); err != nil {
		return nil, c.ctxErr(ctx, err)
	}

	var reply ipc.Reply
	var err error
	if c.buf, err = ipc.ReadFrame(c.r, c.buf, &reply); err != nil {
		return nil, c.ctxErr(ctx, err)
	}
	if reply.ID != req.ID {
		return nil, fmt.Errorf("reply %d does not match request %d", reply.ID, req.ID)
	}
	return &reply, nil
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Open opens a device path and returns its handle.
func (c *Client) Open(ctx context.Context, path string) (*Handle, error) {
	reply, err := c.Do(ctx, &ipc.Request{Kind: int32(ipc.KindOpen), Path: path})
	if err != nil {
		return nil, err
	}
	if reply.Status < 0 {
		return nil, &StatusError{Op: "open " + path, Status: reply.Status}
	}
	return &Handle{c: c, fd: reply.Status}, nil
}
