package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/bufpool"
	"github.com/marmos91/umsd/pkg/ipc"
)

// closeTimeout bounds the CLOSE messages sent for handles left open by a
// client that disconnects. Shutdown cuts it short.
const closeTimeout = 5 * time.Second

// connection serves one client. Handles are per connection: the server
// allocates them on OPEN and remembers which queue each one targets.
type connection struct {
	srv  *Server
	conn net.Conn
	peer string

	handles    map[int32]*ipc.Queue
	nextHandle int32
}

func newConnection(s *Server, nc net.Conn) *connection {
	peer := nc.RemoteAddr().String()
	if peer == "" || peer == "@" {
		peer = "unix:" + uuid.NewString()[:8]
	}
	return &connection{
		srv:     s,
		conn:    nc,
		peer:    peer,
		handles: make(map[int32]*ipc.Queue),
	}
}

func (c *connection) serve(ctx context.Context) {
	defer c.release()

	r := bufio.NewReader(c.conn)
	w := bufio.NewWriter(c.conn)
	buf := bufpool.Get(bufpool.DefaultSmallSize)
	defer func() { bufpool.Put(buf) }()

	for {
		var req ipc.Request
		var err error
		buf, err = ipc.ReadFrame(r, buf, &req)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrDeadlineExceeded) {
				logger.Debug("Frame read failed", logger.KeyPeer, c.peer, logger.Err(err))
			}
			return
		}

		reply := c.handle(ctx, &req)
		if err := ipc.WriteFrame(w, reply); err != nil {
			logger.Debug("Frame write failed", logger.KeyPeer, c.peer, logger.Err(err))
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *connection) handle(ctx context.Context, req *ipc.Request) *ipc.Reply {
	reply := &ipc.Reply{ID: req.ID}

	switch ipc.Kind(req.Kind) {
	case ipc.KindOpen:
		reply.Status = c.open(ctx, req.Path)
	case ipc.KindClose:
		reply.Status = c.close(ctx, req.Handle)
	case ipc.KindIoctlv:
		reply.Status, reply.Vector = c.ioctlv(ctx, req)
	default:
		q, ok := c.handles[req.Handle]
		if !ok {
			reply.Status = ipc.StatusEINVAL
			break
		}
		// The service answers unsupported kinds itself.
		reply.Status = c.send(ctx, q, &ipc.Message{Kind: ipc.Kind(req.Kind), Handle: req.Handle})
	}
	return reply
}

func (c *connection) send(ctx context.Context, q *ipc.Queue, msg *ipc.Message) int32 {
	status, _ := c.trySend(ctx, q, msg)
	return status
}

// trySend submits msg. On error the message may still be queued, so its
// buffers must stay valid.
func (c *connection) trySend(ctx context.Context, q *ipc.Queue, msg *ipc.Message) (int32, error) {
	msg.RequestID = uuid.NewString()
	msg.Peer = c.peer

	status, err := q.Send(ctx, msg)
	if err != nil {
		logger.Debug("Request not completed", logger.KeyPeer, c.peer, logger.KeyRequestID, msg.RequestID, logger.Err(err))
		return ipc.StatusEINVAL, err
	}
	return status, nil
}

func (c *connection) open(ctx context.Context, path string) int32 {
	q, err := c.srv.registry.Lookup(path)
	if err != nil {
		return ipc.StatusENOENT
	}

	c.nextHandle++
	handle := c.nextHandle
	status := c.send(ctx, q, ipc.NewOpen(path, handle))
	if status >= 0 {
		c.handles[status] = q
	}
	return status
}

func (c *connection) close(ctx context.Context, handle int32) int32 {
	q, ok := c.handles[handle]
	if !ok {
		return ipc.StatusEINVAL
	}
	delete(c.handles, handle)
	return c.send(ctx, q, ipc.NewClose(handle))
}

// ioctlv copies the request vector into allocator memory, submits it and
// returns the input/output buffers.
func (c *connection) ioctlv(ctx context.Context, req *ipc.Request) (int32, [][]byte) {
	q, ok := c.handles[req.Handle]
	if !ok {
		return ipc.StatusEINVAL, nil
	}

	vector := make([][]byte, len(req.Vector))
	abandoned := false
	defer func() {
		if !abandoned {
			c.freeVector(vector)
		}
	}()
	for i, v := range req.Vector {
		if len(v) == 0 {
			vector[i] = []byte{}
			continue
		}
		b, err := c.allocate(len(v))
		if err != nil {
			logger.Warn("Request buffer allocation failed", logger.KeyPeer, c.peer, logger.KeyLength, len(v), logger.Err(err))
			return ipc.StatusENOMEM, nil
		}
		copy(b, v)
		vector[i] = b
	}

	numIn, numIO := int(req.NumIn), int(req.NumIO)
	status, err := c.trySend(ctx, q, ipc.NewIoctlv(req.Handle, req.Command, numIn, numIO, vector))
	if err != nil {
		abandoned = true
		return status, nil
	}

	lo := min(numIn, len(vector))
	hi := min(numIn+numIO, len(vector))
	out := make([][]byte, 0, hi-lo)
	for _, b := range vector[lo:hi] {
		out = append(out, append([]byte(nil), b...))
	}
	return status, out
}

func (c *connection) allocate(n int) ([]byte, error) {
	if c.srv.alloc == nil {
		return make([]byte, n), nil
	}
	return c.srv.alloc.Alloc(n)
}

func (c *connection) freeVector(vector [][]byte) {
	if c.srv.alloc == nil {
		return
	}
	for _, b := range vector {
		if len(b) > 0 {
			_ = c.srv.alloc.Free(b)
		}
	}
}

// release closes handles the client left open and the socket.
func (c *connection) release() {
	if len(c.handles) > 0 {
		ctx, cancel := context.WithTimeout(c.srv.requestCtx, closeTimeout)
		defer cancel()
		for h, q := range c.handles {
			c.send(ctx, q, ipc.NewClose(h))
		}
		c.handles = nil
	}
	_ = c.conn.Close()
}
