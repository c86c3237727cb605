package client

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/umsd/internal/adapter/usb"
	"github.com/marmos91/umsd/pkg/ipc"
)

// Handle is an open device.
type Handle struct {
	c  *Client
	fd int32
}

// FD returns the handle number assigned by the service.
func (h *Handle) FD() int32 { return h.fd }

// Close closes the handle.
func (h *Handle) Close(ctx context.Context) error {
	reply, err := h.c.Do(ctx, &ipc.Request{Kind: int32(ipc.KindClose), Handle: h.fd})
	if err != nil {
		return err
	}
	if reply.Status != ipc.StatusOK {
		return &StatusError{Op: "close", Status: reply.Status}
	}
	return nil
}

// Ioctlv issues a raw command. in are input buffers, io input/output
// buffers; the returned slices hold the io buffers after the command.
func (h *Handle) Ioctlv(ctx context.Context, command uint32, in, io [][]byte) (int32, [][]byte, error) {
	vector := make([][]byte, 0, len(in)+len(io))
	vector = append(vector, in...)
	vector = append(vector, io...)

	reply, err := h.c.Do(ctx, &ipc.Request{
		Kind:    int32(ipc.KindIoctlv),
		Handle:  h.fd,
		Command: command,
		NumIn:   uint32(len(in)),
		NumIO:   uint32(len(io)),
		Vector:  vector,
	})
	if err != nil {
		return 0, nil, err
	}
	return reply.Status, reply.Vector, nil
}

func be32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

// call runs a command whose only result is the status, expecting zero.
func (h *Handle) call(ctx context.Context, op string, command uint32, in, io [][]byte) ([][]byte, error) {
	status, out, err := h.Ioctlv(ctx, command, in, io)
	if err != nil {
		return nil, err
	}
	if status != ipc.StatusOK {
		return nil, &StatusError{Op: op, Status: status}
	}
	return out, nil
}

// Init starts the mass-storage device.
func (h *Handle) Init(ctx context.Context) error {
	_, err := h.call(ctx, "init", usb.CmdUMSInit, nil, nil)
	return err
}

// Unmount stops the device.
func (h *Handle) Unmount(ctx context.Context) error {
	_, err := h.call(ctx, "unmount", usb.CmdUSBUnmount, nil, nil)
	return err
}

// IsInserted reports whether media is present.
func (h *Handle) IsInserted(ctx context.Context) (bool, error) {
	status, _, err := h.Ioctlv(ctx, usb.CmdUSBIsInserted, nil, nil)
	if err != nil {
		return false, err
	}
	return status == ipc.StatusOK, nil
}

// Capacity returns the sector size and count of the selected unit.
func (h *Handle) Capacity(ctx context.Context) (sectorSize, sectorCount uint32, err error) {
	status, out, err := h.Ioctlv(ctx, usb.CmdUMSGetCapacity, nil, [][]byte{make([]byte, 4)})
	if err != nil {
		return 0, 0, err
	}
	// The sector count travels in the status, so 1 is indistinguishable
	// from a storage failure and is treated as one.
	if status <= 0 || status == usb.StatusStorageFailure || len(out) != 1 || len(out[0]) < 4 {
		return 0, 0, &StatusError{Op: "capacity", Status: status}
	}
	return binary.BigEndian.Uint32(out[0]), uint32(status), nil
}

// ReadSectors reads count sectors into buf.
func (h *Handle) ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	out, err := h.call(ctx, "read sectors", usb.CmdUMSReadSectors,
		[][]byte{be32(sector), be32(count)}, [][]byte{make([]byte, len(buf))})
	if err != nil {
		return err
	}
	if len(out) != 1 {
		return fmt.Errorf("read sectors: %d buffers returned", len(out))
	}
	copy(buf, out[0])
	return nil
}

// WriteSectors writes count sectors from buf.
func (h *Handle) WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	_, err := h.call(ctx, "write sectors", usb.CmdUMSWriteSectors,
		[][]byte{be32(sector), be32(count)}, [][]byte{buf})
	return err
}

// SetUnit selects the logical unit.
func (h *Handle) SetUnit(ctx context.Context, unit uint32) error {
	status, _, err := h.Ioctlv(ctx, usb.CmdUMSSetDrive, [][]byte{be32(unit)}, nil)
	if err != nil {
		return err
	}
	if status < 0 || uint32(status) != unit {
		return &StatusError{Op: "set unit", Status: status}
	}
	return nil
}

// OpenDisc opens the WBFS disc with the 6-byte id.
func (h *Handle) OpenDisc(ctx context.Context, id string) error {
	if len(id) != usb.DiscIDLen {
		return fmt.Errorf("disc id %q must be %d characters", id, usb.DiscIDLen)
	}
	_, err := h.call(ctx, "open disc", usb.CmdWBFSOpenDisc, [][]byte{[]byte(id)}, nil)
	return err
}

// ReadDisc reads len(buf) bytes of the open disc at offset, in 4-byte words.
func (h *Handle) ReadDisc(ctx context.Context, offset uint32, buf []byte) error {
	out, err := h.call(ctx, "read disc", usb.CmdWBFSReadDisc,
		[][]byte{be32(offset), be32(uint32(len(buf)))}, [][]byte{make([]byte, len(buf))})
	if err != nil {
		return err
	}
	if len(out) != 1 {
		return fmt.Errorf("read disc: %d buffers returned", len(out))
	}
	copy(buf, out[0])
	return nil
}
