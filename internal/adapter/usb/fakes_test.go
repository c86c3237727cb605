package usb

import (
	"context"
	"errors"
	"sync"

	"github.com/marmos91/umsd/pkg/storage"
)

var errFake = errors.New("fake failure")

// fakeDevice records calls and serves sectors filled with the sector index.
type fakeDevice struct {
	mu sync.Mutex

	sectorSize  uint32
	sectorCount uint32
	inserted    bool
	fail        bool

	calls         []string
	deviceChanges []int32
	attaches      []int32
	written       map[uint32][]byte
}

var _ storage.Device = (*fakeDevice)(nil)

func newFakeDevice() *fakeDevice {
	return &fakeDevice{sectorSize: 512, sectorCount: 2048, inserted: true, written: map[uint32][]byte{}}
}

func (f *fakeDevice) call(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeDevice) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDevice) result() error {
	if f.fail {
		return errFake
	}
	return nil
}

func (f *fakeDevice) Startup(context.Context) error {
	f.call("startup")
	return f.result()
}

func (f *fakeDevice) ReadSectors(_ context.Context, sector, count uint32, buf []byte) error {
	f.call("read")
	if f.fail {
		return errFake
	}
	n := int(count * f.sectorSize)
	if len(buf) < n {
		return storage.ErrOutOfRange
	}
	for i := uint32(0); i < count; i++ {
		chunk := buf[i*f.sectorSize : (i+1)*f.sectorSize]
		for j := range chunk {
			chunk[j] = byte(sector + i)
		}
	}
	return nil
}

func (f *fakeDevice) WriteSectors(_ context.Context, sector, count uint32, buf []byte) error {
	f.call("write")
	if f.fail {
		return errFake
	}
	f.written[sector] = append([]byte(nil), buf[:count*f.sectorSize]...)
	return nil
}

func (f *fakeDevice) ReadCapacity(context.Context) (uint32, uint32, error) {
	f.call("capacity")
	if f.fail {
		return 0, 0, errFake
	}
	return f.sectorSize, f.sectorCount, nil
}

func (f *fakeDevice) IsInserted(context.Context) bool {
	f.call("inserted")
	return f.inserted
}

func (f *fakeDevice) Shutdown(context.Context) error {
	f.call("shutdown")
	return f.result()
}

func (f *fakeDevice) DeviceChange(v int32) {
	f.call("device_change")
	f.mu.Lock()
	f.deviceChanges = append(f.deviceChanges, v)
	f.mu.Unlock()
}

func (f *fakeDevice) AttachFinish(v int32) {
	f.call("attach_finish")
	f.mu.Lock()
	f.attaches = append(f.attaches, v)
	f.mu.Unlock()
}

// fakeDisc serves a disc image whose byte at word offset o is byte(o).
type fakeDisc struct {
	openStatus int32
	fail       bool
	openedID   []byte
	calls      int
}

func (f *fakeDisc) Open(_ context.Context, id []byte) int32 {
	f.calls++
	f.openedID = append([]byte(nil), id...)
	return f.openStatus
}

func (f *fakeDisc) Read(_ context.Context, buf []byte, length, offset uint32) error {
	f.calls++
	if f.fail {
		return errFake
	}
	for i := range buf[:length] {
		buf[i] = byte(offset)
	}
	return nil
}
