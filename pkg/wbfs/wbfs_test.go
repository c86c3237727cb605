package wbfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/umsd/pkg/storage"
	"github.com/marmos91/umsd/pkg/storage/backend"
	"github.com/marmos91/umsd/pkg/storage/backend/memory"
	"github.com/marmos91/umsd/pkg/storage/ums"
)

const (
	testPartitionLBA = 8
	testSectors      = 16384 // 8 MiB
)

var testHead = Head{NumHDSectors: testSectors - testPartitionLBA, HDSectorShift: 9, WBFSSectorShift: 21}

// fill returns the content of a WBFS block in the test image.
func fill(seed byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed ^ byte(i) ^ byte(i>>9)
	}
	return b
}

// buildImage lays out a partition with two discs. "RMCE01" sits in slot 2
// and maps block 0 to partition block 1 and block 2 to partition block 2;
// its block 1 is unallocated.
func buildImage(t *testing.T) ([]byte, []byte, []byte) {
	t.Helper()

	h := testHead
	image := make([]byte, testSectors*512)
	part := image[testPartitionLBA*512:]

	h.DiscTable = make([]byte, h.MaxDiscs())
	h.DiscTable[0] = 1
	h.DiscTable[2] = 1
	copy(part, h.Marshal())

	writeDisc := func(slot int, id string, table map[int]uint16) {
		info := part[int(h.DiscInfoLBA(slot))*512:]
		copy(info, id)
		copy(info[0x20:], "test disc "+id)
		for block, wlba := range table {
			binary.BigEndian.PutUint16(info[DiscHeaderCopySize+2*block:], wlba)
		}
	}
	writeDisc(0, "GALE01", map[int]uint16{0: 3})
	writeDisc(2, "RMCE01", map[int]uint16{0: 1, 2: 2})

	blockSize := h.WBFSSectorSize()
	b1 := fill(0x11, blockSize)
	b2 := fill(0x22, blockSize)
	copy(part[1*blockSize:], b1)
	copy(part[2*blockSize:], b2)
	return image, b1, b2
}

func newReader(t *testing.T, image []byte) *Reader {
	t.Helper()

	unit, err := memory.NewFromImage(image, 512, true)
	require.NoError(t, err)
	dev, err := ums.New([]backend.Backend{unit}, nil)
	require.NoError(t, err)
	require.NoError(t, dev.Startup(context.Background()))
	return NewReader(dev, testPartitionLBA)
}

func TestHeadLayout(t *testing.T) {
	h := testHead
	assert.Equal(t, 512, h.HDSectorSize())
	assert.Equal(t, 2<<20, h.WBFSSectorSize())
	assert.Equal(t, 4482, h.BlocksPerDisc())
	assert.Equal(t, uint32(19), h.DiscInfoSectors())
	assert.Equal(t, 215, h.MaxDiscs())
	assert.Equal(t, uint32(1+2*19), h.DiscInfoLBA(2))
}

func TestParseHead(t *testing.T) {
	good := testHead
	good.DiscTable = []byte{1, 0, 1}
	sector := good.Marshal()

	h, err := ParseHead(sector)
	require.NoError(t, err)
	assert.Equal(t, good.NumHDSectors, h.NumHDSectors)
	assert.Len(t, h.DiscTable, 215)
	assert.Equal(t, []byte{1, 0, 1}, h.DiscTable[:3])

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrBadMagic},
		{"short", func(b []byte) []byte { return b[:8] }, ErrBadGeometry},
		{"hd shift", func(b []byte) []byte { b[8] = 3; return b }, ErrBadGeometry},
		{"wbfs shift below wii sector", func(b []byte) []byte { b[9] = 12; return b }, ErrBadGeometry},
		{"truncated sector", func(b []byte) []byte { return b[:100] }, ErrBadGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHead(tt.mutate(bytes.Clone(sector)))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen(t *testing.T) {
	image, _, _ := buildImage(t)
	r := newReader(t, image)
	ctx := context.Background()

	assert.Equal(t, StatusOK, r.Open(ctx, []byte("RMCE01")))
	d := r.Current()
	require.NotNil(t, d)
	assert.Equal(t, "RMCE01", string(d.ID[:]))
	assert.Equal(t, 2, d.Slot)
	assert.Equal(t, 2, d.Blocks())
	assert.Contains(t, string(d.Header), "test disc RMCE01")

	assert.Equal(t, StatusOK, r.Open(ctx, []byte("GALE01")))
	assert.Equal(t, 0, r.Current().Slot)
}

func TestOpenUnknownClosesPrevious(t *testing.T) {
	image, _, _ := buildImage(t)
	r := newReader(t, image)
	ctx := context.Background()

	require.Equal(t, StatusOK, r.Open(ctx, []byte("RMCE01")))
	assert.Equal(t, StatusNotFound, r.Open(ctx, []byte("ZZZZ99")))
	assert.Nil(t, r.Current())
	assert.ErrorIs(t, r.Read(ctx, make([]byte, 4), 4, 0), ErrNoDisc)

	assert.Equal(t, StatusNotFound, r.Open(ctx, []byte("RMC")))
}

func TestOpenBadPartition(t *testing.T) {
	image, _, _ := buildImage(t)
	image[testPartitionLBA*512] = 'X'
	r := newReader(t, image)

	assert.Equal(t, StatusNotFound, r.Open(context.Background(), []byte("RMCE01")))
}

func TestOpenDeviceNotStarted(t *testing.T) {
	image, _, _ := buildImage(t)
	unit, err := memory.NewFromImage(image, 512, true)
	require.NoError(t, err)
	dev, err := ums.New([]backend.Backend{unit}, nil)
	require.NoError(t, err)

	r := NewReader(dev, testPartitionLBA)
	assert.Equal(t, StatusNotFound, r.Open(context.Background(), []byte("RMCE01")))
}

func TestRead(t *testing.T) {
	image, b1, b2 := buildImage(t)
	r := newReader(t, image)
	ctx := context.Background()
	require.Equal(t, StatusOK, r.Open(ctx, []byte("RMCE01")))

	blockSize := uint32(testHead.WBFSSectorSize())
	words := func(byteOff uint32) uint32 { return byteOff >> 2 }

	tests := []struct {
		name   string
		offset uint32 // bytes
		length uint32
		want   []byte
	}{
		{"start of disc", 0, 1024, b1[:1024]},
		{"unaligned inside block", 12, 1000, b1[12:1012]},
		{"unallocated block", blockSize + 4096, 512, make([]byte, 512)},
		{"across allocated and unallocated", blockSize - 256, 512, append(bytes.Clone(b1[blockSize-256:]), make([]byte, 256)...)},
		{"across unallocated and allocated", 2*blockSize - 100, 200, append(make([]byte, 100), b2[:100]...)},
		{"zero length", 64, 0, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.Repeat([]byte{0xEE}, int(tt.length)+8)
			require.NoError(t, r.Read(ctx, buf, tt.length, words(tt.offset)))
			assert.Equal(t, tt.want, buf[:tt.length])
			assert.Equal(t, bytes.Repeat([]byte{0xEE}, 8), buf[tt.length:], "bytes past length untouched")
		})
	}
}

func TestReadBounds(t *testing.T) {
	image, _, _ := buildImage(t)
	r := newReader(t, image)
	ctx := context.Background()
	require.Equal(t, StatusOK, r.Open(ctx, []byte("RMCE01")))

	discBytes := uint64(testHead.BlocksPerDisc()) * uint64(testHead.WBFSSectorSize())
	lastWord := uint32((discBytes - 4) >> 2)

	assert.NoError(t, r.Read(ctx, make([]byte, 4), 4, lastWord))
	assert.ErrorIs(t, r.Read(ctx, make([]byte, 8), 8, lastWord), ErrOutOfDisc)
	assert.ErrorIs(t, r.Read(ctx, make([]byte, 4), 8, 0), storage.ErrOutOfRange)
}
