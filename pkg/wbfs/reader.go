package wbfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/storage"
)

// Status values returned by Open.
const (
	StatusOK       int32 = 0
	StatusNotFound int32 = -1
)

// Disc is an open disc.
type Disc struct {
	ID     [IDLen]byte
	Slot   int
	Header []byte // first 0x100 bytes of the disc header
	blocks []uint16
}

// Blocks returns the number of allocated WBFS blocks.
func (d *Disc) Blocks() int {
	n := 0
	for _, b := range d.blocks {
		if b != 0 {
			n++
		}
	}
	return n
}

// Reader serves disc reads from a WBFS partition on a storage device.
type Reader struct {
	device       storage.Device
	partitionLBA uint32

	mu   sync.Mutex
	head *Head
	disc *Disc
}

// NewReader creates a reader for the partition starting at partitionLBA.
func NewReader(device storage.Device, partitionLBA uint32) *Reader {
	return &Reader{device: device, partitionLBA: partitionLBA}
}

// Open selects the disc whose header copy starts with id. It returns
// StatusOK or StatusNotFound; the previously open disc is closed either way.
func (r *Reader) Open(ctx context.Context, id []byte) int32 {
	ctx, span := telemetry.StartWBFSSpan(ctx, "open", telemetry.DiscID(id))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.disc = nil

	disc, err := r.open(ctx, id)
	if err != nil {
		logger.DebugCtx(ctx, "WBFS open failed", logger.DiscID(id), logger.Err(err))
		telemetry.RecordError(ctx, err)
		return StatusNotFound
	}

	r.disc = disc
	logger.InfoCtx(ctx, "WBFS disc opened", logger.DiscID(id), "slot", disc.Slot, "blocks", disc.Blocks())
	return StatusOK
}

func (r *Reader) open(ctx context.Context, id []byte) (*Disc, error) {
	if len(id) < IDLen {
		return nil, fmt.Errorf("%w: id is %d bytes", ErrNotFound, len(id))
	}

	head, err := r.readHead(ctx)
	if err != nil {
		return nil, err
	}

	info := make([]byte, int(head.DiscInfoSectors())*head.HDSectorSize())
	for slot, used := range head.DiscTable {
		if used == 0 {
			continue
		}
		lba := r.partitionLBA + head.DiscInfoLBA(slot)

		// The header copy sits in the first sector of the record.
		first := info[:head.HDSectorSize()]
		if err := r.device.ReadSectors(ctx, lba, 1, first); err != nil {
			return nil, fmt.Errorf("wbfs: read slot %d: %w", slot, err)
		}
		if !bytes.Equal(first[:IDLen], id[:IDLen]) {
			continue
		}

		if err := r.device.ReadSectors(ctx, lba, head.DiscInfoSectors(), info); err != nil {
			return nil, fmt.Errorf("wbfs: read slot %d: %w", slot, err)
		}

		d := &Disc{
			Slot:   slot,
			Header: append([]byte(nil), info[:DiscHeaderCopySize]...),
			blocks: make([]uint16, head.BlocksPerDisc()),
		}
		copy(d.ID[:], info[:IDLen])
		for i := range d.blocks {
			d.blocks[i] = binary.BigEndian.Uint16(info[DiscHeaderCopySize+2*i:])
		}
		r.head = head
		return d, nil
	}
	return nil, ErrNotFound
}

func (r *Reader) readHead(ctx context.Context) (*Head, error) {
	sectorSize, _, err := r.device.ReadCapacity(ctx)
	if err != nil {
		return nil, fmt.Errorf("wbfs: capacity: %w", err)
	}

	sector := make([]byte, sectorSize)
	if err := r.device.ReadSectors(ctx, r.partitionLBA, 1, sector); err != nil {
		return nil, fmt.Errorf("wbfs: read head: %w", err)
	}

	head, err := ParseHead(sector)
	if err != nil {
		return nil, err
	}
	if head.HDSectorSize() != int(sectorSize) {
		return nil, fmt.Errorf("%w: head sector size %d, device %d", ErrBadGeometry, head.HDSectorSize(), sectorSize)
	}
	return head, nil
}

// Current returns the open disc, or nil.
func (r *Reader) Current() *Disc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disc
}

// Read reads length bytes of the open disc starting at offset, which is
// counted in 4-byte words. Unallocated blocks read as zeroes.
func (r *Reader) Read(ctx context.Context, buf []byte, length, offset uint32) error {
	ctx, span := telemetry.StartWBFSSpan(ctx, "read", telemetry.Bytes(int(length)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disc == nil {
		return ErrNoDisc
	}
	if uint64(length) > uint64(len(buf)) {
		return fmt.Errorf("%w: length %d exceeds buffer %d", storage.ErrOutOfRange, length, len(buf))
	}

	h := r.head
	blockSize := uint64(h.WBFSSectorSize())
	hdSize := uint64(h.HDSectorSize())
	pos := uint64(offset) << 2
	end := pos + uint64(length)
	if end > uint64(len(r.disc.blocks))*blockSize {
		return fmt.Errorf("%w: [%d, %d)", ErrOutOfDisc, pos, end)
	}

	var scratch []byte
	for done := uint64(0); pos < end; {
		block := pos / blockSize
		within := pos % blockSize
		n := min(blockSize-within, end-pos)
		dst := buf[done : done+n]

		wlba := r.disc.blocks[block]
		if wlba == 0 {
			clear(dst)
		} else {
			// Absolute byte address, then whole device sectors around it.
			abs := uint64(r.partitionLBA)*hdSize + uint64(wlba)*blockSize + within
			first := abs / hdSize
			skip := abs % hdSize
			count := (skip + n + hdSize - 1) / hdSize

			if need := int(count * hdSize); cap(scratch) < need {
				scratch = make([]byte, need)
			}
			s := scratch[:count*hdSize]
			if first > uint64(^uint32(0)) {
				return fmt.Errorf("%w: sector %d", storage.ErrOutOfRange, first)
			}
			if err := r.device.ReadSectors(ctx, uint32(first), uint32(count), s); err != nil {
				telemetry.RecordError(ctx, err)
				return fmt.Errorf("wbfs: read block %d: %w", block, err)
			}
			copy(dst, s[skip:skip+n])
		}

		pos += n
		done += n
	}
	return nil
}
