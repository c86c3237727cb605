// Package wbfs reads discs stored in a WBFS partition.
//
// A WBFS partition starts with a one-sector head followed by one disc-info
// record per slot. Each record holds a copy of the first 0x100 bytes of the
// disc header and a table mapping every WBFS block of the disc to a block of
// the partition (zero when the block was never allocated).
package wbfs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the head signature.
var Magic = [4]byte{'W', 'B', 'F', 'S'}

const (
	// HeadSize is the fixed part of the head before the disc table.
	HeadSize = 12

	// DiscHeaderCopySize is the disc-header copy at the start of a disc-info record.
	DiscHeaderCopySize = 0x100

	// IDLen is the length of a disc identifier.
	IDLen = 6

	// WiiSectorShift is log2 of the Wii disc sector size.
	WiiSectorShift = 15

	// WiiSectorsPerDisc covers a dual-layer disc.
	WiiSectorsPerDisc = 143432 * 2
)

var (
	// ErrBadMagic is returned when the head does not start with Magic.
	ErrBadMagic = errors.New("wbfs: bad magic")

	// ErrBadGeometry is returned for impossible sector sizes.
	ErrBadGeometry = errors.New("wbfs: bad geometry")

	// ErrNoDisc is returned by Read when no disc is open.
	ErrNoDisc = errors.New("wbfs: no disc open")

	// ErrNotFound is returned when no disc matches the identifier.
	ErrNotFound = errors.New("wbfs: disc not found")

	// ErrOutOfDisc is returned for reads beyond the disc.
	ErrOutOfDisc = errors.New("wbfs: read beyond disc")
)

// Head is the decoded partition head.
type Head struct {
	// NumHDSectors is the partition size in device sectors.
	NumHDSectors uint32

	// HDSectorShift is log2 of the device sector size.
	HDSectorShift uint8

	// WBFSSectorShift is log2 of the WBFS block size.
	WBFSSectorShift uint8

	// DiscTable has one byte per slot; non-zero marks a used slot.
	DiscTable []byte
}

// ParseHead decodes the head sector.
func ParseHead(sector []byte) (*Head, error) {
	if len(sector) < HeadSize {
		return nil, fmt.Errorf("%w: head is %d bytes", ErrBadGeometry, len(sector))
	}
	if [4]byte(sector[:4]) != Magic {
		return nil, ErrBadMagic
	}

	h := &Head{
		NumHDSectors:    binary.BigEndian.Uint32(sector[4:8]),
		HDSectorShift:   sector[8],
		WBFSSectorShift: sector[9],
	}
	if h.HDSectorShift < 9 || h.HDSectorShift > 16 ||
		h.WBFSSectorShift < WiiSectorShift || h.WBFSSectorShift > 30 ||
		h.WBFSSectorShift < h.HDSectorShift {
		return nil, fmt.Errorf("%w: hd shift %d, wbfs shift %d", ErrBadGeometry, h.HDSectorShift, h.WBFSSectorShift)
	}
	if len(sector) < h.HDSectorSize() {
		return nil, fmt.Errorf("%w: head is %d bytes, sector is %d", ErrBadGeometry, len(sector), h.HDSectorSize())
	}

	h.DiscTable = sector[HeadSize:h.HDSectorSize()][:h.MaxDiscs()]
	return h, nil
}

// Marshal encodes the head into a sector-sized buffer.
func (h *Head) Marshal() []byte {
	b := make([]byte, h.HDSectorSize())
	copy(b, Magic[:])
	binary.BigEndian.PutUint32(b[4:8], h.NumHDSectors)
	b[8] = h.HDSectorShift
	b[9] = h.WBFSSectorShift
	copy(b[HeadSize:], h.DiscTable)
	return b
}

// HDSectorSize returns the device sector size.
func (h *Head) HDSectorSize() int { return 1 << h.HDSectorShift }

// WBFSSectorSize returns the WBFS block size.
func (h *Head) WBFSSectorSize() int { return 1 << h.WBFSSectorShift }

// BlocksPerDisc is the length of a disc's block table.
func (h *Head) BlocksPerDisc() int {
	return WiiSectorsPerDisc >> (h.WBFSSectorShift - WiiSectorShift)
}

// DiscInfoSectors is the size of one disc-info record in device sectors.
func (h *Head) DiscInfoSectors() uint32 {
	n := DiscHeaderCopySize + 2*h.BlocksPerDisc()
	sz := h.HDSectorSize()
	return uint32((n + sz - 1) / sz)
}

// MaxDiscs returns the number of disc slots. The slots must fit both the
// head sector and the space before the free-block bitmap.
func (h *Head) MaxDiscs() int {
	limit := h.HDSectorSize() - HeadSize

	wiiSectors := uint64(h.NumHDSectors) / (1 << WiiSectorShift) * uint64(h.HDSectorSize())
	wbfsSectors := wiiSectors >> (h.WBFSSectorShift - WiiSectorShift)
	bitmap := wbfsSectors / 8
	if bitmap >= uint64(h.WBFSSectorSize()) {
		return 0
	}
	freeBlocksLBA := (uint64(h.WBFSSectorSize()) - bitmap) >> h.HDSectorShift
	if freeBlocksLBA == 0 {
		return 0
	}
	n := int((freeBlocksLBA - 1) / uint64(h.DiscInfoSectors()))
	return min(n, limit)
}

// DiscInfoLBA returns the partition-relative sector of slot i.
func (h *Head) DiscInfoLBA(i int) uint32 {
	return 1 + uint32(i)*h.DiscInfoSectors()
}
