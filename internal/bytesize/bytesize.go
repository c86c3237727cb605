// Package bytesize parses human-readable sizes used in configuration:
// heap arena size, backend chunk size and image capacity.
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ByteSize is a size in bytes. It decodes from plain numbers ("32768") or
// from a number with a unit ("32Ki", "1.5GiB", "500MB").
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var units = map[string]ByteSize{
	"": B, "b": B,
	"k": KB, "kb": KB, "m": MB, "mb": MB, "g": GB, "gb": GB, "t": TB, "tb": TB,
	"ki": KiB, "kib": KiB, "mi": MiB, "mib": MiB, "gi": GiB, "gib": GiB, "ti": TiB, "tib": TiB,
}

// Parse parses a human-readable byte size.
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' })
	num, unit := s, ""
	if split >= 0 {
		num, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	mult, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	if !strings.Contains(num, ".") {
		n, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", num)
		}
		if mult > 1 && n > math.MaxUint64/uint64(mult) {
			return 0, fmt.Errorf("byte size %q overflows", s)
		}
		return ByteSize(n) * mult, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", num)
	}
	v := f * float64(mult)
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}
	return ByteSize(v), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize decodes
// directly through mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText writes the size back in the largest exact binary unit.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "Ti"}, {GiB, "Gi"}, {MiB, "Mi"}, {KiB, "Ki"}} {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.name), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns a human-readable representation of the byte size.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Sectors returns how many whole sectors of the given size fit in b.
func (b ByteSize) Sectors(sectorSize uint32) uint64 {
	if sectorSize == 0 {
		return 0
	}
	return uint64(b) / uint64(sectorSize)
}

// Int returns the size as an int, saturating at math.MaxInt.
func (b ByteSize) Int() int {
	if uint64(b) > math.MaxInt {
		return math.MaxInt
	}
	return int(b)
}
