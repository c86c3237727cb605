package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so
// log lines from the loop, the transport and the storage layer can be joined.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// IPC message
	KeyRequestID = "request_id" // transport request identifier
	KeyKind      = "kind"       // OPEN, CLOSE, IOCTLV
	KeyCommand   = "command"    // ioctlv command name
	KeyCode      = "code"       // raw ioctlv command code
	KeyHandle    = "handle"     // client handle
	KeyPath      = "path"       // device path on OPEN
	KeyStatus    = "status"     // acknowledgment status
	KeyEvent     = "event"      // async event class
	KeyPeer      = "peer"       // transport peer

	// Storage
	KeyUnit        = "unit"         // logical unit number
	KeySector      = "sector"       // first sector of a transfer
	KeyCount       = "count"        // sector count
	KeySectorSize  = "sector_size"  // bytes per sector
	KeySectorCount = "sector_count" // sectors per unit
	KeyOffset      = "offset"       // byte or word offset
	KeyLength      = "length"       // byte length
	KeyBackend     = "backend"      // memory, file, s3, badger
	KeyBucket      = "bucket"
	KeyKey         = "key"
	KeyDiscID      = "disc_id"
	KeyInserted    = "inserted" // media presence on mount poll

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// Command returns a slog.Attr for an ioctlv command name and its raw code
func Command(name string, code uint32) slog.Attr {
	return slog.Group("cmd", slog.String("name", name), slog.String(KeyCode, fmt.Sprintf("0x%08x", code)))
}

// Status returns a slog.Attr for an acknowledgment status
func Status(code int32) slog.Attr {
	return slog.Int(KeyStatus, int(code))
}

// Unit returns a slog.Attr for a logical unit number
func Unit(u uint32) slog.Attr {
	return slog.Any(KeyUnit, u)
}

// Sector returns a slog.Attr for a sector index
func Sector(s uint32) slog.Attr {
	return slog.Any(KeySector, s)
}

// Count returns a slog.Attr for a sector count
func Count(c uint32) slog.Attr {
	return slog.Any(KeyCount, c)
}

// DiscID returns a slog.Attr for a disc identifier, printed as text when printable
func DiscID(id []byte) slog.Attr {
	for _, b := range id {
		if b < 0x20 || b > 0x7e {
			return slog.String(KeyDiscID, fmt.Sprintf("%x", id))
		}
	}
	return slog.String(KeyDiscID, string(id))
}

// Err returns a slog.Attr for an error; nil errors produce an empty attr
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
