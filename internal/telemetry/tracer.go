package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for IPC, storage and WBFS spans.
const (
	AttrKind    = "ipc.kind"
	AttrCommand = "ipc.command"
	AttrCode    = "ipc.code"
	AttrHandle  = "ipc.handle"
	AttrStatus  = "ipc.status"
	AttrEvent   = "ipc.event"
	AttrPeer    = "ipc.peer"

	AttrUnit       = "ums.unit"
	AttrSector     = "ums.sector"
	AttrCount      = "ums.count"
	AttrSectorSize = "ums.sector_size"

	AttrBackend = "storage.backend"
	AttrBucket  = "storage.bucket"
	AttrKey     = "storage.key"
	AttrBytes   = "storage.bytes"

	AttrDiscID = "wbfs.disc_id"
	AttrOffset = "wbfs.offset"
	AttrLength = "wbfs.length"
)

func Kind(k string) attribute.KeyValue       { return attribute.String(AttrKind, k) }
func Command(name string) attribute.KeyValue { return attribute.String(AttrCommand, name) }
func Handle(h int32) attribute.KeyValue      { return attribute.Int(AttrHandle, int(h)) }
func Status(s int32) attribute.KeyValue      { return attribute.Int(AttrStatus, int(s)) }
func Event(name string) attribute.KeyValue   { return attribute.String(AttrEvent, name) }
func Peer(addr string) attribute.KeyValue    { return attribute.String(AttrPeer, addr) }
func Unit(u uint32) attribute.KeyValue       { return attribute.Int64(AttrUnit, int64(u)) }
func Sector(s uint32) attribute.KeyValue     { return attribute.Int64(AttrSector, int64(s)) }
func Count(c uint32) attribute.KeyValue      { return attribute.Int64(AttrCount, int64(c)) }
func Backend(b string) attribute.KeyValue    { return attribute.String(AttrBackend, b) }
func Bucket(b string) attribute.KeyValue     { return attribute.String(AttrBucket, b) }
func StorageKey(k string) attribute.KeyValue { return attribute.String(AttrKey, k) }
func Bytes(n int) attribute.KeyValue         { return attribute.Int(AttrBytes, n) }

// Code formats a raw command code as hex.
func Code(code uint32) attribute.KeyValue {
	return attribute.String(AttrCode, fmt.Sprintf("0x%08x", code))
}

// DiscID returns the disc identifier attribute.
func DiscID(id []byte) attribute.KeyValue {
	return attribute.String(AttrDiscID, fmt.Sprintf("%x", id))
}

// StartDispatchSpan starts a span around one ioctlv command.
func StartDispatchSpan(ctx context.Context, name string, code uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Command(name), Code(code)}, attrs...)
	return Tracer().Start(ctx, "ipc."+name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(all...),
	)
}

// StartStorageSpan starts a span around a backend operation.
func StartStorageSpan(ctx context.Context, backend, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Backend(backend)}, attrs...)
	return Tracer().Start(ctx, "storage."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}

// StartWBFSSpan starts a span around a WBFS open or read.
func StartWBFSSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "wbfs."+operation, trace.WithAttributes(attrs...))
}
