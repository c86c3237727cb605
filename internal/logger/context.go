package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging fields for one IPC message.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	RequestID string    // transport-assigned request identifier
	Kind      string    // message kind (OPEN, CLOSE, IOCTLV)
	Command   string    // ioctlv command name (READ_SECTORS, ...)
	Handle    int32     // client handle the message was sent on
	Peer      string    // remote peer of the transport connection
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a message of the given kind.
func NewLogContext(kind string) *LogContext {
	return &LogContext{
		Kind:      kind,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithCommand returns a copy with the command name set
func (lc *LogContext) WithCommand(command string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Command = command
	}
	return clone
}

// WithTrace returns a copy with the trace ID set
func (lc *LogContext) WithTrace(traceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
