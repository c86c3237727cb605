package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// withRecorder installs an in-memory span recorder for the duration of t.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := newProvider(Config{SampleRate: 1}, sdktrace.WithSpanProcessor(rec))
	install(tp, tp.Tracer(instrumentationName))
	t.Cleanup(func() {
		install(nil, noop.NewTracerProvider().Tracer(instrumentationName))
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "umsd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestSampleRatioClamps(t *testing.T) {
	assert.Equal(t, 0.0, Config{SampleRate: -1}.sampleRatio())
	assert.Equal(t, 0.25, Config{SampleRate: 0.25}.sampleRatio())
	assert.Equal(t, 1.0, Config{SampleRate: 7}.sampleRatio())
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))

	assert.False(t, IsEnabled())

	ctx, span := StartSpan(ctx, "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestStartDispatchSpanRecordsAttributes(t *testing.T) {
	rec := withRecorder(t)
	assert.True(t, IsEnabled())

	ctx, span := StartDispatchSpan(context.Background(), "READ_SECTORS", 0x554D5303, Unit(1), Sector(64), Count(8))
	assert.NotEmpty(t, TraceID(ctx))
	SetAttributes(ctx, Status(0))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "ipc.READ_SECTORS", ended[0].Name())

	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, "READ_SECTORS", attrs[AttrCommand])
	assert.Equal(t, "0x554d5303", attrs[AttrCode])
	assert.Equal(t, "1", attrs[AttrUnit])
	assert.Equal(t, "64", attrs[AttrSector])
	assert.Equal(t, "8", attrs[AttrCount])
	assert.Equal(t, "0", attrs[AttrStatus])
}

func TestRecordErrorMarksSpan(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartStorageSpan(context.Background(), "s3", "get", Bucket("discs"))
	RecordError(ctx, errors.New("no such key"))
	RecordError(ctx, nil)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "no such key", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes([]string{"cpu", "inuse_space"})
	require.NoError(t, err)
	assert.Len(t, types, 2)

	_, err = ParseProfileTypes([]string{"cpu", "heap"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}
