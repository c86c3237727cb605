package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warn", LevelWarn, true},
		{"ERROR", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text", false) })

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn")
	Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error")
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "ERROR", "text", false)
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text", false) })

	SetLevel("nonsense")
	assert.Equal(t, LevelError, GetLevel())
}

func TestTextHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text", false) })

	Info("dispatch", Command("READ_SECTORS", 0x554D5303), Unit(1), Err(nil))

	out := buf.String()
	assert.Contains(t, out, "cmd.name=READ_SECTORS")
	assert.Contains(t, out, "cmd.code=0x554d5303")
	assert.Contains(t, out, "unit=1")
	assert.NotContains(t, out, "error=")
}

func TestTextHandlerQuotesSpaces(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	With(KeyPath, "/dev/usb 2").Info("open")
	assert.Contains(t, buf.String(), `path="/dev/usb 2"`)
}

func TestContextFieldsComeFirst(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text", false) })

	lc := NewLogContext("IOCTLV").WithCommand("GET_CAPACITY")
	lc.RequestID = "req-1"
	lc.Handle = 7
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "handled", KeyStatus, 0)

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "IOCTLV", rec[KeyKind])
	assert.Equal(t, "GET_CAPACITY", rec[KeyCommand])
	assert.Equal(t, "req-1", rec[KeyRequestID])
	assert.EqualValues(t, 7, rec[KeyHandle])
	assert.Less(t, strings.Index(line, KeyKind), strings.Index(line, KeyStatus))
}

func TestLogContextCloneIsIndependent(t *testing.T) {
	lc := NewLogContext("OPEN")
	c := lc.WithCommand("INIT")
	assert.Empty(t, lc.Command)
	assert.Equal(t, "INIT", c.Command)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Zero(t, nilCtx.DurationMs())
	assert.Nil(t, FromContext(context.Background()))
}

func TestDiscIDAttr(t *testing.T) {
	assert.Equal(t, "RMCE01", DiscID([]byte("RMCE01")).Value.String())
	assert.Equal(t, "0001ff", DiscID([]byte{0, 1, 0xff}).Value.String())
}
