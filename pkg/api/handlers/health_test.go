package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	inserted bool
	status   Status
}

func (f *fakeSource) Inserted(context.Context) bool { return f.inserted }

func (f *fakeSource) Status(context.Context) Status { return f.status }

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).Liveness(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, map[string]any{"service": "umsd"}, resp.Data)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		code   int
		status string
		errMsg string
	}{
		{"no source", nil, http.StatusServiceUnavailable, StatusUnhealthy, "service not initialized"},
		{"no media", &fakeSource{}, http.StatusServiceUnavailable, StatusUnhealthy, "no media on selected unit"},
		{"inserted", &fakeSource{inserted: true}, http.StatusOK, StatusHealthy, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.source).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decode(t, w)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.errMsg, resp.Error)
		})
	}
}

func TestStatus(t *testing.T) {
	src := &fakeSource{status: Status{
		Device:       "/dev/usb123",
		SelectedUnit: 1,
		Slots:        []SlotStatus{{Class: "device-change", Result: -1, Pending: true}},
		Queue:        QueueStatus{Depth: 2, Capacity: 32},
		Units:        []UnitStatus{{Index: 0, Backend: "memory", SectorSize: 512, SectorCount: 64}},
		Heap:         &HeapStatus{Size: 4096, Free: 4096, LargestFree: 4096},
	}}

	w := httptest.NewRecorder()
	NewStatusHandler(src).Get(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   Status `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, src.status, resp.Data)
}

func TestStatusWithoutSource(t *testing.T) {
	w := httptest.NewRecorder()
	NewStatusHandler(nil).Get(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode(t, w)
	assert.Equal(t, StatusError, resp.Status)
}
