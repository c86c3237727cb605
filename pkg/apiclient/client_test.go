package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/umsd/pkg/api"
	"github.com/marmos91/umsd/pkg/api/handlers"
)

type source struct {
	inserted bool
}

func (s *source) Inserted(context.Context) bool { return s.inserted }

func (s *source) Status(context.Context) handlers.Status {
	return handlers.Status{
		Device:       "/dev/usb123",
		SelectedUnit: 1,
		Queue:        handlers.QueueStatus{Depth: 1, Capacity: 32},
		Units: []handlers.UnitStatus{
			{Index: 0, Backend: "memory", SectorSize: 512, SectorCount: 128},
			{Index: 1, Backend: "file", SectorSize: 512, SectorCount: 256, ReadOnly: true},
		},
	}
}

func newTestClient(t *testing.T, src *source) *Client {
	t.Helper()
	srv := httptest.NewServer(api.NewRouter(src, nil))
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestNew(t *testing.T) {
	c := New("http://localhost:8484/")
	assert.Equal(t, "http://localhost:8484", c.baseURL)
}

func TestHealth(t *testing.T) {
	require.NoError(t, newTestClient(t, &source{}).Health(t.Context()))
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		inserted bool
		reason   string
	}{
		{"inserted", true, ""},
		{"no media", false, "no media on selected unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready, reason, err := newTestClient(t, &source{inserted: tt.inserted}).Ready(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, ready)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestStatus(t *testing.T) {
	st, err := newTestClient(t, &source{}).Status(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "/dev/usb123", st.Device)
	assert.Equal(t, uint32(1), st.SelectedUnit)
	require.Len(t, st.Units, 2)
	assert.True(t, st.Units[1].ReadOnly)
	assert.Equal(t, 32, st.Queue.Capacity)
}

func TestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			handlers.WriteError(w, http.StatusInternalServerError, "boom")
		default:
			http.Error(w, "plain failure", http.StatusBadGateway)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	_, err := c.Status(t.Context())
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, handlers.StatusError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)

	err = c.Health(t.Context())
	apiErr, ok = AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "plain failure", apiErr.Message)
	assert.False(t, apiErr.IsNotFound())
}
