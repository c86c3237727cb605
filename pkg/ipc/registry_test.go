package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLongestPrefix(t *testing.T) {
	r := NewRegistry()
	usb := NewQueue(1)
	usb2 := NewQueue(1)

	require.NoError(t, r.Register("/dev/usb", usb))
	require.NoError(t, r.Register("/dev/usb2", usb2))

	tests := []struct {
		path string
		want *Queue
	}{
		{"/dev/usb2", usb2},
		{"/dev/usb2/extra", usb2},
		{"/dev/usb1", usb},
		{"/dev/usb", usb},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := r.Lookup(tt.path)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}

	_, err := r.Lookup("/dev/sdio")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistryRejectsDuplicatesAndBadNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("/dev/usb2", NewQueue(1)))
	assert.Error(t, r.Register("/dev/usb2", NewQueue(1)))
	assert.Error(t, r.Register("", NewQueue(1)))
	assert.Error(t, r.Register("dev/usb2", NewQueue(1)))

	r.Unregister("/dev/usb2")
	assert.Empty(t, r.Names())
}
