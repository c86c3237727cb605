package disc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordOffset(t *testing.T) {
	tests := []struct {
		name    string
		off     uint64
		want    uint32
		wantErr bool
	}{
		{"zero", 0, 0, false},
		{"aligned", 0x8000, 0x2000, false},
		{"unaligned", 6, 0, true},
		{"last word", uint64(^uint32(0)) << 2, ^uint32(0), false},
		{"past range", (uint64(^uint32(0)) + 1) << 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wordOffset(tt.off)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscSizeCoversDualLayer(t *testing.T) {
	assert.Equal(t, uint64(143432*2)*0x8000, discSize)
}
