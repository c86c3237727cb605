package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"0", 0},
		{"32768", 32768},
		{"32Ki", 32 * KiB},
		{"32 KiB", 32 * KiB},
		{"1.5GiB", GiB + GiB/2},
		{"500MB", 500 * MB},
		{"4k", 4 * KB},
		{"8B", 8},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "Ki", "12XB", "1.2.3Mi", "20000000Ti"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.Error(t, err)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("64Mi")))
	assert.Equal(t, 64*MiB, b)

	out, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "64Mi", string(out))

	odd, _ := ByteSize(1000).MarshalText()
	assert.Equal(t, "1000", string(odd))
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "32.00KiB", (32 * KiB).String())
	assert.Equal(t, "1.50GiB", (GiB + GiB/2).String())
}

func TestSectors(t *testing.T) {
	assert.Equal(t, uint64(2048), MiB.Sectors(512))
	assert.Equal(t, uint64(0), MiB.Sectors(0))
}
