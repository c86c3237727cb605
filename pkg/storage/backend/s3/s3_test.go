package s3

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestChunkKey(t *testing.T) {
	s := &chunkStore{keyPrefix: "units/1/"}
	assert.Equal(t, "units/1/chunk-000000000000", s.key(0))
	assert.Equal(t, "units/1/chunk-000000004096", s.key(4096))
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"not found", &types.NotFound{}, true},
		{"wrapped", errors.Join(errors.New("get"), &types.NoSuchKey{}), true},
		{"http 404", errors.New("operation error S3: GetObject, https response error StatusCode: 404"), true},
		{"invalid range", errors.New("api error InvalidRange: The requested range is not satisfiable"), true},
		{"access denied", errors.New("api error AccessDenied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(nil, Config{SectorCount: 8}, nil)
	assert.Error(t, err)
}
