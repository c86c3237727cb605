package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmWithForceSkipsPrompt(t *testing.T) {
	ok, err := ConfirmWithForce("write sector 0?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}
