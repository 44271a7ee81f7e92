package runid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidUUID(t *testing.T) {
	id, err := Parse("c9bf9e57-1685-4c89-bafb-ff5af830be8a")
	require.NoError(t, err)
	assert.Equal(t, "c9bf9e57-1685-4c89-bafb-ff5af830be8a", id.String())
	assert.False(t, id.IsZero())
}

func TestParse_InvalidString(t *testing.T) {
	_, err := Parse("not-a-uuid")
	require.Error(t, err)
}

func TestZeroValueIsZero(t *testing.T) {
	var id ID
	assert.True(t, id.IsZero())
}
