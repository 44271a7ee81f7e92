package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWorkDir_RequiresAbsolute(t *testing.T) {
	_, err := resolveWorkDir("relative/path")
	require.Error(t, err)
	var invErr *InvocationError
	assert.ErrorAs(t, err, &invErr)
}

func TestResolveWorkDir_RejectsEmpty(t *testing.T) {
	_, err := resolveWorkDir("")
	assert.Error(t, err)
}

func TestResolveUnderWorkDir_RelativeJoinsWorkDir(t *testing.T) {
	resolved, err := resolveUnderWorkDir("/work", "specs/from.json")
	require.NoError(t, err)
	assert.Equal(t, "/work/specs/from.json", resolved)
}

func TestResolveUnderWorkDir_AbsoluteUnchanged(t *testing.T) {
	resolved, err := resolveUnderWorkDir("/work", "/elsewhere/from.json")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/from.json", resolved)
}

func TestResolveUnderWorkDir_RejectsEmptyPath(t *testing.T) {
	_, err := resolveUnderWorkDir("/work", "")
	assert.Error(t, err)
}

func TestResolveOptionalUnderWorkDir_EmptyStaysEmpty(t *testing.T) {
	resolved, err := resolveOptionalUnderWorkDir("/work", "")
	require.NoError(t, err)
	assert.Equal(t, "", resolved)
}
