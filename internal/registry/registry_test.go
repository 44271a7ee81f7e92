package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformEntry_AppendHistory_DoesNotMutateReceiver(t *testing.T) {
	entry := TransformEntry{
		ID:      "t:ct_map",
		History: []HistoryEntry{{Timestamp: "2026-01-01T00:00:00Z", ParamsSchemaHash: "h0"}},
	}
	original := entry.History

	next := entry.AppendHistory(HistoryEntry{Timestamp: "2026-02-01T00:00:00Z", ParamsSchemaHash: "h1"})

	assert.Len(t, entry.History, 1, "receiver must be untouched")
	assert.Len(t, next.History, 2)
	assert.Equal(t, original, entry.History)
	assert.NotSame(t, &original[0], &next.History[0])
}

func TestTransformRegistry_Validate_DuplicateID(t *testing.T) {
	reg := TransformRegistry{Transforms: []TransformEntry{
		{ID: "t:ct_map"},
		{ID: "t:ct_map"},
	}}
	errs := reg.Validate()
	require.Len(t, errs, 1)
	var rve *RegistryValidationError
	require.ErrorAs(t, errs[0], &rve)
	assert.Equal(t, DuplicateTransformID, rve.Kind)
}

func TestTransformRegistry_Validate_AbsoluteRef(t *testing.T) {
	reg := TransformRegistry{Transforms: []TransformEntry{
		{ID: "t:ct_map", ImplFingerprint: ImplFingerprint{Algo: "sha256", Ref: "/etc/passwd", Digest: "abc"}},
	}}
	errs := reg.Validate()
	require.Len(t, errs, 1)
	var rve *RegistryValidationError
	require.ErrorAs(t, errs[0], &rve)
	assert.Equal(t, AbsoluteImplRef, rve.Kind)
}

func TestTransformRegistry_Lookup(t *testing.T) {
	reg := TransformRegistry{Transforms: []TransformEntry{{ID: "t:ct_map", Version: "v2"}}}
	entry, ok := reg.Lookup("t:ct_map")
	require.True(t, ok)
	assert.Equal(t, "v2", entry.Version)

	_, ok = reg.Lookup("t:missing")
	assert.False(t, ok)
}
