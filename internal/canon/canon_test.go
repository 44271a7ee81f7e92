package canon

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_KeysSortedRecursively(t *testing.T) {
	a, err := Marshal(map[string]any{"b": 1, "a": map[string]any{"z": "1", "y": "2"}})
	require.NoError(t, err)
	b, err := Marshal(map[string]any{"a": map[string]any{"y": "2", "z": "1"}, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":{"y":"2","z":"1"},"b":1}`, string(a))
}

func TestMarshal_NoWhitespace(t *testing.T) {
	b, err := Marshal(map[string]any{"a": []any{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x","y"]}`, string(b))
}

func TestMarshal_FloatsRejected(t *testing.T) {
	_, err := Marshal(1.5)
	require.Error(t, err)
	var ce *CanonicalizationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, FloatForbidden, ce.Kind)
}

func TestMarshal_NonJSONTypeRejected(t *testing.T) {
	_, err := Marshal(struct{ X int }{X: 1})
	require.Error(t, err)
	var ce *CanonicalizationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, NonJSONType, ce.Kind)
}

func TestMarshal_NFCNormalization(t *testing.T) {
	// "é" as a single codepoint (NFC) vs "e" + combining acute accent (NFD).
	nfc := "é"
	nfd := "é"
	a, err := Marshal(nfc)
	require.NoError(t, err)
	b, err := Marshal(nfd)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshal_SetArraySortsByTypeTagThenForm(t *testing.T) {
	s := Set{"banana", 2, nil, true, "apple", 1}
	b, err := Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `[null,true,1,2,"apple","banana"]`, string(b))
}

func TestMarshal_PlainArrayPreservesOrder(t *testing.T) {
	b, err := Marshal([]any{"z", "a", "m"})
	require.NoError(t, err)
	assert.Equal(t, `["z","a","m"]`, string(b))
}

func TestMarshal_SetOrderInsensitive(t *testing.T) {
	a, err := Marshal(Set{"d:B", "d:A", "s:X"})
	require.NoError(t, err)
	b, err := Marshal(Set{"s:X", "d:A", "d:B"})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestDigest_Stable(t *testing.T) {
	b, err := Marshal(map[string]any{"x": 1})
	require.NoError(t, err)
	d1 := Digest(b)
	d2 := Digest(b)
	assert.Equal(t, d1, d2)
	assert.Len(t, hex.EncodeToString(d1[:]), 64)
}

func TestMarshal_NullVsMissingKeyDistinct(t *testing.T) {
	withNull, err := Marshal(map[string]any{"a": nil})
	require.NoError(t, err)
	withoutKey, err := Marshal(map[string]any{})
	require.NoError(t, err)
	assert.NotEqual(t, string(withNull), string(withoutKey))
}
