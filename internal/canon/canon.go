// Package canon implements byte-stable canonical JSON encoding and the
// SHA-256 digests derived from it.
//
// Every hash in cheshbon — params hashes, implementation fingerprints,
// report content hashes, input digests — is computed over the bytes this
// package produces. Two semantically equal values MUST produce
// bit-identical output; callers that need this guarantee must never hash
// encoding/json output directly.
package canon

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrorKind discriminates CanonicalizationError failure modes.
type ErrorKind string

const (
	FloatForbidden ErrorKind = "FloatForbidden"
	NonJSONType    ErrorKind = "NonJsonType"
	InvalidUTF8    ErrorKind = "InvalidUtf8"
)

// CanonicalizationError reports why a value could not be canonicalized.
//
// There is no recovery path: the caller must fix the input.
type CanonicalizationError struct {
	Kind ErrorKind
	Path string
}

func (e *CanonicalizationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("canonicalization error: %s", e.Kind)
	}
	return fmt.Sprintf("canonicalization error: %s at %s", e.Kind, e.Path)
}

// Unwrap returns nil: CanonicalizationError is always a leaf cause.
func (e *CanonicalizationError) Unwrap() error { return nil }

func errAt(kind ErrorKind, path string) error {
	return &CanonicalizationError{Kind: kind, Path: path}
}

// Set marks a slice as a semantic set: Marshal sorts its elements instead
// of preserving input order. Reordering a Set produces identical output.
type Set []any

// Marshal encodes v into its canonical byte representation.
//
// Accepted value shapes: nil, bool, int / int64, string, map[string]any,
// []any, Set. Anything else — including float64, float32, json.Number,
// time.Time, or any non-JSON type — is rejected.
func Marshal(v any) ([]byte, error) {
	var buf strings.Builder
	if err := encode(&buf, v, ""); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Digest computes the SHA-256 digest of canonical bytes produced by Marshal.
func Digest(canonicalBytes []byte) [32]byte {
	return sha256.Sum256(canonicalBytes)
}

// MarshalDigest is a convenience wrapper combining Marshal and Digest.
func MarshalDigest(v any) ([32]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	return Digest(b), nil
}

func encode(buf *strings.Builder, v any, path string) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case int:
		fmt.Fprintf(buf, "%d", val)
		return nil
	case int64:
		fmt.Fprintf(buf, "%d", val)
		return nil
	case string:
		return encodeString(buf, val, path)
	case float32, float64:
		return errAt(FloatForbidden, path)
	case Set:
		return encodeSet(buf, val, path)
	case []any:
		return encodeArray(buf, val, path)
	case map[string]any:
		return encodeObject(buf, val, path)
	default:
		return errAt(NonJSONType, path)
	}
}

func encodeString(buf *strings.Builder, s string, path string) error {
	if !utf8.ValidString(s) {
		return errAt(InvalidUTF8, path)
	}
	normalized := norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range normalized {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}

func encodeArray(buf *strings.Builder, arr []any, path string) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeSet(buf *strings.Builder, arr Set, path string) error {
	encoded := make([]string, len(arr))
	tags := make([]int, len(arr))
	for i, item := range arr {
		var elemBuf strings.Builder
		if err := encode(&elemBuf, item, fmt.Sprintf("%s{%d}", path, i)); err != nil {
			return err
		}
		encoded[i] = elemBuf.String()
		tags[i] = typeTag(item)
	}
	idx := make([]int, len(arr))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if tags[ia] != tags[ib] {
			return tags[ia] < tags[ib]
		}
		return encoded[ia] < encoded[ib]
	})
	buf.WriteByte('[')
	for i, j := range idx {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(encoded[j])
	}
	buf.WriteByte(']')
	return nil
}

// typeTag orders mixed-type set elements: null < bool < number < string < array < object.
func typeTag(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int64:
		return 2
	case string:
		return 3
	case Set, []any:
		return 4
	case map[string]any:
		return 5
	default:
		return 6
	}
}

func encodeObject(buf *strings.Builder, obj map[string]any, path string) error {
	// Re-map normalized keys back to original values; two distinct input
	// keys normalizing to the same NFC form is a caller bug, not ours to
	// silently resolve, so the key is emitted once and the value of the
	// original key that sorts last wins deterministically.
	original := make([]string, 0, len(obj))
	for k := range obj {
		original = append(original, k)
	}
	sort.Strings(original)
	byNormalized := make(map[string]any, len(obj))
	for _, k := range original {
		byNormalized[norm.NFC.String(k)] = obj[k]
	}
	keys := make([]string, 0, len(byNormalized))
	for k := range byNormalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k, path+"."+k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, byNormalized[k], path+"."+k); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
