// Package registry implements the TransformRegistry data model: transform
// entries, implementation fingerprints, and their append-only history.
package registry

import (
	"fmt"
	"path"
	"strings"
)

// TransformID is a stable, case-sensitive identifier for a transform,
// prefixed "t:".
type TransformID string

func (id TransformID) Validate() error {
	if !strings.HasPrefix(string(id), "t:") {
		return &RegistryValidationError{Kind: InvalidIDFormat, ElementID: string(id), Msg: "missing t: prefix"}
	}
	if len(id) == len("t:") {
		return &RegistryValidationError{Kind: InvalidIDFormat, ElementID: string(id), Msg: "empty name after prefix"}
	}
	return nil
}

// ErrorKind discriminates RegistryValidationError failure modes.
type ErrorKind string

const (
	InvalidIDFormat      ErrorKind = "InvalidIdFormat"
	DuplicateTransformID ErrorKind = "DuplicateTransformId"
	MissingTransformRef  ErrorKind = "MissingTransformRef"
	AbsoluteImplRef      ErrorKind = "AbsoluteImplRef"
)

// RegistryValidationError reports why a TransformRegistry failed to
// validate.
type RegistryValidationError struct {
	Kind      ErrorKind
	ElementID string
	Msg       string
}

func (e *RegistryValidationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("registry validation error: %s (%s)", e.Kind, e.ElementID)
	}
	return fmt.Sprintf("registry validation error: %s (%s): %s", e.Kind, e.ElementID, e.Msg)
}

// Unwrap returns nil: RegistryValidationError is always a leaf cause.
func (e *RegistryValidationError) Unwrap() error { return nil }

// ImplFingerprint identifies a concrete transform implementation. Ref is
// always a relative path; digest stability implies semantic equivalence of
// the implementation it names.
type ImplFingerprint struct {
	Algo   string `json:"algo"` // "sha256"
	Source string `json:"source"`
	Ref    string `json:"ref"`
	Digest string `json:"digest"`
}

func (f ImplFingerprint) Validate(transformID string) error {
	if path.IsAbs(f.Ref) || strings.HasPrefix(f.Ref, "/") {
		return &RegistryValidationError{Kind: AbsoluteImplRef, ElementID: transformID, Msg: "impl_fingerprint.ref must be relative: " + f.Ref}
	}
	return nil
}

// HistoryEntry is one immutable snapshot in a TransformEntry's append-only
// history. Timestamp is an opaque caller-supplied string; the kernel never
// reads the clock.
type HistoryEntry struct {
	Timestamp        string          `json:"timestamp"`
	ImplFingerprint  ImplFingerprint `json:"impl_fingerprint"`
	ParamsSchemaHash string          `json:"params_schema_hash"`
	ChangeReason     *string         `json:"change_reason"`
}

// TransformEntry describes one transform and its version history.
type TransformEntry struct {
	ID               TransformID    `json:"id"`
	Version          string         `json:"version"`
	Kind             string         `json:"kind"`
	Signature        string         `json:"signature"`
	ParamsSchemaHash string         `json:"params_schema_hash"`
	ImplFingerprint  ImplFingerprint `json:"impl_fingerprint"`
	History          []HistoryEntry `json:"history"`
}

// AppendHistory returns a new TransformEntry whose History has entry
// appended, leaving the receiver and its backing array untouched. Grounded
// on the teacher's persistent-update convention: rebuild, never mutate in
// place.
func (e TransformEntry) AppendHistory(entry HistoryEntry) TransformEntry {
	next := make([]HistoryEntry, len(e.History)+1)
	copy(next, e.History)
	next[len(e.History)] = entry
	e.History = next
	return e
}

// TransformRegistry is the full set of transform entries for one spec
// version.
type TransformRegistry struct {
	RegistryVersion string         `json:"registry_version"`
	Transforms      []TransformEntry `json:"transforms"`
}

func (r TransformRegistry) index() map[TransformID]TransformEntry {
	m := make(map[TransformID]TransformEntry, len(r.Transforms))
	for _, t := range r.Transforms {
		m[t.ID] = t
	}
	return m
}

// Lookup returns the entry for id, if present.
func (r TransformRegistry) Lookup(id TransformID) (TransformEntry, bool) {
	for _, t := range r.Transforms {
		if t.ID == id {
			return t, true
		}
	}
	return TransformEntry{}, false
}

// Validate enforces global ID uniqueness and relative impl_fingerprint.ref.
func (r TransformRegistry) Validate() []error {
	var errs []error
	seen := map[TransformID]bool{}
	for _, t := range r.Transforms {
		if err := t.ID.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[t.ID] {
			errs = append(errs, &RegistryValidationError{Kind: DuplicateTransformID, ElementID: string(t.ID)})
		}
		seen[t.ID] = true
		if err := t.ImplFingerprint.Validate(string(t.ID)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
