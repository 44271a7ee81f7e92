// Package specmodel implements the MappingSpec data model: typed source
// columns, derived variables, and constraints, plus the validators that
// enforce identifier format, reference resolution, and parameter size limits.
package specmodel

import (
	"fmt"
	"strings"
)

// SourceID is a stable identifier for a SourceColumn, prefixed "s:".
type SourceID string

// DerivedID is a stable identifier for a DerivedVariable, prefixed "d:".
type DerivedID string

// ConstraintID is a stable identifier for a Constraint, prefixed "c:".
type ConstraintID string

// ElementID is any typed identifier understood by the dependency graph:
// a SourceID, DerivedID, ConstraintID, or registry.TransformID rendered as
// a plain string. It exists so cross-package code (graph, impact, report)
// can carry typed IDs without importing every owning package.
type ElementID string

func (id SourceID) Validate() error     { return validatePrefixed(string(id), "s:") }
func (id DerivedID) Validate() error    { return validatePrefixed(string(id), "d:") }
func (id ConstraintID) Validate() error { return validatePrefixed(string(id), "c:") }

func validatePrefixed(id, prefix string) error {
	if !strings.HasPrefix(id, prefix) {
		return &SpecValidationError{Kind: InvalidIDFormat, ElementID: id, Msg: "missing " + prefix + " prefix"}
	}
	if len(id) == len(prefix) {
		return &SpecValidationError{Kind: InvalidIDFormat, ElementID: id, Msg: "empty name after prefix"}
	}
	return nil
}

// ErrorKind discriminates SpecValidationError failure modes.
type ErrorKind string

const (
	InvalidIDFormat     ErrorKind = "InvalidIdFormat"
	DuplicateID         ErrorKind = "DuplicateId"
	UnresolvedReference ErrorKind = "UnresolvedReference"
	ParamsTooLarge      ErrorKind = "ParamsTooLarge"
	ParamsNotCanonical  ErrorKind = "ParamsNotCanonical"
	AbsoluteImplRef     ErrorKind = "AbsoluteImplRef"
)

// SpecValidationError reports why a MappingSpec failed to validate.
type SpecValidationError struct {
	Kind      ErrorKind
	ElementID string
	Msg       string
}

func (e *SpecValidationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("spec validation error: %s (%s)", e.Kind, e.ElementID)
	}
	return fmt.Sprintf("spec validation error: %s (%s): %s", e.Kind, e.ElementID, e.Msg)
}

// Unwrap returns nil: SpecValidationError is always a leaf cause, never a
// wrapper around another error. The method exists so callers can use
// errors.As/errors.Is uniformly across every error type in this module.
func (e *SpecValidationError) Unwrap() error { return nil }
