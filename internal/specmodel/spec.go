package specmodel

import (
	"sort"
	"strings"

	"cheshbon/internal/canon"
)

const (
	paramsSoftLimitBytes = 10 * 1024
	paramsHardLimitBytes = 50 * 1024
)

// SourceColumn is a leaf input to the mapping: a column supplied by some
// upstream raw schema.
type SourceColumn struct {
	ID   SourceID
	Name string
	Type string
}

// DerivedVariable is computed from other sources, deriveds, or constraints
// via an optional named transform.
//
// ParamsHash is computed once at construction from the canonical encoding of
// Params and is never part of the persisted spec; re-deriving it from Params
// is the only source of truth.
type DerivedVariable struct {
	ID           DerivedID
	Name         string
	Type         string
	Inputs       []ElementID
	TransformRef *string // "t:..." or nil
	Params       map[string]any
	ParamsHash   [32]byte
}

// NewDerivedVariable constructs a DerivedVariable and computes ParamsHash
// from Params via canon.Digest(canon.Marshal(params)).
func NewDerivedVariable(id DerivedID, name, typ string, inputs []ElementID, transformRef *string, params map[string]any) (DerivedVariable, error) {
	if params == nil {
		params = map[string]any{}
	}
	encoded, err := canon.Marshal(params)
	if err != nil {
		return DerivedVariable{}, &SpecValidationError{Kind: ParamsNotCanonical, ElementID: string(id), Msg: err.Error()}
	}
	if len(encoded) > paramsHardLimitBytes {
		return DerivedVariable{}, &SpecValidationError{Kind: ParamsTooLarge, ElementID: string(id), Msg: "params exceed 50KB hard limit"}
	}
	return DerivedVariable{
		ID:           id,
		Name:         name,
		Type:         typ,
		Inputs:       sortedInputs(inputs),
		TransformRef: transformRef,
		Params:       params,
		ParamsHash:   canon.Digest(encoded),
	}, nil
}

// ParamsSizeWarning reports whether Params exceeds the 10KB soft limit,
// without being large enough to hard-fail construction.
func (d DerivedVariable) ParamsSizeWarning() bool {
	encoded, err := canon.Marshal(d.Params)
	if err != nil {
		return false
	}
	return len(encoded) > paramsSoftLimitBytes
}

// Constraint expresses a validation rule over other elements; its
// expression is an opaque string the kernel never interprets.
type Constraint struct {
	ID         ConstraintID
	Name       string
	Inputs     []ElementID
	Expression string
}

// MappingSpec is the full versioned specification: sources, deriveds,
// constraints, plus a schema-version tag.
type MappingSpec struct {
	SchemaVersion string
	Sources       []SourceColumn
	Derived       []DerivedVariable
	Constraints   []Constraint
}

func sortedInputs(inputs []ElementID) []ElementID {
	out := make([]ElementID, len(inputs))
	copy(out, inputs)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// sourceIndex, derivedIndex, constraintIndex build id->element lookups; used
// by Validate to resolve references deterministically.
func (s MappingSpec) sourceIndex() map[SourceID]SourceColumn {
	m := make(map[SourceID]SourceColumn, len(s.Sources))
	for _, sc := range s.Sources {
		m[sc.ID] = sc
	}
	return m
}

func (s MappingSpec) derivedIndex() map[DerivedID]DerivedVariable {
	m := make(map[DerivedID]DerivedVariable, len(s.Derived))
	for _, dv := range s.Derived {
		m[dv.ID] = dv
	}
	return m
}

func (s MappingSpec) constraintIndex() map[ConstraintID]Constraint {
	m := make(map[ConstraintID]Constraint, len(s.Constraints))
	for _, c := range s.Constraints {
		m[c.ID] = c
	}
	return m
}

// Validate enforces §3's MappingSpec invariants: ID format, uniqueness
// within kind, and reference resolution. Cycle detection is the graph
// package's responsibility, not this validator's.
func (s MappingSpec) Validate() []error {
	var errs []error

	seenSources := map[SourceID]bool{}
	for _, sc := range s.Sources {
		if err := sc.ID.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seenSources[sc.ID] {
			errs = append(errs, &SpecValidationError{Kind: DuplicateID, ElementID: string(sc.ID)})
		}
		seenSources[sc.ID] = true
	}

	seenDerived := map[DerivedID]bool{}
	for _, dv := range s.Derived {
		if err := dv.ID.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seenDerived[dv.ID] {
			errs = append(errs, &SpecValidationError{Kind: DuplicateID, ElementID: string(dv.ID)})
		}
		seenDerived[dv.ID] = true
	}

	seenConstraints := map[ConstraintID]bool{}
	for _, c := range s.Constraints {
		if err := c.ID.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seenConstraints[c.ID] {
			errs = append(errs, &SpecValidationError{Kind: DuplicateID, ElementID: string(c.ID)})
		}
		seenConstraints[c.ID] = true
	}

	resolves := func(id ElementID) bool {
		switch {
		case strings.HasPrefix(string(id), "s:"):
			return seenSources[SourceID(id)]
		case strings.HasPrefix(string(id), "d:"):
			return seenDerived[DerivedID(id)]
		case strings.HasPrefix(string(id), "c:"):
			return seenConstraints[ConstraintID(id)]
		default:
			return false
		}
	}

	for _, dv := range s.Derived {
		for _, in := range dv.Inputs {
			if !resolves(in) {
				errs = append(errs, &SpecValidationError{Kind: UnresolvedReference, ElementID: string(dv.ID), Msg: "unresolved input " + string(in)})
			}
		}
	}
	for _, c := range s.Constraints {
		for _, in := range c.Inputs {
			if !resolves(in) {
				errs = append(errs, &SpecValidationError{Kind: UnresolvedReference, ElementID: string(c.ID), Msg: "unresolved input " + string(in)})
			}
		}
	}

	return errs
}

// ParamsWarnings returns a warning-level SpecValidationError for every
// derived variable whose params exceed the 10KB soft limit. These are
// surfaced by `validate` as warnings, never as errors.
func (s MappingSpec) ParamsWarnings() []error {
	var warnings []error
	for _, dv := range s.Derived {
		if dv.ParamsSizeWarning() {
			warnings = append(warnings, &SpecValidationError{Kind: ParamsTooLarge, ElementID: string(dv.ID), Msg: "params exceed 10KB soft limit"})
		}
	}
	return warnings
}
