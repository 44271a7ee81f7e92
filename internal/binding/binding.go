// Package binding resolves which source columns in a MappingSpec are
// actually satisfied by a concrete raw schema and binding table.
package binding

import (
	"sort"

	"cheshbon/internal/specmodel"
)

// Status is a source column's resolution state against a raw schema.
type Status string

const (
	Bound            Status = "BOUND"
	MissingBinding   Status = "MISSING_BINDING"
	AmbiguousBinding Status = "AMBIGUOUS_BINDING"
)

// precedence orders statuses for combination: AMBIGUOUS_BINDING beats
// MISSING_BINDING beats BOUND.
var precedence = map[Status]int{
	AmbiguousBinding: 2,
	MissingBinding:   1,
	Bound:            0,
}

// RawColumn is one column of an upstream raw schema.
type RawColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RawSchema is the physical schema a spec's source columns are bound
// against.
type RawSchema struct {
	Table   string      `json:"table"`
	Columns []RawColumn `json:"columns"`
}

func (s RawSchema) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Bindings maps raw column names to source IDs for one table.
type Bindings struct {
	Table    string            `json:"table"`
	Bindings map[string]string `json:"bindings"` // raw_name -> "s:..."
}

// ErrorKind discriminates BindingError failure modes.
type ErrorKind string

const (
	BindingInvalid ErrorKind = "BINDING_INVALID"
)

// BindingError reports a binding entry whose raw column does not appear in
// the schema.
type BindingError struct {
	Kind     ErrorKind
	SourceID string
	RawName  string
}

func (e *BindingError) Error() string {
	return string(e.Kind) + ": " + e.SourceID + " -> " + e.RawName
}

// Unwrap returns nil: BindingError is always a leaf cause.
func (e *BindingError) Unwrap() error { return nil }

// Result is the outcome of evaluating bindings against a spec's required
// source columns.
type Result struct {
	Status           map[specmodel.SourceID]Status
	Invalid          []BindingError
	ValidationFailed bool
}

// Evaluate computes binding status for every source column in spec.
// Ambiguous bindings are terminal: their presence always sets
// ValidationFailed.
func Evaluate(spec specmodel.MappingSpec, schema RawSchema, bindings Bindings) Result {
	// rawToSources: which source IDs each raw column name maps to, and the
	// reverse, sourceToRaw: which raw column names map to each source ID
	// (more than one means ambiguous).
	sourceToRaw := map[specmodel.SourceID][]string{}
	rawNames := make([]string, 0, len(bindings.Bindings))
	for raw := range bindings.Bindings {
		rawNames = append(rawNames, raw)
	}
	sort.Strings(rawNames)

	var invalid []BindingError
	for _, raw := range rawNames {
		sourceID := specmodel.SourceID(bindings.Bindings[raw])
		if !schema.hasColumn(raw) {
			invalid = append(invalid, BindingError{Kind: BindingInvalid, SourceID: string(sourceID), RawName: raw})
			continue
		}
		sourceToRaw[sourceID] = append(sourceToRaw[sourceID], raw)
	}

	status := make(map[specmodel.SourceID]Status, len(spec.Sources))
	validationFailed := false
	for _, sc := range spec.Sources {
		raws := sourceToRaw[sc.ID]
		switch {
		case len(raws) == 0:
			status[sc.ID] = MissingBinding
		case len(raws) == 1:
			status[sc.ID] = Bound
		default:
			status[sc.ID] = AmbiguousBinding
			validationFailed = true
		}
	}

	return Result{Status: status, Invalid: invalid, ValidationFailed: validationFailed}
}
