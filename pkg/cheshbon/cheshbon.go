// Package cheshbon is the sole public entry point for the impact-analysis
// engine: Diff, Validate, and VerifyReport. Every exported operation is
// single-threaded, side-effect-free, and performs no I/O of its own — all
// artifacts arrive already loaded in memory.
package cheshbon

import (
	"cheshbon/internal/binding"
	"cheshbon/internal/diffengine"
	"cheshbon/internal/impact"
	"cheshbon/internal/registry"
	"cheshbon/internal/report"
	"cheshbon/internal/specmodel"
	"cheshbon/internal/verify"
)

// DetailLevel re-exports report.DetailLevel so callers never import
// internal/report directly.
type DetailLevel = report.DetailLevel

const (
	Core       = report.Core
	Full       = report.Full
	AllDetails = report.AllDetails
)

// DiffInput bundles every artifact one diff/validate invocation needs.
type DiffInput struct {
	FromSpec     specmodel.MappingSpec
	ToSpec       specmodel.MappingSpec
	RegistryFrom *registry.TransformRegistry
	RegistryTo   *registry.TransformRegistry
	RawSchema    *binding.RawSchema
	Bindings     *binding.Bindings
	DetailLevel  DetailLevel
}

// DiffResult is a diff invocation's full output: the report plus the raw
// impact classification it was built from.
type DiffResult struct {
	Report report.Report
	Impact impact.Result
}

func (in DiffInput) evaluateBindings() *binding.Result {
	if in.Bindings == nil || in.RawSchema == nil {
		return nil
	}
	result := binding.Evaluate(in.ToSpec, *in.RawSchema, *in.Bindings)
	return &result
}

// Diff computes the structural diff between FromSpec and ToSpec, classifies
// its downstream impact, and builds a report at the requested detail
// level. Validate classifies through the same impact.Classify call so the
// two commands never drift apart.
func Diff(in DiffInput) (DiffResult, error) {
	events := diffengine.Diff(in.FromSpec, in.ToSpec, in.RegistryFrom, in.RegistryTo)

	result := impact.Classify(impact.Input{
		Events:     events,
		FromSpec:   in.FromSpec,
		ToSpec:     in.ToSpec,
		RegistryTo: in.RegistryTo,
		Binding:    in.evaluateBindings(),
	})

	mode := in.DetailLevel
	if mode == "" {
		mode = report.Core
	}

	rep, err := report.Build(result, events, report.Inputs{
		FromSpec:     in.FromSpec,
		ToSpec:       in.ToSpec,
		RegistryFrom: in.RegistryFrom,
		RegistryTo:   in.RegistryTo,
		Bindings:     in.Bindings,
		RawSchema:    in.RawSchema,
	}, mode)
	if err != nil {
		return DiffResult{}, err
	}

	return DiffResult{Report: rep, Impact: result}, nil
}

// ValidateInput is the artifact set Validate needs: a single spec (and its
// supporting registry/schema/bindings) checked in isolation, with no
// "from" counterpart.
type ValidateInput struct {
	Spec      specmodel.MappingSpec
	Registry  *registry.TransformRegistry
	RawSchema *binding.RawSchema
	Bindings  *binding.Bindings
}

// Severity discriminates a ValidationIssue as fatal or advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one problem found while validating a spec in
// isolation.
type ValidationIssue struct {
	Severity  Severity `json:"severity"`
	ElementID string   `json:"element_id,omitempty"`
	Message   string   `json:"message"`
}

// ValidationResult is Validate's full output.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// Validate checks a single spec (plus its registry/binding artifacts) for
// internal consistency: ID format, duplicate IDs, unresolved references,
// registry integrity, and binding status. Dependency cycles are not
// reported. It reuses impact.Classify
// against an empty "from" spec so a missing binding or unresolved transform
// ref is reported through the exact same precedence table Diff uses,
// instead of a parallel rule set that could drift from it.
func Validate(in ValidateInput) (ValidationResult, error) {
	var result ValidationResult

	for _, err := range in.Spec.Validate() {
		result.Errors = append(result.Errors, issueFromError(err))
	}
	for _, err := range in.Spec.ParamsWarnings() {
		result.Warnings = append(result.Warnings, issueFromError(err))
	}
	if in.Registry != nil {
		for _, err := range in.Registry.Validate() {
			result.Errors = append(result.Errors, issueFromError(err))
		}
	}

	empty := specmodel.MappingSpec{SchemaVersion: in.Spec.SchemaVersion}
	events := diffengine.Diff(empty, in.Spec, nil, in.Registry)

	var bindingResult *binding.Result
	if in.Bindings != nil && in.RawSchema != nil {
		r := binding.Evaluate(in.Spec, *in.RawSchema, *in.Bindings)
		bindingResult = &r
	}

	classified := impact.Classify(impact.Input{
		Events:     events,
		FromSpec:   empty,
		ToSpec:     in.Spec,
		RegistryTo: in.Registry,
		Binding:    bindingResult,
	})

	for _, id := range classified.Impacted {
		for _, reason := range classified.Reasons[id] {
			switch reason {
			// Errors here must stay exactly the reasons that set
			// validation_failed in impact.Classify, so validate and diff
			// never drift on what counts as a hard failure.
			case impact.AmbiguousBindingReason, impact.MissingTransformRefReason:
				result.Errors = append(result.Errors, ValidationIssue{
					Severity:  SeverityError,
					ElementID: string(id),
					Message:   string(reason),
				})
			case impact.MissingBindingReason:
				result.Warnings = append(result.Warnings, ValidationIssue{
					Severity:  SeverityWarning,
					ElementID: string(id),
					Message:   string(reason),
				})
			}
		}
	}

	return result, nil
}

func issueFromError(err error) ValidationIssue {
	issue := ValidationIssue{Severity: SeverityError, Message: err.Error()}
	switch e := err.(type) {
	case *specmodel.SpecValidationError:
		issue.ElementID = e.ElementID
	case *registry.RegistryValidationError:
		issue.ElementID = e.ElementID
	}
	return issue
}

// VerifyReport re-derives rep from inputs and compares it against the
// stored fields to detect tampering or stale inputs.
func VerifyReport(rep report.Report, inputs verify.Inputs) verify.Result {
	return verify.Verify(rep, inputs)
}
