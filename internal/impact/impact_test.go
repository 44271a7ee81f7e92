package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheshbon/internal/binding"
	"cheshbon/internal/diffengine"
	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

func mustDV(t *testing.T, id specmodel.DerivedID, ref *string, params map[string]any, inputs ...specmodel.ElementID) specmodel.DerivedVariable {
	t.Helper()
	dv, err := specmodel.NewDerivedVariable(id, string(id), "string", inputs, ref, params)
	require.NoError(t, err)
	return dv
}

// S3-style scenario: registry impl change, spec unchanged.
func TestClassify_TransformImplChangeSeedsReferencingDerived(t *testing.T) {
	ref := "t:ct_map"
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex", Type: "string"}},
		Derived: []specmodel.DerivedVariable{
			mustDV(t, "d:SEX_CDISC", &ref, nil, "s:SEX_RAW"),
		},
	}
	events := []diffengine.ChangeEvent{{Kind: diffengine.TransformImplChanged, ElementID: "t:ct_map"}}

	result := Classify(Input{Events: events, FromSpec: spec, ToSpec: spec})
	require.Contains(t, result.Impacted, specmodel.ElementID("d:SEX_CDISC"))
	assert.Equal(t, TransformImplChangedReason, result.PrimaryReason("d:SEX_CDISC"))
	assert.False(t, result.ValidationFailed)
}

func TestClassify_TransformRemovedSetsValidationFailed(t *testing.T) {
	ref := "t:ct_map"
	spec := specmodel.MappingSpec{
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:SEX_CDISC", &ref, nil)},
	}
	events := []diffengine.ChangeEvent{{Kind: diffengine.TransformRemoved, ElementID: "t:ct_map"}}

	result := Classify(Input{Events: events, FromSpec: spec, ToSpec: spec})
	assert.Equal(t, MissingTransformRefReason, result.PrimaryReason("d:SEX_CDISC"))
	assert.True(t, result.ValidationFailed)
}

func TestClassify_SourceRemovalSeedsDependentsWithMissingInput(t *testing.T) {
	fromSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:A", Name: "a", Type: "string"}},
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:B", nil, nil, "s:A")},
	}
	toSpec := specmodel.MappingSpec{
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:B", nil, nil)},
	}
	events := []diffengine.ChangeEvent{
		{Kind: diffengine.SourceRemoved, ElementID: "s:A"},
		{Kind: diffengine.DerivedInputsChanged, ElementID: "d:B"},
	}

	result := Classify(Input{Events: events, FromSpec: fromSpec, ToSpec: toSpec})
	reasons := result.Reasons["d:B"]
	assert.Contains(t, reasons, MissingInputReason)
	assert.Contains(t, reasons, DirectChangeReason)
	// d:B's own current inputs (now empty) all resolve, so the seed stays a
	// bare DIRECT_CHANGE; MISSING_INPUT arrives separately via the removed
	// source's dependents. MISSING_INPUT outranks DIRECT_CHANGE.
	assert.Equal(t, MissingInputReason, result.PrimaryReason("d:B"))
}

func TestClassify_DirectChangeWithDanglingInputUpgradesReason(t *testing.T) {
	// d:B's own input list still names a constraint absent from the target
	// spec (the caller never cleaned it up); combined with a direct change
	// event on d:B itself, this is the DIRECT_CHANGE + MISSING_INPUT
	// combination that reports as DIRECT_CHANGE_MISSING_INPUT rather than
	// two separate reasons.
	spec := specmodel.MappingSpec{
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:B", nil, nil, "c:GONE")},
	}
	events := []diffengine.ChangeEvent{{Kind: diffengine.DerivedTypeChanged, ElementID: "d:B"}}

	result := Classify(Input{Events: events, FromSpec: spec, ToSpec: spec})
	assert.Equal(t, DirectChangeMissingInputReason, result.PrimaryReason("d:B"))
	assert.NotContains(t, result.Reasons["d:B"], DirectChangeReason)
}

func TestClassify_AmbiguousBindingPropagatesAndFailsValidation(t *testing.T) {
	toSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex", Type: "string"}},
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:SEX_CDISC", nil, nil, "s:SEX_RAW")},
	}
	bindingResult := binding.Result{
		Status:           map[specmodel.SourceID]binding.Status{"s:SEX_RAW": binding.AmbiguousBinding},
		ValidationFailed: true,
	}

	result := Classify(Input{ToSpec: toSpec, FromSpec: toSpec, Binding: &bindingResult})
	assert.Equal(t, AmbiguousBindingReason, result.PrimaryReason("d:SEX_CDISC"))
	assert.True(t, result.ValidationFailed)
}

func TestClassify_UnaffectedNodesSortedAndExcluded(t *testing.T) {
	toSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{
			{ID: "s:A", Name: "a", Type: "string"},
			{ID: "s:B", Name: "b", Type: "string"},
		},
	}
	result := Classify(Input{ToSpec: toSpec, FromSpec: toSpec})
	assert.Empty(t, result.Impacted)
	assert.Equal(t, []specmodel.ElementID{"s:A", "s:B"}, result.Unaffected)
}

func TestClassify_TransitivePropagationThroughChain(t *testing.T) {
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:A", Name: "a", Type: "string"}},
		Derived: []specmodel.DerivedVariable{
			mustDV(t, "d:B", nil, nil, "s:A"),
			mustDV(t, "d:C", nil, nil, "d:B"),
		},
	}
	events := []diffengine.ChangeEvent{{Kind: diffengine.DerivedTypeChanged, ElementID: "d:B"}}

	result := Classify(Input{Events: events, FromSpec: spec, ToSpec: spec})
	assert.Equal(t, DirectChangeReason, result.PrimaryReason("d:B"))
	assert.Equal(t, TransitiveDependencyReason, result.PrimaryReason("d:C"))
	assert.Equal(t, []specmodel.ElementID{"d:B", "d:C"}, result.Paths["d:C"])
}

func TestClassify_RegistryToFieldAcceptsNilWithoutPanicking(t *testing.T) {
	spec := specmodel.MappingSpec{Sources: []specmodel.SourceColumn{{ID: "s:A", Name: "a", Type: "string"}}}
	var reg *registry.TransformRegistry
	result := Classify(Input{FromSpec: spec, ToSpec: spec, RegistryTo: reg})
	assert.Empty(t, result.Impacted)
}
