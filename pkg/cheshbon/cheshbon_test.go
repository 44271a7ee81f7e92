package cheshbon

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheshbon/internal/binding"
	"cheshbon/internal/impact"
	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

func mustDV(t *testing.T, id specmodel.DerivedID, name string, transformRef *string, params map[string]any, inputs ...specmodel.ElementID) specmodel.DerivedVariable {
	t.Helper()
	dv, err := specmodel.NewDerivedVariable(id, name, "string", inputs, transformRef, params)
	require.NoError(t, err)
	return dv
}

func ptr(s string) *string { return &s }

// S1 — rename only, no impact.
func TestDiff_S1_RenameOnlyNoImpact(t *testing.T) {
	fromSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:USUBJID_RAW", Name: "usubjid_raw", Type: "string"}},
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:USUBJID", "USUBJID", nil, nil, "s:USUBJID_RAW")},
	}
	toSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:USUBJID_RAW", Name: "usubjid_raw", Type: "string"}},
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:USUBJID", "SUBJECT_ID", nil, nil, "s:USUBJID_RAW")},
	}

	result, err := Diff(DiffInput{FromSpec: fromSpec, ToSpec: toSpec})
	require.NoError(t, err)
	assert.Empty(t, result.Impact.Impacted)
}

// S2 — params change propagates direct + transitive.
func TestDiff_S2_ParamsChangeDirectAndTransitive(t *testing.T) {
	fromSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex_raw", Type: "string"}},
		Derived: []specmodel.DerivedVariable{
			mustDV(t, "d:SEX", "SEX", nil, map[string]any{"map": map[string]any{"M": "M", "F": "F"}}, "s:SEX_RAW"),
			mustDV(t, "d:SEX_CDISC", "SEX_CDISC", nil, nil, "d:SEX"),
		},
	}
	toSpec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex_raw", Type: "string"}},
		Derived: []specmodel.DerivedVariable{
			mustDV(t, "d:SEX", "SEX", nil, map[string]any{"map": map[string]any{"M": "M", "F": "F", "U": "UNKNOWN"}}, "s:SEX_RAW"),
			mustDV(t, "d:SEX_CDISC", "SEX_CDISC", nil, nil, "d:SEX"),
		},
	}

	result, err := Diff(DiffInput{FromSpec: fromSpec, ToSpec: toSpec})
	require.NoError(t, err)
	assert.ElementsMatch(t, []specmodel.ElementID{"d:SEX", "d:SEX_CDISC"}, result.Impact.Impacted)
	assert.Equal(t, impact.DirectChangeReason, result.Impact.PrimaryReason("d:SEX"))
	assert.Equal(t, impact.TransitiveDependencyReason, result.Impact.PrimaryReason("d:SEX_CDISC"))
	assert.Equal(t, exitCodeFor(result), 1)
}

// S3 — registry impl change with an unchanged spec.
func TestDiff_S3_RegistryImplChangeSpecUnchanged(t *testing.T) {
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex_raw", Type: "string"}},
		Derived: []specmodel.DerivedVariable{
			mustDV(t, "d:SEX_CDISC", "SEX_CDISC", ptr("t:ct_map"), nil, "s:SEX_RAW"),
		},
	}
	regFrom := &registry.TransformRegistry{Transforms: []registry.TransformEntry{
		{ID: "t:ct_map", Version: "1", ImplFingerprint: registry.ImplFingerprint{Algo: "sha256", Digest: "abc"}},
	}}
	regTo := &registry.TransformRegistry{Transforms: []registry.TransformEntry{
		{ID: "t:ct_map", Version: "2", ImplFingerprint: registry.ImplFingerprint{Algo: "sha256", Digest: "def"}},
	}}

	result, err := Diff(DiffInput{FromSpec: spec, ToSpec: spec, RegistryFrom: regFrom, RegistryTo: regTo})
	require.NoError(t, err)
	assert.Equal(t, []specmodel.ElementID{"d:SEX_CDISC"}, result.Impact.Impacted)
	assert.Equal(t, impact.TransformImplChangedReason, result.Impact.PrimaryReason("d:SEX_CDISC"))
	assert.False(t, result.Impact.ValidationFailed)
}

// S4 — transform removed from the registry while the spec still references it.
func TestDiff_S4_TransformRemoved(t *testing.T) {
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex_raw", Type: "string"}},
		Derived: []specmodel.DerivedVariable{
			mustDV(t, "d:SEX_CDISC", "SEX_CDISC", ptr("t:ct_map"), nil, "s:SEX_RAW"),
		},
	}
	regFrom := &registry.TransformRegistry{Transforms: []registry.TransformEntry{
		{ID: "t:ct_map", Version: "1", ImplFingerprint: registry.ImplFingerprint{Algo: "sha256", Digest: "abc"}},
	}}
	regTo := &registry.TransformRegistry{}

	result, err := Diff(DiffInput{FromSpec: spec, ToSpec: spec, RegistryFrom: regFrom, RegistryTo: regTo})
	require.NoError(t, err)
	assert.Equal(t, impact.MissingTransformRefReason, result.Impact.PrimaryReason("d:SEX_CDISC"))
	assert.True(t, result.Impact.ValidationFailed)
	assert.Equal(t, 2, exitCodeFor(result))
}

// S5 — an ambiguous binding outranks a missing one and fails validation.
func TestDiff_S5_AmbiguousBindingBeatsMissing(t *testing.T) {
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:AGE", Name: "age", Type: "integer"}},
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:AGE_GROUP", "AGE_GROUP", nil, nil, "s:AGE")},
	}
	schema := binding.RawSchema{Table: "dm", Columns: []binding.RawColumn{{Name: "age_1", Type: "integer"}, {Name: "age_2", Type: "integer"}}}
	bindings := binding.Bindings{Table: "dm", Bindings: map[string]string{"age_1": "s:AGE", "age_2": "s:AGE"}}

	result, err := Diff(DiffInput{FromSpec: spec, ToSpec: spec, RawSchema: &schema, Bindings: &bindings})
	require.NoError(t, err)
	assert.Equal(t, impact.AmbiguousBindingReason, result.Impact.PrimaryReason("d:AGE_GROUP"))
	assert.True(t, result.Impact.ValidationFailed)
	assert.Equal(t, 2, exitCodeFor(result))
}

// S6 — a diamond merging into a long chain: exactly 154 nodes impacted,
// shortest path to the merge node has length 2, and it has at least one
// alternative path.
func TestDiff_S6_DiamondMergeIntoLongChain(t *testing.T) {
	fromSpec := diamondChainSpec(t, map[string]any{"k": "v1"})
	toSpec := diamondChainSpec(t, map[string]any{"k": "v2"})

	result, err := Diff(DiffInput{FromSpec: fromSpec, ToSpec: toSpec, DetailLevel: AllDetails})
	require.NoError(t, err)

	assert.Equal(t, 154, len(result.Impact.Impacted))
	path := result.Impact.Paths["d:C"]
	assert.Equal(t, 2, len(path)-1)
	assert.GreaterOrEqual(t, result.Impact.AltPathCounts["d:C"], 1)
}

// diamondChainSpec builds root -> {A, B} -> C -> a 150-node linear chain,
// so impacted = {root, A, B, C} + 150 = 154 nodes total.
func diamondChainSpec(t *testing.T, rootParams map[string]any) specmodel.MappingSpec {
	t.Helper()
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:ROOT_RAW", Name: "root_raw", Type: "string"}},
	}
	spec.Derived = append(spec.Derived, mustDV(t, "d:ROOT", "ROOT", nil, rootParams, "s:ROOT_RAW"))
	spec.Derived = append(spec.Derived, mustDV(t, "d:A", "A", nil, nil, "d:ROOT"))
	spec.Derived = append(spec.Derived, mustDV(t, "d:B", "B", nil, nil, "d:ROOT"))
	spec.Derived = append(spec.Derived, mustDV(t, "d:C", "C", nil, nil, "d:A", "d:B"))

	prev := specmodel.ElementID("d:C")
	for i := 0; i < 150; i++ {
		id := specmodel.DerivedID(fmt.Sprintf("d:CHAIN_%03d", i))
		spec.Derived = append(spec.Derived, mustDV(t, id, string(id), nil, nil, prev))
		prev = specmodel.ElementID(id)
	}
	return spec
}

func TestValidate_MissingTransformRefIsAnError(t *testing.T) {
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:X", Name: "x", Type: "string"}},
		Derived: []specmodel.DerivedVariable{mustDV(t, "d:Y", "Y", ptr("t:missing"), nil, "s:X")},
	}

	result, err := Validate(ValidateInput{Spec: spec, Registry: &registry.TransformRegistry{}})
	require.NoError(t, err)
	found := false
	for _, e := range result.Errors {
		if e.ElementID == "d:Y" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_DuplicateIDIsAnError(t *testing.T) {
	spec := specmodel.MappingSpec{
		Sources: []specmodel.SourceColumn{{ID: "s:X", Name: "x", Type: "string"}, {ID: "s:X", Name: "x2", Type: "string"}},
	}

	result, err := Validate(ValidateInput{Spec: spec})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)
}

// exitCodeFor is a tiny test helper mirroring the CLI's own mapping from a
// DiffResult to the external exit-code contract, so scenario tests can
// assert on it directly.
func exitCodeFor(r DiffResult) int {
	if r.Impact.ValidationFailed {
		return 2
	}
	if len(r.Impact.Impacted) > 0 {
		return 1
	}
	return 0
}
