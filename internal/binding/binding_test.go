package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cheshbon/internal/specmodel"
)

func TestEvaluate_Bound(t *testing.T) {
	spec := specmodel.MappingSpec{Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex", Type: "string"}}}
	schema := RawSchema{Table: "t1", Columns: []RawColumn{{Name: "SEX", Type: "varchar"}}}
	bindings := Bindings{Table: "t1", Bindings: map[string]string{"SEX": "s:SEX_RAW"}}

	result := Evaluate(spec, schema, bindings)
	assert.Equal(t, Bound, result.Status["s:SEX_RAW"])
	assert.False(t, result.ValidationFailed)
}

func TestEvaluate_Missing(t *testing.T) {
	spec := specmodel.MappingSpec{Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex", Type: "string"}}}
	result := Evaluate(spec, RawSchema{}, Bindings{})
	assert.Equal(t, MissingBinding, result.Status["s:SEX_RAW"])
	assert.False(t, result.ValidationFailed)
}

func TestEvaluate_AmbiguousBeatsMissingAndIsTerminal(t *testing.T) {
	spec := specmodel.MappingSpec{Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex", Type: "string"}}}
	schema := RawSchema{Table: "t1", Columns: []RawColumn{{Name: "SEX_A", Type: "varchar"}, {Name: "SEX_B", Type: "varchar"}}}
	bindings := Bindings{Table: "t1", Bindings: map[string]string{
		"SEX_A": "s:SEX_RAW",
		"SEX_B": "s:SEX_RAW",
	}}

	result := Evaluate(spec, schema, bindings)
	assert.Equal(t, AmbiguousBinding, result.Status["s:SEX_RAW"])
	assert.True(t, result.ValidationFailed)
}

func TestEvaluate_InvalidBindingNotInSchema(t *testing.T) {
	spec := specmodel.MappingSpec{Sources: []specmodel.SourceColumn{{ID: "s:SEX_RAW", Name: "sex", Type: "string"}}}
	schema := RawSchema{Table: "t1"}
	bindings := Bindings{Table: "t1", Bindings: map[string]string{"NOT_IN_SCHEMA": "s:SEX_RAW"}}

	result := Evaluate(spec, schema, bindings)
	assert.Equal(t, MissingBinding, result.Status["s:SEX_RAW"], "invalid raw binding doesn't count toward resolution")
	assert.Len(t, result.Invalid, 1)
	assert.Equal(t, "NOT_IN_SCHEMA", result.Invalid[0].RawName)
}
