// Package diffengine computes the ordered sequence of ChangeEvents between
// two MappingSpec/TransformRegistry snapshot pairs.
package diffengine

// Kind is a closed ontology of structural change events.
type Kind string

const (
	SourceAdded   Kind = "SOURCE_ADDED"
	SourceRemoved Kind = "SOURCE_REMOVED"
	SourceRenamed Kind = "SOURCE_RENAMED"

	DerivedAdded                  Kind = "DERIVED_ADDED"
	DerivedRemoved                Kind = "DERIVED_REMOVED"
	DerivedRenamed                Kind = "DERIVED_RENAMED"
	DerivedInputsChanged          Kind = "DERIVED_INPUTS_CHANGED"
	DerivedTransformRefChanged    Kind = "DERIVED_TRANSFORM_REF_CHANGED"
	DerivedTransformParamsChanged Kind = "DERIVED_TRANSFORM_PARAMS_CHANGED"
	DerivedTypeChanged            Kind = "DERIVED_TYPE_CHANGED"

	ConstraintAdded             Kind = "CONSTRAINT_ADDED"
	ConstraintRemoved           Kind = "CONSTRAINT_REMOVED"
	ConstraintRenamed           Kind = "CONSTRAINT_RENAMED"
	ConstraintInputsChanged     Kind = "CONSTRAINT_INPUTS_CHANGED"
	ConstraintExpressionChanged Kind = "CONSTRAINT_EXPRESSION_CHANGED"

	TransformAdded       Kind = "TRANSFORM_ADDED"
	TransformRemoved     Kind = "TRANSFORM_REMOVED"
	TransformImplChanged Kind = "TRANSFORM_IMPL_CHANGED"
)

// kindPriority returns a fully-ordered integer key per Kind so events on the
// same element sort deterministically by class, then by a fixed index
// within the class.
func kindPriority(k Kind) int {
	order := []Kind{
		SourceRemoved, DerivedRemoved, ConstraintRemoved, TransformRemoved,
		SourceAdded, DerivedAdded, ConstraintAdded, TransformAdded,
		DerivedInputsChanged, DerivedTransformRefChanged, DerivedTransformParamsChanged,
		DerivedTypeChanged, ConstraintInputsChanged, ConstraintExpressionChanged,
		TransformImplChanged,
		SourceRenamed, DerivedRenamed, ConstraintRenamed,
	}
	for i, k2 := range order {
		if k2 == k {
			return i
		}
	}
	return len(order)
}

// ChangeEvent is one entry in the diff's totally-ordered output stream.
type ChangeEvent struct {
	Kind      Kind   `json:"kind"`
	ElementID string `json:"element_id"`
	Old       any    `json:"old,omitempty"`
	New       any    `json:"new,omitempty"`
	Details   string `json:"details,omitempty"`
}
