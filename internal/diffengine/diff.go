package diffengine

import (
	"sort"

	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

// Diff computes the ordered ChangeEvent stream between two MappingSpec
// snapshots, optionally comparing registry snapshots for transform events.
// Either registry may be nil if the caller has none to compare.
func Diff(from, to specmodel.MappingSpec, regFrom, regTo *registry.TransformRegistry) []ChangeEvent {
	var events []ChangeEvent

	events = append(events, diffSources(from.Sources, to.Sources)...)
	events = append(events, diffDerived(from.Derived, to.Derived)...)
	events = append(events, diffConstraints(from.Constraints, to.Constraints)...)
	events = append(events, diffRegistry(regFrom, regTo)...)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ElementID != events[j].ElementID {
			return events[i].ElementID < events[j].ElementID
		}
		return kindPriority(events[i].Kind) < kindPriority(events[j].Kind)
	})
	return events
}

func diffSources(from, to []specmodel.SourceColumn) []ChangeEvent {
	fromIdx := indexSources(from)
	toIdx := indexSources(to)
	var events []ChangeEvent

	for id, oldCol := range fromIdx {
		newCol, ok := toIdx[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: SourceRemoved, ElementID: string(id), Old: oldCol})
			continue
		}
		if oldCol.Name != newCol.Name {
			events = append(events, ChangeEvent{Kind: SourceRenamed, ElementID: string(id), Old: oldCol.Name, New: newCol.Name})
		}
	}
	for id, newCol := range toIdx {
		if _, ok := fromIdx[id]; !ok {
			events = append(events, ChangeEvent{Kind: SourceAdded, ElementID: string(id), New: newCol})
		}
	}
	return events
}

func indexSources(cols []specmodel.SourceColumn) map[specmodel.SourceID]specmodel.SourceColumn {
	m := make(map[specmodel.SourceID]specmodel.SourceColumn, len(cols))
	for _, c := range cols {
		m[c.ID] = c
	}
	return m
}

func diffDerived(from, to []specmodel.DerivedVariable) []ChangeEvent {
	fromIdx := indexDerived(from)
	toIdx := indexDerived(to)
	var events []ChangeEvent

	for id, oldDV := range fromIdx {
		newDV, ok := toIdx[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: DerivedRemoved, ElementID: string(id), Old: oldDV})
			continue
		}
		if oldDV.Name != newDV.Name {
			events = append(events, ChangeEvent{Kind: DerivedRenamed, ElementID: string(id), Old: oldDV.Name, New: newDV.Name})
		}
		if oldDV.Type != newDV.Type {
			events = append(events, ChangeEvent{Kind: DerivedTypeChanged, ElementID: string(id), Old: oldDV.Type, New: newDV.Type})
		}
		if !sameElementSet(oldDV.Inputs, newDV.Inputs) {
			events = append(events, ChangeEvent{Kind: DerivedInputsChanged, ElementID: string(id), Old: oldDV.Inputs, New: newDV.Inputs})
		}

		refChanged := !samePtr(oldDV.TransformRef, newDV.TransformRef)
		if refChanged {
			events = append(events, ChangeEvent{Kind: DerivedTransformRefChanged, ElementID: string(id), Old: oldDV.TransformRef, New: newDV.TransformRef})
		}
		// DERIVED_TRANSFORM_REF_CHANGED and DERIVED_TRANSFORM_PARAMS_CHANGED
		// are orthogonal: a ref change does not suppress a genuine params
		// change, and the two only coincide when the params digest happens
		// to collide across the ref change.
		if oldDV.ParamsHash != newDV.ParamsHash {
			events = append(events, ChangeEvent{Kind: DerivedTransformParamsChanged, ElementID: string(id)})
		}
	}
	for id, newDV := range toIdx {
		if _, ok := fromIdx[id]; !ok {
			events = append(events, ChangeEvent{Kind: DerivedAdded, ElementID: string(id), New: newDV})
		}
	}
	return events
}

func indexDerived(dvs []specmodel.DerivedVariable) map[specmodel.DerivedID]specmodel.DerivedVariable {
	m := make(map[specmodel.DerivedID]specmodel.DerivedVariable, len(dvs))
	for _, dv := range dvs {
		m[dv.ID] = dv
	}
	return m
}

func diffConstraints(from, to []specmodel.Constraint) []ChangeEvent {
	fromIdx := indexConstraints(from)
	toIdx := indexConstraints(to)
	var events []ChangeEvent

	for id, oldC := range fromIdx {
		newC, ok := toIdx[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: ConstraintRemoved, ElementID: string(id), Old: oldC})
			continue
		}
		if oldC.Name != newC.Name {
			events = append(events, ChangeEvent{Kind: ConstraintRenamed, ElementID: string(id), Old: oldC.Name, New: newC.Name})
		}
		if !sameElementSet(oldC.Inputs, newC.Inputs) {
			events = append(events, ChangeEvent{Kind: ConstraintInputsChanged, ElementID: string(id), Old: oldC.Inputs, New: newC.Inputs})
		}
		if oldC.Expression != newC.Expression {
			events = append(events, ChangeEvent{Kind: ConstraintExpressionChanged, ElementID: string(id), Old: oldC.Expression, New: newC.Expression})
		}
	}
	for id, newC := range toIdx {
		if _, ok := fromIdx[id]; !ok {
			events = append(events, ChangeEvent{Kind: ConstraintAdded, ElementID: string(id), New: newC})
		}
	}
	return events
}

func indexConstraints(cs []specmodel.Constraint) map[specmodel.ConstraintID]specmodel.Constraint {
	m := make(map[specmodel.ConstraintID]specmodel.Constraint, len(cs))
	for _, c := range cs {
		m[c.ID] = c
	}
	return m
}

func diffRegistry(from, to *registry.TransformRegistry) []ChangeEvent {
	var events []ChangeEvent
	if from == nil && to == nil {
		return events
	}

	var fromEntries, toEntries []registry.TransformEntry
	if from != nil {
		fromEntries = from.Transforms
	}
	if to != nil {
		toEntries = to.Transforms
	}

	fromIdx := indexTransforms(fromEntries)
	toIdx := indexTransforms(toEntries)

	for id, oldT := range fromIdx {
		newT, ok := toIdx[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: TransformRemoved, ElementID: string(id), Old: oldT})
			continue
		}
		// TRANSFORM_IMPL_CHANGED fires only when the digest differs; ref
		// churn alone (same digest, different source path) must not emit it.
		if oldT.ImplFingerprint.Digest != newT.ImplFingerprint.Digest {
			events = append(events, ChangeEvent{
				Kind:      TransformImplChanged,
				ElementID: string(id),
				Old:       oldT.ImplFingerprint,
				New:       newT.ImplFingerprint,
			})
		}
	}
	for id, newT := range toIdx {
		if _, ok := fromIdx[id]; !ok {
			events = append(events, ChangeEvent{Kind: TransformAdded, ElementID: string(id), New: newT})
		}
	}
	return events
}

func indexTransforms(entries []registry.TransformEntry) map[registry.TransformID]registry.TransformEntry {
	m := make(map[registry.TransformID]registry.TransformEntry, len(entries))
	for _, t := range entries {
		m[t.ID] = t
	}
	return m
}

// sameElementSet compares two input lists as sets: reordering alone
// produces no event.
func sameElementSet(a, b []specmodel.ElementID) bool {
	if len(a) != len(b) {
		return false
	}
	setA := make(map[specmodel.ElementID]bool, len(a))
	for _, id := range a {
		setA[id] = true
	}
	for _, id := range b {
		if !setA[id] {
			return false
		}
	}
	return true
}

func samePtr(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
