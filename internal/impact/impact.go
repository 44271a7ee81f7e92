// Package impact computes the impact classification (impacted, unaffected,
// reasons, paths) from a diff's ChangeEvents combined with the dependency
// graph and binding status.
package impact

import (
	"sort"

	"cheshbon/internal/binding"
	"cheshbon/internal/diffengine"
	"cheshbon/internal/graph"
	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

// ReasonCode is why a node ended up impacted.
type ReasonCode string

const (
	AmbiguousBindingReason         ReasonCode = "AMBIGUOUS_BINDING"
	MissingTransformRefReason      ReasonCode = "MISSING_TRANSFORM_REF"
	MissingBindingReason           ReasonCode = "MISSING_BINDING"
	MissingInputReason             ReasonCode = "MISSING_INPUT"
	DirectChangeMissingInputReason ReasonCode = "DIRECT_CHANGE_MISSING_INPUT"
	DirectChangeReason             ReasonCode = "DIRECT_CHANGE"
	TransformImplChangedReason     ReasonCode = "TRANSFORM_IMPL_CHANGED"
	TransitiveDependencyReason     ReasonCode = "TRANSITIVE_DEPENDENCY"
	CycleReason                    ReasonCode = "CYCLE"
)

// precedenceOrder: highest wins as the primary reason when a node carries
// more than one. Lower index = higher precedence.
var precedenceOrder = []ReasonCode{
	AmbiguousBindingReason,
	MissingTransformRefReason,
	MissingBindingReason,
	MissingInputReason,
	DirectChangeMissingInputReason,
	DirectChangeReason,
	TransformImplChangedReason,
	TransitiveDependencyReason,
	CycleReason,
}

func rank(r ReasonCode) int {
	for i, rc := range precedenceOrder {
		if rc == r {
			return i
		}
	}
	return len(precedenceOrder)
}

// Result is the full impact classification for one diff.
type Result struct {
	Impacted         []specmodel.ElementID
	Unaffected       []specmodel.ElementID
	Reasons          map[specmodel.ElementID][]ReasonCode // all reasons, sorted
	Paths            map[specmodel.ElementID][]specmodel.ElementID
	AltPathCounts    map[specmodel.ElementID]int
	TriggerEvents    map[specmodel.ElementID][]string
	ValidationFailed bool
}

// PrimaryReason returns the highest-precedence reason recorded for id, or
// "" if id is unaffected.
func (r Result) PrimaryReason(id specmodel.ElementID) ReasonCode {
	reasons := r.Reasons[id]
	if len(reasons) == 0 {
		return ""
	}
	best := reasons[0]
	for _, rc := range reasons[1:] {
		if rank(rc) < rank(best) {
			best = rc
		}
	}
	return best
}

// Input bundles everything Classify needs. FromSpec is required to resolve
// dependents of removed elements (the "to" graph no longer has edges into
// a node that no longer exists); ToSpec and RegistryTo describe the
// post-change world that surviving nodes and transform references are
// checked against.
type Input struct {
	Events     []diffengine.ChangeEvent
	FromSpec   specmodel.MappingSpec
	ToSpec     specmodel.MappingSpec
	RegistryTo *registry.TransformRegistry
	Binding    *binding.Result
}

// seed is one direct-cause assignment before transitive propagation.
type seed struct {
	id      specmodel.ElementID
	reason  ReasonCode
	eventID string
}

// Classify builds both spec graphs, runs seeding, then transitive
// propagation, producing the final Result. This function is the single
// shared classification path consumed by both the diff and validate entry
// points so the two can never drift apart on what counts as impacted vs
// validation-failed.
func Classify(in Input) Result {
	fromGraph, _ := graph.Build(in.FromSpec) // cycle in the old spec doesn't block looking up its dependents
	toGraph, cycleErr := graph.Build(in.ToSpec)

	unresolvedInTo := unresolvedInputs(in.ToSpec)

	seeds := seedFromEvents(in.Events, fromGraph, unresolvedInTo)
	seeds = append(seeds, seedFromTransformEvents(in.Events, in.ToSpec)...)
	seeds = append(seeds, seedFromBindings(in.Binding, toGraph)...)
	if in.RegistryTo != nil {
		for _, dv := range in.ToSpec.Derived {
			if dv.TransformRef == nil {
				continue
			}
			if _, ok := in.RegistryTo.Lookup(registry.TransformID(*dv.TransformRef)); !ok {
				seeds = append(seeds, seed{id: specmodel.ElementID(dv.ID), reason: MissingTransformRefReason, eventID: *dv.TransformRef})
			}
		}
	}

	reasons := map[specmodel.ElementID][]ReasonCode{}
	triggers := map[specmodel.ElementID][]string{}
	addReason := func(id specmodel.ElementID, r ReasonCode, eventID string) {
		if !containsReason(reasons[id], r) {
			reasons[id] = append(reasons[id], r)
		}
		if eventID != "" && !containsString(triggers[id], eventID) {
			triggers[id] = append(triggers[id], eventID)
		}
	}

	validationFailed := false
	for _, s := range seeds {
		addReason(s.id, s.reason, s.eventID)
		if s.reason == AmbiguousBindingReason || s.reason == MissingTransformRefReason {
			validationFailed = true
		}
	}

	// Propagate transitively from every directly-seeded node that still
	// exists in the target graph.
	for _, s := range seeds {
		for _, dep := range toGraph.TransitiveDependents(s.id) {
			addReason(dep, TransitiveDependencyReason, "")
		}
	}

	if cycleErr != nil {
		anyAffected := false
		for _, n := range cycleErr.Nodes {
			if len(reasons[n]) > 0 {
				anyAffected = true
				break
			}
		}
		if anyAffected {
			for _, n := range cycleErr.Nodes {
				addReason(n, CycleReason, "")
			}
		}
	}

	if in.Binding != nil && in.Binding.ValidationFailed {
		validationFailed = true
	}

	allIDs := map[specmodel.ElementID]bool{}
	for _, id := range toGraph.Nodes() {
		allIDs[id] = true
	}
	for id := range reasons {
		allIDs[id] = true
	}

	var impacted, unaffected []specmodel.ElementID
	for id := range allIDs {
		if len(reasons[id]) > 0 {
			impacted = append(impacted, id)
		} else {
			unaffected = append(unaffected, id)
		}
	}
	sort.Slice(impacted, func(i, j int) bool { return impacted[i] < impacted[j] })
	sort.Slice(unaffected, func(i, j int) bool { return unaffected[i] < unaffected[j] })
	for id := range reasons {
		sort.Slice(reasons[id], func(i, j int) bool { return reasons[id][i] < reasons[id][j] })
	}
	for id := range triggers {
		sort.Strings(triggers[id])
	}

	paths := map[specmodel.ElementID][]specmodel.ElementID{}
	altCounts := map[specmodel.ElementID]int{}
	for _, id := range impacted {
		bestPath, total := nearestSeedPath(toGraph, seeds, id)
		if bestPath != nil {
			paths[id] = bestPath
			altCounts[id] = maxInt(0, total-1)
		}
	}

	return Result{
		Impacted:         impacted,
		Unaffected:       unaffected,
		Reasons:          reasons,
		Paths:            paths,
		AltPathCounts:    altCounts,
		TriggerEvents:    triggers,
		ValidationFailed: validationFailed,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func containsReason(reasons []ReasonCode, r ReasonCode) bool {
	for _, existing := range reasons {
		if existing == r {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, existing := range xs {
		if existing == x {
			return true
		}
	}
	return false
}

// unresolvedInputs returns, per derived/constraint ElementID, whether any
// of its own declared inputs fails to resolve against spec — used to
// distinguish DIRECT_CHANGE from DIRECT_CHANGE_MISSING_INPUT.
func unresolvedInputs(spec specmodel.MappingSpec) map[specmodel.ElementID]bool {
	resolved := map[specmodel.ElementID]bool{}
	for _, s := range spec.Sources {
		resolved[specmodel.ElementID(s.ID)] = true
	}
	for _, d := range spec.Derived {
		resolved[specmodel.ElementID(d.ID)] = true
	}
	for _, c := range spec.Constraints {
		resolved[specmodel.ElementID(c.ID)] = true
	}

	out := map[specmodel.ElementID]bool{}
	for _, d := range spec.Derived {
		for _, in := range d.Inputs {
			if !resolved[in] {
				out[specmodel.ElementID(d.ID)] = true
				break
			}
		}
	}
	for _, c := range spec.Constraints {
		for _, in := range c.Inputs {
			if !resolved[in] {
				out[specmodel.ElementID(c.ID)] = true
				break
			}
		}
	}
	return out
}

// nearestSeedPath returns the shortest path from any seed to id (breaking
// ties by path length then lexicographic comparison of the seed ID) and
// the total number of bounded alternative paths summed across every seed
// that reaches id, for alt_path_counts.
func nearestSeedPath(g *graph.DependencyGraph, seeds []seed, id specmodel.ElementID) ([]specmodel.ElementID, int) {
	var best []specmodel.ElementID
	var bestSeed specmodel.ElementID
	total := 0
	seenSeed := map[specmodel.ElementID]bool{}
	for _, s := range seeds {
		if seenSeed[s.id] {
			continue
		}
		seenSeed[s.id] = true

		if s.id == id {
			return []specmodel.ElementID{id}, 1
		}
		p := g.ShortestPath(s.id, id)
		if p == nil {
			continue
		}
		total += g.AlternativePathCount(s.id, id)
		if best == nil || len(p) < len(best) || (len(p) == len(best) && s.id < bestSeed) {
			best = p
			bestSeed = s.id
		}
	}
	return best, total
}

// seedFromEvents implements §4.6's seeding rules over the diff's
// ChangeEvents. fromGraph resolves dependents of elements removed between
// the two snapshots; unresolvedInTo flags direct-change seeds whose own
// current inputs are missing, upgrading DIRECT_CHANGE to
// DIRECT_CHANGE_MISSING_INPUT.
func seedFromEvents(events []diffengine.ChangeEvent, fromGraph *graph.DependencyGraph, unresolvedInTo map[specmodel.ElementID]bool) []seed {
	var seeds []seed

	for _, e := range events {
		switch e.Kind {
		case diffengine.DerivedInputsChanged, diffengine.DerivedTransformRefChanged,
			diffengine.DerivedTransformParamsChanged, diffengine.DerivedTypeChanged:
			id := specmodel.ElementID(e.ElementID)
			reason := DirectChangeReason
			if unresolvedInTo[id] {
				reason = DirectChangeMissingInputReason
			}
			seeds = append(seeds, seed{id: id, reason: reason, eventID: e.ElementID})

		case diffengine.ConstraintInputsChanged, diffengine.ConstraintExpressionChanged:
			if fromGraph != nil {
				for _, dep := range fromGraph.Dependents(specmodel.ElementID(e.ElementID)) {
					seeds = append(seeds, seed{id: dep, reason: TransitiveDependencyReason, eventID: e.ElementID})
				}
			}

		case diffengine.SourceRemoved, diffengine.DerivedRemoved, diffengine.ConstraintRemoved:
			if fromGraph != nil {
				for _, dep := range fromGraph.Dependents(specmodel.ElementID(e.ElementID)) {
					seeds = append(seeds, seed{id: dep, reason: MissingInputReason, eventID: e.ElementID})
				}
			}
		}
	}
	return seeds
}

// seedFromTransformEvents is called by Classify with Input.ToSpec; kept as
// a separate pass since it needs the target spec's transform_ref index,
// which seedFromEvents's signature doesn't carry.
func seedFromTransformEvents(events []diffengine.ChangeEvent, toSpec specmodel.MappingSpec) []seed {
	var seeds []seed
	derivedByTransformRef := map[string][]specmodel.DerivedID{}
	for _, dv := range toSpec.Derived {
		if dv.TransformRef != nil {
			derivedByTransformRef[*dv.TransformRef] = append(derivedByTransformRef[*dv.TransformRef], dv.ID)
		}
	}

	for _, e := range events {
		switch e.Kind {
		case diffengine.TransformImplChanged:
			for _, id := range derivedByTransformRef[e.ElementID] {
				seeds = append(seeds, seed{id: specmodel.ElementID(id), reason: TransformImplChangedReason, eventID: e.ElementID})
			}
		case diffengine.TransformRemoved:
			for _, id := range derivedByTransformRef[e.ElementID] {
				seeds = append(seeds, seed{id: specmodel.ElementID(id), reason: MissingTransformRefReason, eventID: e.ElementID})
			}
		}
	}
	return seeds
}

func seedFromBindings(b *binding.Result, g *graph.DependencyGraph) []seed {
	if b == nil {
		return nil
	}
	var seeds []seed
	var ids []specmodel.SourceID
	for id := range b.Status {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		var reason ReasonCode
		switch b.Status[id] {
		case binding.MissingBinding:
			reason = MissingBindingReason
		case binding.AmbiguousBinding:
			reason = AmbiguousBindingReason
		default:
			continue
		}
		for _, dep := range g.Dependents(specmodel.ElementID(id)) {
			seeds = append(seeds, seed{id: dep, reason: reason})
		}
	}
	return seeds
}
