// Package report assembles core/full/all-details reports from an
// ImpactResult, computing the digests that let a ReportVerifier later
// detect tampering.
package report

import (
	"encoding/hex"
	"sort"

	"cheshbon/internal/binding"
	"cheshbon/internal/canon"
	"cheshbon/internal/diffengine"
	"cheshbon/internal/impact"
	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

// DetailLevel selects which of the three report shapes Build produces.
type DetailLevel string

const (
	Core       DetailLevel = "core"
	Full       DetailLevel = "full"
	AllDetails DetailLevel = "all-details"
)

const SchemaVersion = "0.7"

// Caps bounds how much detail an all-details report carries, preventing
// unbounded output on pathological graphs.
type Caps struct {
	MaxWitnesses            int `json:"max_witnesses"`
	MaxRootCausesPerNode    int `json:"max_root_causes_per_node"`
	MaxTriggerEventsPerNode int `json:"max_trigger_events_per_node"`
	MaxTopRoots             int `json:"max_top_roots"`
}

// DefaultCaps mirrors the bounds already enforced by internal/graph
// (alt-path count capped at 10) at the reporting layer.
func DefaultCaps() Caps {
	return Caps{
		MaxWitnesses:            1000,
		MaxRootCausesPerNode:    10,
		MaxTriggerEventsPerNode: 10,
		MaxTopRoots:             10,
	}
}

// Omission records that a cap truncated some collection, so a reader never
// mistakes a truncated list for a complete one.
type Omission struct {
	Field        string `json:"field"`
	Reason       string `json:"reason"`
	DroppedCount int    `json:"dropped_count"`
}

// Witness is the all-details evidence trail for one impacted node.
type Witness struct {
	ID            specmodel.ElementID   `json:"id"`
	PrimaryReason impact.ReasonCode     `json:"primary_reason"`
	AllReasons    []impact.ReasonCode   `json:"all_reasons"`
	Path          []specmodel.ElementID `json:"path"`
	AltPathCount  int                   `json:"alt_path_count"`
	SourceEvents  []string              `json:"source_events"`
	RootCauseIDs  []specmodel.ElementID `json:"root_cause_ids"`
	Distance      int                   `json:"distance"`
	Predecessor   specmodel.ElementID   `json:"predecessor"`
}

// Summaries is report-level aggregate evidence for all-details mode.
type Summaries struct {
	Reasons       map[impact.ReasonCode]int   `json:"reasons"`
	EventsByType  map[diffengine.Kind]int     `json:"events_by_type"`
	MaxDistance   int                         `json:"max_distance"`
	TopRootCauses []specmodel.ElementID       `json:"top_root_causes"`
}

// InputsDigest hashes each supplied artifact independently via canon, so a
// verifier can tell which specific input changed.
type InputsDigest struct {
	FromSpec     string  `json:"from_spec"`
	ToSpec       string  `json:"to_spec"`
	RegistryFrom *string `json:"registry_from"`
	RegistryTo   *string `json:"registry_to"`
	Bindings     *string `json:"bindings"`
	RawSchema    *string `json:"raw_schema"`
}

// Inputs bundles every artifact a report's inputs_digest is computed from.
type Inputs struct {
	FromSpec     specmodel.MappingSpec
	ToSpec       specmodel.MappingSpec
	RegistryFrom *registry.TransformRegistry
	RegistryTo   *registry.TransformRegistry
	Bindings     *binding.Bindings
	RawSchema    *binding.RawSchema
}

// Report is the full output of one diff/validate invocation, shaped per
// its DetailLevel.
type Report struct {
	SchemaVersion string                                       `json:"schema_version"`
	Mode          DetailLevel                                  `json:"mode"`
	InputsDigest  InputsDigest                                 `json:"inputs_digest"`
	Events        []diffengine.ChangeEvent                     `json:"events"`
	Impacted      []specmodel.ElementID                        `json:"impacted"`
	Unaffected    []specmodel.ElementID                         `json:"unaffected"`
	Reasons       map[specmodel.ElementID][]impact.ReasonCode  `json:"reasons"`

	Paths map[specmodel.ElementID][]specmodel.ElementID `json:"paths,omitempty"` // full, all-details

	Witnesses []Witness  `json:"witnesses,omitempty"` // all-details only
	Summaries *Summaries `json:"summaries,omitempty"` // all-details only
	Caps      *Caps      `json:"caps,omitempty"`      // all-details only
	Omissions []Omission `json:"omissions,omitempty"` // all-details only

	// CoreDigest hashes only {impacted, unaffected, events, reasons} and is
	// stable across detail levels for the same underlying result; ContentHash
	// hashes the entire report body (this field excluded) and therefore
	// differs between core/full/all-details renderings of the same result.
	// In both digests each event contributes only its kind, element_id and
	// details; its old/new payloads are not hashed.
	CoreDigest  string `json:"core_digest"`
	ContentHash string `json:"content_hash"`
}

// Build assembles a Report from an already-computed impact.Result. Two
// invocations over identical inputs and mode produce byte-identical
// CoreDigest and ContentHash values.
func Build(result impact.Result, events []diffengine.ChangeEvent, in Inputs, mode DetailLevel) (Report, error) {
	caps := DefaultCaps()

	rep := Report{
		SchemaVersion: SchemaVersion,
		Mode:          mode,
		Events:        events,
		Impacted:      result.Impacted,
		Unaffected:    result.Unaffected,
		Reasons:       result.Reasons,
	}

	digest, err := buildInputsDigest(in)
	if err != nil {
		return Report{}, err
	}
	rep.InputsDigest = digest

	coreDigest, err := computeCoreDigest(rep)
	if err != nil {
		return Report{}, err
	}
	rep.CoreDigest = coreDigest

	if mode == Full || mode == AllDetails {
		rep.Paths = result.Paths
	}

	if mode == AllDetails {
		witnesses, omissions := buildWitnesses(result, caps)
		rep.Witnesses = witnesses
		rep.Caps = &caps
		rep.Omissions = omissions
		rep.Summaries = buildSummaries(result, events, witnesses, caps)
	}

	contentHash, err := computeContentHash(rep)
	if err != nil {
		return Report{}, err
	}
	rep.ContentHash = contentHash

	return rep, nil
}

func buildInputsDigest(in Inputs) (InputsDigest, error) {
	fromDigest, err := digestSpec(in.FromSpec)
	if err != nil {
		return InputsDigest{}, err
	}
	toDigest, err := digestSpec(in.ToSpec)
	if err != nil {
		return InputsDigest{}, err
	}

	out := InputsDigest{FromSpec: fromDigest, ToSpec: toDigest}
	if in.RegistryFrom != nil {
		d, err := digestAny(registryCanonical(*in.RegistryFrom))
		if err != nil {
			return InputsDigest{}, err
		}
		out.RegistryFrom = &d
	}
	if in.RegistryTo != nil {
		d, err := digestAny(registryCanonical(*in.RegistryTo))
		if err != nil {
			return InputsDigest{}, err
		}
		out.RegistryTo = &d
	}
	if in.Bindings != nil {
		d, err := digestAny(bindingsCanonical(*in.Bindings))
		if err != nil {
			return InputsDigest{}, err
		}
		out.Bindings = &d
	}
	if in.RawSchema != nil {
		d, err := digestAny(rawSchemaCanonical(*in.RawSchema))
		if err != nil {
			return InputsDigest{}, err
		}
		out.RawSchema = &d
	}
	return out, nil
}

func digestSpec(spec specmodel.MappingSpec) (string, error) {
	return digestAny(specCanonical(spec))
}

func digestAny(v any) (string, error) {
	b, err := canon.Marshal(v)
	if err != nil {
		return "", err
	}
	d := canon.Digest(b)
	return hex.EncodeToString(d[:]), nil
}

func specCanonical(spec specmodel.MappingSpec) map[string]any {
	sources := make([]any, len(spec.Sources))
	for i, s := range spec.Sources {
		sources[i] = map[string]any{"id": string(s.ID), "name": s.Name, "type": s.Type}
	}
	derived := make([]any, len(spec.Derived))
	for i, d := range spec.Derived {
		inputs := canon.Set{}
		for _, in := range d.Inputs {
			inputs = append(inputs, string(in))
		}
		var ref any
		if d.TransformRef != nil {
			ref = *d.TransformRef
		}
		derived[i] = map[string]any{
			"id": string(d.ID), "name": d.Name, "type": d.Type,
			"inputs": inputs, "transform_ref": ref,
			"params_hash": hex.EncodeToString(d.ParamsHash[:]),
		}
	}
	constraints := make([]any, len(spec.Constraints))
	for i, c := range spec.Constraints {
		inputs := canon.Set{}
		for _, in := range c.Inputs {
			inputs = append(inputs, string(in))
		}
		constraints[i] = map[string]any{
			"id": string(c.ID), "name": c.Name, "inputs": inputs, "expression": c.Expression,
		}
	}
	return map[string]any{
		"schema_version": spec.SchemaVersion,
		"sources":        sources,
		"derived":        derived,
		"constraints":    constraints,
	}
}

func registryCanonical(reg registry.TransformRegistry) map[string]any {
	transforms := make([]any, len(reg.Transforms))
	for i, t := range reg.Transforms {
		transforms[i] = map[string]any{
			"id": string(t.ID), "version": t.Version, "kind": t.Kind, "signature": t.Signature,
			"params_schema_hash": t.ParamsSchemaHash,
			"impl_fingerprint": map[string]any{
				"algo": t.ImplFingerprint.Algo, "source": t.ImplFingerprint.Source,
				"ref": t.ImplFingerprint.Ref, "digest": t.ImplFingerprint.Digest,
			},
		}
	}
	return map[string]any{"registry_version": reg.RegistryVersion, "transforms": transforms}
}

func bindingsCanonical(b binding.Bindings) map[string]any {
	bindings := map[string]any{}
	for k, v := range b.Bindings {
		bindings[k] = v
	}
	return map[string]any{"table": b.Table, "bindings": bindings}
}

func rawSchemaCanonical(s binding.RawSchema) map[string]any {
	cols := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = map[string]any{"name": c.Name, "type": c.Type}
	}
	return map[string]any{"table": s.Table, "columns": cols}
}

func buildWitnesses(result impact.Result, caps Caps) ([]Witness, []Omission) {
	var omissions []Omission
	witnesses := make([]Witness, 0, len(result.Impacted))

	for _, id := range result.Impacted {
		reasons := result.Reasons[id]
		sourceEvents := result.TriggerEvents[id]
		truncatedEvents := false
		if len(sourceEvents) > caps.MaxTriggerEventsPerNode {
			sourceEvents = sourceEvents[:caps.MaxTriggerEventsPerNode]
			truncatedEvents = true
		}

		path := result.Paths[id]
		distance := 0
		var predecessor specmodel.ElementID
		var rootCause specmodel.ElementID
		if len(path) > 0 {
			distance = len(path) - 1
			rootCause = path[0]
			if len(path) >= 2 {
				predecessor = path[len(path)-2]
			}
		}
		rootCauses := []specmodel.ElementID{}
		if rootCause != "" {
			rootCauses = append(rootCauses, rootCause)
		}
		truncatedRoots := false
		if len(rootCauses) > caps.MaxRootCausesPerNode {
			rootCauses = rootCauses[:caps.MaxRootCausesPerNode]
			truncatedRoots = true
		}

		witnesses = append(witnesses, Witness{
			ID:            id,
			PrimaryReason: result.PrimaryReason(id),
			AllReasons:    reasons,
			Path:          path,
			AltPathCount:  result.AltPathCounts[id],
			SourceEvents:  sourceEvents,
			RootCauseIDs:  rootCauses,
			Distance:      distance,
			Predecessor:   predecessor,
		})

		if truncatedEvents {
			omissions = append(omissions, Omission{Field: "witnesses." + string(id) + ".source_events", Reason: "max_trigger_events_per_node", DroppedCount: len(result.TriggerEvents[id]) - caps.MaxTriggerEventsPerNode})
		}
		if truncatedRoots {
			omissions = append(omissions, Omission{Field: "witnesses." + string(id) + ".root_cause_ids", Reason: "max_root_causes_per_node", DroppedCount: 0})
		}
	}

	truncatedWitnesses := false
	if len(witnesses) > caps.MaxWitnesses {
		witnesses = witnesses[:caps.MaxWitnesses]
		truncatedWitnesses = true
	}
	if truncatedWitnesses {
		omissions = append(omissions, Omission{Field: "witnesses", Reason: "max_witnesses", DroppedCount: len(result.Impacted) - caps.MaxWitnesses})
	}

	sort.Slice(omissions, func(i, j int) bool { return omissions[i].Field < omissions[j].Field })
	return witnesses, omissions
}

func buildSummaries(result impact.Result, events []diffengine.ChangeEvent, witnesses []Witness, caps Caps) *Summaries {
	reasonCounts := map[impact.ReasonCode]int{}
	for _, w := range witnesses {
		for _, r := range w.AllReasons {
			reasonCounts[r]++
		}
	}
	eventCounts := map[diffengine.Kind]int{}
	for _, e := range events {
		eventCounts[e.Kind]++
	}
	maxDistance := 0
	rootCauseCounts := map[specmodel.ElementID]int{}
	for _, w := range witnesses {
		if w.Distance > maxDistance {
			maxDistance = w.Distance
		}
		for _, rc := range w.RootCauseIDs {
			rootCauseCounts[rc]++
		}
	}

	var roots []specmodel.ElementID
	for id := range rootCauseCounts {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool {
		if rootCauseCounts[roots[i]] != rootCauseCounts[roots[j]] {
			return rootCauseCounts[roots[i]] > rootCauseCounts[roots[j]]
		}
		return roots[i] < roots[j]
	})
	if len(roots) > caps.MaxTopRoots {
		roots = roots[:caps.MaxTopRoots]
	}

	return &Summaries{
		Reasons:       reasonCounts,
		EventsByType:  eventCounts,
		MaxDistance:   maxDistance,
		TopRootCauses: roots,
	}
}

func computeCoreDigest(rep Report) (string, error) {
	return digestAny(coreSubset(rep))
}

func coreSubset(rep Report) map[string]any {
	return map[string]any{
		"impacted":   elementIDs(rep.Impacted),
		"unaffected": elementIDs(rep.Unaffected),
		"events":     eventsCanonical(rep.Events),
		"reasons":    reasonsCanonical(rep.Reasons),
	}
}

func computeContentHash(rep Report) (string, error) {
	return digestAny(reportCanonical(rep))
}

// RecomputeContentHash hashes rep's own body the same way Build does,
// letting a caller check a stored report for internal self-consistency
// (its content_hash actually matches its own fields) independently of
// whether it still matches a freshly rebuilt report.
func RecomputeContentHash(rep Report) (string, error) {
	return computeContentHash(rep)
}

// reportCanonical renders the full report body, excluding ContentHash
// itself, for content_hash computation.
func reportCanonical(rep Report) map[string]any {
	out := map[string]any{
		"schema_version": rep.SchemaVersion,
		"mode":           string(rep.Mode),
		"inputs_digest":  inputsDigestCanonical(rep.InputsDigest),
		"events":         eventsCanonical(rep.Events),
		"impacted":       elementIDs(rep.Impacted),
		"unaffected":     elementIDs(rep.Unaffected),
		"reasons":        reasonsCanonical(rep.Reasons),
		"core_digest":    rep.CoreDigest,
	}
	if rep.Mode == Full || rep.Mode == AllDetails {
		out["paths"] = pathsCanonical(rep.Paths)
	}
	if rep.Mode == AllDetails {
		out["witnesses"] = witnessesCanonical(rep.Witnesses)
		out["caps"] = capsCanonical(rep.Caps)
		out["omissions"] = omissionsCanonical(rep.Omissions)
		out["summaries"] = summariesCanonical(rep.Summaries)
	}
	return out
}

func inputsDigestCanonical(d InputsDigest) map[string]any {
	var registryFrom, registryTo, bindings, rawSchema any
	if d.RegistryFrom != nil {
		registryFrom = *d.RegistryFrom
	}
	if d.RegistryTo != nil {
		registryTo = *d.RegistryTo
	}
	if d.Bindings != nil {
		bindings = *d.Bindings
	}
	if d.RawSchema != nil {
		rawSchema = *d.RawSchema
	}
	return map[string]any{
		"from_spec":     d.FromSpec,
		"to_spec":       d.ToSpec,
		"registry_from": registryFrom,
		"registry_to":   registryTo,
		"bindings":      bindings,
		"raw_schema":    rawSchema,
	}
}

func elementIDs(ids []specmodel.ElementID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func eventsCanonical(events []diffengine.ChangeEvent) []any {
	out := make([]any, len(events))
	for i, e := range events {
		out[i] = map[string]any{
			"kind":       string(e.Kind),
			"element_id": e.ElementID,
			"details":    e.Details,
		}
	}
	return out
}

func reasonsCanonical(reasons map[specmodel.ElementID][]impact.ReasonCode) map[string]any {
	out := make(map[string]any, len(reasons))
	for id, rs := range reasons {
		strs := make([]any, len(rs))
		for i, r := range rs {
			strs[i] = string(r)
		}
		out[string(id)] = strs
	}
	return out
}

func pathsCanonical(paths map[specmodel.ElementID][]specmodel.ElementID) map[string]any {
	out := make(map[string]any, len(paths))
	for id, path := range paths {
		out[string(id)] = elementIDs(path)
	}
	return out
}

func witnessesCanonical(witnesses []Witness) []any {
	out := make([]any, len(witnesses))
	for i, w := range witnesses {
		out[i] = map[string]any{
			"id":             string(w.ID),
			"primary_reason": string(w.PrimaryReason),
			"all_reasons":    reasonSlice(w.AllReasons),
			"path":           elementIDs(w.Path),
			"alt_path_count": w.AltPathCount,
			"source_events":  stringSlice(w.SourceEvents),
			"root_cause_ids": elementIDs(w.RootCauseIDs),
			"distance":       w.Distance,
			"predecessor":    string(w.Predecessor),
		}
	}
	return out
}

func reasonSlice(rs []impact.ReasonCode) []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func stringSlice(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func capsCanonical(c *Caps) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return map[string]any{
		"max_witnesses":               c.MaxWitnesses,
		"max_root_causes_per_node":    c.MaxRootCausesPerNode,
		"max_trigger_events_per_node": c.MaxTriggerEventsPerNode,
		"max_top_roots":               c.MaxTopRoots,
	}
}

func omissionsCanonical(omissions []Omission) []any {
	out := make([]any, len(omissions))
	for i, o := range omissions {
		out[i] = map[string]any{"field": o.Field, "reason": o.Reason, "dropped_count": o.DroppedCount}
	}
	return out
}

func summariesCanonical(s *Summaries) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	reasons := make(map[string]any, len(s.Reasons))
	for r, n := range s.Reasons {
		reasons[string(r)] = n
	}
	events := make(map[string]any, len(s.EventsByType))
	for k, n := range s.EventsByType {
		events[string(k)] = n
	}
	return map[string]any{
		"reasons":         reasons,
		"events_by_type":  events,
		"max_distance":    s.MaxDistance,
		"top_root_causes": elementIDs(s.TopRootCauses),
	}
}
