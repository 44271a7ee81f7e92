// Package verify re-derives an all-details report from its original input
// artifacts and compares it against a stored report to detect tampering or
// stale inputs. It never trusts the stored report's own fields.
package verify

import (
	"sort"

	"cheshbon/internal/binding"
	"cheshbon/internal/diffengine"
	"cheshbon/internal/impact"
	"cheshbon/internal/registry"
	"cheshbon/internal/report"
	"cheshbon/internal/specmodel"
)

// Outcome is the closed set of verification results.
type Outcome string

const (
	OK              Outcome = "OK"
	DigestMismatch  Outcome = "DIGEST_MISMATCH"
	WitnessMismatch Outcome = "WITNESS_MISMATCH"
	InputsChanged   Outcome = "INPUTS_CHANGED"
)

// Mismatch pinpoints a single disagreement found while comparing stored and
// rebuilt witnesses; mismatches are reported under WITNESS_MISMATCH.
type Mismatch struct {
	NodeID specmodel.ElementID `json:"node_id"`
	Field  string              `json:"field"`
}

// Result is the verifier's full report.
type Result struct {
	Outcome    Outcome    `json:"outcome"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Inputs bundles the original artifacts a report's witnesses and digests
// are recomputed from.
type Inputs struct {
	FromSpec     specmodel.MappingSpec
	ToSpec       specmodel.MappingSpec
	RegistryFrom *registry.TransformRegistry
	RegistryTo   *registry.TransformRegistry
	Bindings     *binding.Bindings
	RawSchema    *binding.RawSchema
}

func (in Inputs) evaluateBindings() *binding.Result {
	if in.Bindings == nil || in.RawSchema == nil {
		return nil
	}
	result := binding.Evaluate(in.ToSpec, *in.RawSchema, *in.Bindings)
	return &result
}

// Verify rebuilds the report from inputs via report.Build and compares it
// against stored at both the digest and the witness level. The witness
// comparison and the stored report's own self-consistency (its
// content_hash must match a hash of its own body) are both checked
// unconditionally, not only when the top-level digests already disagree —
// otherwise a stored report tampered at the witness level while its
// content_hash field is left untouched would slip through as OK.
func Verify(stored report.Report, in Inputs) Result {
	fromDigest, err := specDigestMatches(in.FromSpec, stored.InputsDigest.FromSpec)
	if err != nil || !fromDigest {
		return Result{Outcome: InputsChanged}
	}
	toDigest, err := specDigestMatches(in.ToSpec, stored.InputsDigest.ToSpec)
	if err != nil || !toDigest {
		return Result{Outcome: InputsChanged}
	}

	events := diffengine.Diff(in.FromSpec, in.ToSpec, in.RegistryFrom, in.RegistryTo)
	result := impact.Classify(impact.Input{
		Events:     events,
		FromSpec:   in.FromSpec,
		ToSpec:     in.ToSpec,
		RegistryTo: in.RegistryTo,
		Binding:    in.evaluateBindings(),
	})

	rebuilt, err := report.Build(result, events, report.Inputs{
		FromSpec:     in.FromSpec,
		ToSpec:       in.ToSpec,
		RegistryFrom: in.RegistryFrom,
		RegistryTo:   in.RegistryTo,
		Bindings:     in.Bindings,
		RawSchema:    in.RawSchema,
	}, stored.Mode)
	if err != nil {
		return Result{Outcome: InputsChanged}
	}

	if mismatches := localizeWitnessMismatches(stored, rebuilt); len(mismatches) > 0 {
		return Result{Outcome: WitnessMismatch, Mismatches: mismatches}
	}

	selfHash, err := report.RecomputeContentHash(stored)
	selfConsistent := err == nil && selfHash == stored.ContentHash

	if !selfConsistent || rebuilt.ContentHash != stored.ContentHash || rebuilt.CoreDigest != stored.CoreDigest {
		return Result{Outcome: DigestMismatch}
	}

	return Result{Outcome: OK}
}

func specDigestMatches(spec specmodel.MappingSpec, expected string) (bool, error) {
	got, err := digestSpecForVerify(spec)
	if err != nil {
		return false, err
	}
	return got == expected, nil
}

func digestSpecForVerify(spec specmodel.MappingSpec) (string, error) {
	// report.digestSpec is unexported; Verify recomputes identically by
	// routing through report.Build with an empty result, reading back the
	// from_spec digest it produces for the same MappingSpec value.
	rep, err := report.Build(impact.Result{}, nil, report.Inputs{FromSpec: spec, ToSpec: spec}, report.Core)
	if err != nil {
		return "", err
	}
	return rep.InputsDigest.FromSpec, nil
}

func localizeWitnessMismatches(stored, rebuilt report.Report) []Mismatch {
	storedByID := make(map[specmodel.ElementID]report.Witness, len(stored.Witnesses))
	for _, w := range stored.Witnesses {
		storedByID[w.ID] = w
	}
	rebuiltByID := make(map[specmodel.ElementID]report.Witness, len(rebuilt.Witnesses))
	for _, w := range rebuilt.Witnesses {
		rebuiltByID[w.ID] = w
	}

	var mismatches []Mismatch
	for id, rw := range rebuiltByID {
		sw, ok := storedByID[id]
		if !ok {
			mismatches = append(mismatches, Mismatch{NodeID: id, Field: "presence"})
			continue
		}
		if sw.PrimaryReason != rw.PrimaryReason {
			mismatches = append(mismatches, Mismatch{NodeID: id, Field: "primary_reason"})
		}
		if !equalReasonSlice(sw.AllReasons, rw.AllReasons) {
			mismatches = append(mismatches, Mismatch{NodeID: id, Field: "all_reasons"})
		}
		if !equalPath(sw.Path, rw.Path) {
			mismatches = append(mismatches, Mismatch{NodeID: id, Field: "path"})
		}
		if sw.AltPathCount != rw.AltPathCount {
			mismatches = append(mismatches, Mismatch{NodeID: id, Field: "alt_path_count"})
		}
	}
	for id := range storedByID {
		if _, ok := rebuiltByID[id]; !ok {
			mismatches = append(mismatches, Mismatch{NodeID: id, Field: "presence"})
		}
	}

	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].NodeID != mismatches[j].NodeID {
			return mismatches[i].NodeID < mismatches[j].NodeID
		}
		return mismatches[i].Field < mismatches[j].Field
	})
	return mismatches
}

func equalReasonSlice(a, b []impact.ReasonCode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalPath(a, b []specmodel.ElementID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
