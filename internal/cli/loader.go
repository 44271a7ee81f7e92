package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"cheshbon/internal/binding"
	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

// specDTO/derivedDTO mirror the on-disk JSON shape of a mapping spec. They
// exist because specmodel.DerivedVariable's ParamsHash must always be
// derived via specmodel.NewDerivedVariable, never unmarshaled directly.
type specDTO struct {
	SchemaVersion string             `json:"schema_version"`
	Sources       []sourceDTO        `json:"sources"`
	Derived       []derivedDTO       `json:"derived"`
	Constraints   []constraintDTO    `json:"constraints"`
}

type sourceDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type derivedDTO struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Inputs       []string       `json:"inputs"`
	TransformRef *string        `json:"transform_ref"`
	Params       map[string]any `json:"params"`
}

type constraintDTO struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Inputs     []string `json:"inputs"`
	Expression string   `json:"expression"`
}

// LoadSpec reads and decodes a mapping spec JSON document from path,
// constructing every DerivedVariable through specmodel.NewDerivedVariable
// so ParamsHash is always derived, never trusted from disk.
func LoadSpec(path string) (specmodel.MappingSpec, error) {
	var dto specDTO
	if err := readJSON(path, &dto); err != nil {
		return specmodel.MappingSpec{}, err
	}

	spec := specmodel.MappingSpec{SchemaVersion: dto.SchemaVersion}

	for _, s := range dto.Sources {
		spec.Sources = append(spec.Sources, specmodel.SourceColumn{
			ID:   specmodel.SourceID(s.ID),
			Name: s.Name,
			Type: s.Type,
		})
	}

	for _, d := range dto.Derived {
		inputs := make([]specmodel.ElementID, len(d.Inputs))
		for i, in := range d.Inputs {
			inputs[i] = specmodel.ElementID(in)
		}
		dv, err := specmodel.NewDerivedVariable(specmodel.DerivedID(d.ID), d.Name, d.Type, inputs, d.TransformRef, d.Params)
		if err != nil {
			return specmodel.MappingSpec{}, fmt.Errorf("cli: loading %s: %w", path, err)
		}
		spec.Derived = append(spec.Derived, dv)
	}

	for _, c := range dto.Constraints {
		inputs := make([]specmodel.ElementID, len(c.Inputs))
		for i, in := range c.Inputs {
			inputs[i] = specmodel.ElementID(in)
		}
		spec.Constraints = append(spec.Constraints, specmodel.Constraint{
			ID:         specmodel.ConstraintID(c.ID),
			Name:       c.Name,
			Inputs:     inputs,
			Expression: c.Expression,
		})
	}

	return spec, nil
}

// LoadRegistry reads a transform registry JSON document. Unlike specs,
// registry.TransformEntry has no derived fields, so it is decoded directly.
func LoadRegistry(path string) (*registry.TransformRegistry, error) {
	if path == "" {
		return nil, nil
	}
	var reg registry.TransformRegistry
	if err := readJSON(path, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LoadRawSchema reads a raw physical schema JSON document.
func LoadRawSchema(path string) (*binding.RawSchema, error) {
	if path == "" {
		return nil, nil
	}
	var schema binding.RawSchema
	if err := readJSON(path, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// LoadBindings reads a raw-column-to-source-id binding table JSON document.
func LoadBindings(path string) (*binding.Bindings, error) {
	if path == "" {
		return nil, nil
	}
	var b binding.Bindings
	if err := readJSON(path, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cli: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cli: parsing %s: %w", path, err)
	}
	return nil
}
