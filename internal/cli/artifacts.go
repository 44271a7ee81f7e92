package cli

import (
	"github.com/spf13/cobra"

	"cheshbon/internal/binding"
	"cheshbon/internal/registry"
	"cheshbon/internal/specmodel"
)

// artifactFlags are the file-path flags shared by diff and validate: every
// path is resolved under --workdir before any file is opened.
type artifactFlags struct {
	fromSpecPath     string
	toSpecPath       string
	specPath         string
	registryFromPath string
	registryToPath   string
	registryPath     string
	rawSchemaPath    string
	bindingsPath     string
}

// register adds the flags relevant to a two-version comparison (fromTo) or
// a single-spec check.
func (f *artifactFlags) register(cmd *cobra.Command, fromTo bool) {
	if fromTo {
		cmd.Flags().StringVar(&f.fromSpecPath, "from-spec", "", "Path to the baseline mapping spec JSON (required)")
		cmd.Flags().StringVar(&f.toSpecPath, "to-spec", "", "Path to the candidate mapping spec JSON (required)")
		cmd.Flags().StringVar(&f.registryFromPath, "registry-from", "", "Path to the baseline transform registry JSON (optional)")
		cmd.Flags().StringVar(&f.registryToPath, "registry-to", "", "Path to the candidate transform registry JSON (optional)")
	} else {
		cmd.Flags().StringVar(&f.specPath, "spec", "", "Path to the mapping spec JSON (required)")
		cmd.Flags().StringVar(&f.registryPath, "registry", "", "Path to the transform registry JSON (optional)")
	}
	cmd.Flags().StringVar(&f.rawSchemaPath, "raw-schema", "", "Path to the raw physical schema JSON (optional)")
	cmd.Flags().StringVar(&f.bindingsPath, "bindings", "", "Path to the binding table JSON (optional)")
}

type loadedArtifacts struct {
	fromSpec     specmodel.MappingSpec
	toSpec       specmodel.MappingSpec
	registryFrom *registry.TransformRegistry
	registryTo   *registry.TransformRegistry
	rawSchema    *binding.RawSchema
	bindings     *binding.Bindings
}

// load resolves every configured path under workDir and loads it.
func (f *artifactFlags) load(workDir string) (loadedArtifacts, error) {
	var out loadedArtifacts

	if f.fromSpecPath != "" {
		p, err := resolveUnderWorkDir(workDir, f.fromSpecPath)
		if err != nil {
			return out, err
		}
		out.fromSpec, err = LoadSpec(p)
		if err != nil {
			return out, err
		}
	}
	if f.toSpecPath != "" {
		p, err := resolveUnderWorkDir(workDir, f.toSpecPath)
		if err != nil {
			return out, err
		}
		out.toSpec, err = LoadSpec(p)
		if err != nil {
			return out, err
		}
	}
	if f.specPath != "" {
		p, err := resolveUnderWorkDir(workDir, f.specPath)
		if err != nil {
			return out, err
		}
		out.toSpec, err = LoadSpec(p)
		if err != nil {
			return out, err
		}
	}

	var err error
	out.registryFrom, err = loadOptionalRegistry(workDir, f.registryFromPath)
	if err != nil {
		return out, err
	}
	out.registryTo, err = loadOptionalRegistry(workDir, f.registryToPath)
	if err != nil {
		return out, err
	}
	if f.registryPath != "" {
		out.registryTo, err = loadOptionalRegistry(workDir, f.registryPath)
		if err != nil {
			return out, err
		}
	}
	out.rawSchema, err = loadOptionalRawSchema(workDir, f.rawSchemaPath)
	if err != nil {
		return out, err
	}
	out.bindings, err = loadOptionalBindings(workDir, f.bindingsPath)
	if err != nil {
		return out, err
	}

	return out, nil
}

func loadOptionalRegistry(workDir, p string) (*registry.TransformRegistry, error) {
	resolved, err := resolveOptionalUnderWorkDir(workDir, p)
	if err != nil || resolved == "" {
		return nil, err
	}
	return LoadRegistry(resolved)
}

func loadOptionalRawSchema(workDir, p string) (*binding.RawSchema, error) {
	resolved, err := resolveOptionalUnderWorkDir(workDir, p)
	if err != nil || resolved == "" {
		return nil, err
	}
	return LoadRawSchema(resolved)
}

func loadOptionalBindings(workDir, p string) (*binding.Bindings, error) {
	resolved, err := resolveOptionalUnderWorkDir(workDir, p)
	if err != nil || resolved == "" {
		return nil, err
	}
	return LoadBindings(resolved)
}
