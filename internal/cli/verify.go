package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cheshbon/internal/binding"
	"cheshbon/internal/impact"
	"cheshbon/internal/registry"
	"cheshbon/internal/report"
	"cheshbon/internal/specmodel"
	"cheshbon/internal/verify"
	"cheshbon/pkg/cheshbon"
)

func newVerifyCmd(env *runEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-derive a stored report from its inputs and detect tampering or stale inputs",
	}
	cmd.AddCommand(newVerifyReportCmd(env))
	cmd.AddCommand(newVerifySpecCmd(env))
	cmd.AddCommand(newVerifyRegistryCmd(env))
	cmd.AddCommand(newVerifyBindingsCmd(env))
	return cmd
}

// newVerifyReportCmd does the full re-derivation: diff -> classify ->
// build, compared field-by-field against the stored report.
func newVerifyReportCmd(env *runEnv) *cobra.Command {
	var reportPath string
	var flags artifactFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fully re-derive a stored report from its original inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, _, err := env.resolve()
			if err != nil {
				return err
			}
			stored, err := loadStoredReport(wd, reportPath)
			if err != nil {
				return err
			}

			in, err := flags.load(wd)
			if err != nil {
				return err
			}

			result := cheshbon.VerifyReport(stored, verify.Inputs{
				FromSpec:     in.fromSpec,
				ToSpec:       in.toSpec,
				RegistryFrom: in.registryFrom,
				RegistryTo:   in.registryTo,
				Bindings:     in.bindings,
				RawSchema:    in.rawSchema,
			})
			return emitVerifyResult(result)
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Path to the stored report JSON (required)")
	flags.register(cmd, true)
	return cmd
}

// newVerifySpecCmd checks only whether a spec's digest still matches the
// report's recorded inputs_digest, without paying for a full report
// rebuild — a lightweight gate for CI to run before the heavier `verify
// report`.
func newVerifySpecCmd(env *runEnv) *cobra.Command {
	var reportPath, specPath string
	var which string

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Check a single spec's digest against a stored report's inputs_digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, _, err := env.resolve()
			if err != nil {
				return err
			}
			stored, err := loadStoredReport(wd, reportPath)
			if err != nil {
				return err
			}
			resolvedSpec, err := resolveUnderWorkDir(wd, specPath)
			if err != nil {
				return err
			}
			spec, err := LoadSpec(resolvedSpec)
			if err != nil {
				return err
			}

			var expected string
			if which == "to" {
				expected = stored.InputsDigest.ToSpec
			} else {
				expected = stored.InputsDigest.FromSpec
			}

			digest, err := digestSpecViaReport(spec)
			if err != nil {
				return err
			}
			return emitDigestCheck(digest == expected)
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Path to the stored report JSON (required)")
	cmd.Flags().StringVar(&specPath, "spec", "", "Path to the spec JSON to check (required)")
	cmd.Flags().StringVar(&which, "which", "from", "Which recorded digest to check against: from|to")
	return cmd
}

func newVerifyRegistryCmd(env *runEnv) *cobra.Command {
	var reportPath, registryPath, which string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Check a single registry's digest against a stored report's inputs_digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, _, err := env.resolve()
			if err != nil {
				return err
			}
			stored, err := loadStoredReport(wd, reportPath)
			if err != nil {
				return err
			}
			resolved, err := resolveUnderWorkDir(wd, registryPath)
			if err != nil {
				return err
			}
			reg, err := LoadRegistry(resolved)
			if err != nil {
				return err
			}
			var expected *string
			if which == "to" {
				expected = stored.InputsDigest.RegistryTo
			} else {
				expected = stored.InputsDigest.RegistryFrom
			}
			return emitDigestCheck(registryDigestMatches(reg, expected))
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Path to the stored report JSON (required)")
	cmd.Flags().StringVar(&registryPath, "registry", "", "Path to the registry JSON to check (required)")
	cmd.Flags().StringVar(&which, "which", "from", "Which recorded digest to check against: from|to")
	return cmd
}

func newVerifyBindingsCmd(env *runEnv) *cobra.Command {
	var reportPath, rawSchemaPath, bindingsPath string

	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Check raw schema + binding table digests against a stored report's inputs_digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, _, err := env.resolve()
			if err != nil {
				return err
			}
			stored, err := loadStoredReport(wd, reportPath)
			if err != nil {
				return err
			}
			schema, err := loadOptionalRawSchema(wd, rawSchemaPath)
			if err != nil {
				return err
			}
			bindings, err := loadOptionalBindings(wd, bindingsPath)
			if err != nil {
				return err
			}
			schemaOK := rawSchemaDigestMatches(schema, stored.InputsDigest.RawSchema)
			bindingsOK := bindingsDigestMatches(bindings, stored.InputsDigest.Bindings)
			return emitDigestCheck(schemaOK && bindingsOK)
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Path to the stored report JSON (required)")
	cmd.Flags().StringVar(&rawSchemaPath, "raw-schema", "", "Path to the raw schema JSON to check (optional)")
	cmd.Flags().StringVar(&bindingsPath, "bindings", "", "Path to the bindings JSON to check (optional)")
	return cmd
}

func loadStoredReport(workDir, reportPath string) (report.Report, error) {
	resolved, err := resolveUnderWorkDir(workDir, reportPath)
	if err != nil {
		return report.Report{}, err
	}
	var stored report.Report
	if err := readJSON(resolved, &stored); err != nil {
		return report.Report{}, err
	}
	return stored, nil
}

func digestSpecViaReport(spec specmodel.MappingSpec) (string, error) {
	rep, err := report.Build(impact.Result{}, nil, report.Inputs{FromSpec: spec, ToSpec: spec}, report.Core)
	if err != nil {
		return "", err
	}
	return rep.InputsDigest.FromSpec, nil
}

func registryDigestMatches(reg *registry.TransformRegistry, expected *string) bool {
	if reg == nil {
		return expected == nil
	}
	if expected == nil {
		return false
	}
	rep, err := report.Build(impact.Result{}, nil, report.Inputs{RegistryFrom: reg}, report.Core)
	if err != nil {
		return false
	}
	return rep.InputsDigest.RegistryFrom != nil && *rep.InputsDigest.RegistryFrom == *expected
}

func rawSchemaDigestMatches(schema *binding.RawSchema, expected *string) bool {
	if schema == nil {
		return expected == nil
	}
	if expected == nil {
		return false
	}
	rep, err := report.Build(impact.Result{}, nil, report.Inputs{RawSchema: schema}, report.Core)
	if err != nil {
		return false
	}
	return rep.InputsDigest.RawSchema != nil && *rep.InputsDigest.RawSchema == *expected
}

func bindingsDigestMatches(bindings *binding.Bindings, expected *string) bool {
	if bindings == nil {
		return expected == nil
	}
	if expected == nil {
		return false
	}
	rep, err := report.Build(impact.Result{}, nil, report.Inputs{Bindings: bindings}, report.Core)
	if err != nil {
		return false
	}
	return rep.InputsDigest.Bindings != nil && *rep.InputsDigest.Bindings == *expected
}

func emitDigestCheck(ok bool) error {
	data, err := json.MarshalIndent(map[string]bool{"matches": ok}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := os.Stdout.Write(data); err != nil {
		return err
	}
	if ok {
		exitCode = ExitNoImpact
	} else {
		exitCode = ExitValidationFailed
	}
	return nil
}

func emitVerifyResult(result verify.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("verify: encoding result: %w", err)
	}
	data = append(data, '\n')
	if _, err := os.Stdout.Write(data); err != nil {
		return err
	}
	if result.Outcome == verify.OK {
		exitCode = ExitNoImpact
	} else {
		exitCode = ExitValidationFailed
	}
	return nil
}
