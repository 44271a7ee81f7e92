package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cheshbon/internal/report"
	"cheshbon/pkg/cheshbon"
)

func newDiffCmd(env *runEnv) *cobra.Command {
	var flags artifactFlags
	var detail string
	var outPath string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff two mapping spec versions and report downstream impact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, cfg, err := env.resolve()
			if err != nil {
				return err
			}
			in, err := flags.load(wd)
			if err != nil {
				return err
			}

			level := report.DetailLevel(detail)
			if detail == "" {
				level = cfg.DefaultLevel
			}

			result, err := cheshbon.Diff(cheshbon.DiffInput{
				FromSpec:     in.fromSpec,
				ToSpec:       in.toSpec,
				RegistryFrom: in.registryFrom,
				RegistryTo:   in.registryTo,
				RawSchema:    in.rawSchema,
				Bindings:     in.bindings,
				DetailLevel:  level,
			})
			if err != nil {
				return fmt.Errorf("diff: %w", err)
			}

			if err := writeReport(outPath, wd, result.Report); err != nil {
				return err
			}

			exitCode = diffExitCode(result)
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&detail, "detail", "", "Report detail level: core|full|all-details (default from .cheshbonrc, else core)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the report to this path instead of stdout, resolved under --workdir")

	return cmd
}

func diffExitCode(result cheshbon.DiffResult) int {
	if result.Impact.ValidationFailed {
		return ExitValidationFailed
	}
	if len(result.Impact.Impacted) > 0 {
		return ExitImpactFound
	}
	return ExitNoImpact
}

func writeReport(outPath, workDir string, rep report.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("diff: encoding report: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	resolved, err := resolveUnderWorkDir(workDir, outPath)
	if err != nil {
		return err
	}
	return os.WriteFile(resolved, data, 0o644)
}
