package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cheshbon/pkg/cheshbon"
)

func newValidateCmd(env *runEnv) *cobra.Command {
	var flags artifactFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a single mapping spec for internal consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, _, err := env.resolve()
			if err != nil {
				return err
			}
			in, err := flags.load(wd)
			if err != nil {
				return err
			}

			result, err := cheshbon.Validate(cheshbon.ValidateInput{
				Spec:      in.toSpec,
				Registry:  in.registryTo,
				RawSchema: in.rawSchema,
				Bindings:  in.bindings,
			})
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("validate: encoding result: %w", err)
			}
			data = append(data, '\n')
			if _, err := os.Stdout.Write(data); err != nil {
				return err
			}

			if len(result.Errors) > 0 {
				exitCode = ExitValidationFailed
			} else {
				exitCode = ExitNoImpact
			}
			return nil
		},
	}

	flags.register(cmd, false)
	return cmd
}
