package cli

import (
	"os"

	"github.com/spf13/cobra"

	"cheshbon/internal/config"
)

// Execute builds the command tree and runs it against os.Args, returning
// the process exit code. This is the only function cmd/cheshbon calls.
func Execute() int {
	var workDir string
	var configPath string

	root := &cobra.Command{
		Use:           "cheshbon",
		Short:         "Deterministic impact analysis for versioned mapping specifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&workDir, "workdir", "", "Absolute working directory all relative paths resolve against (required)")
	root.PersistentFlags().StringVar(&configPath, "config", ".cheshbonrc", "Path to an optional .cheshbonrc config file, resolved under --workdir")

	env := &runEnv{workDir: &workDir, configPath: &configPath}

	root.AddCommand(newDiffCmd(env))
	root.AddCommand(newValidateCmd(env))
	root.AddCommand(newVerifyCmd(env))

	if err := root.Execute(); err != nil {
		if invErr, ok := err.(*InvocationError); ok {
			os.Stderr.WriteString(invErr.Message + "\n")
			return invErr.ExitCode
		}
		os.Stderr.WriteString(err.Error() + "\n")
		return ExitInvalidInvocation
	}
	return exitCode
}

// exitCode is set by a command's RunE just before it returns nil, since
// cobra itself has no concept of a semantic (non-error) exit code.
var exitCode int

// runEnv carries the persistent flags every subcommand needs to resolve
// its own paths and load its config deterministically.
type runEnv struct {
	workDir    *string
	configPath *string
}

func (e *runEnv) resolve() (string, config.Config, error) {
	wd, err := resolveWorkDir(*e.workDir)
	if err != nil {
		return "", config.Config{}, err
	}
	cfgPath, err := resolveUnderWorkDir(wd, *e.configPath)
	if err != nil {
		return "", config.Config{}, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return "", config.Config{}, invalidInvocationf("%v", err)
	}
	return wd, cfg, nil
}
