package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gelm-lang/gelm/pkg/details"
	"github.com/gelm-lang/gelm/pkg/problem"
)

// newVerifyCmd builds the `gelm verify` command: load or regenerate the
// project's build details.
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [project-root]",
		Short: "Verify the project's dependencies and build products",
		Long: `Verify loads the persisted build details when the manifest is untouched,
and otherwise solves the dependency constraints, builds every dependency
package (reusing fingerprinted artifacts), and persists fresh details.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			root, err := projectRoot(args)
			if err != nil {
				return err
			}

			env, err := buildEnv(ctx)
			if err != nil {
				return err
			}

			p := newProgress(logger)
			spinner := newSpinner(ctx, "verifying dependencies")
			spinner.Start()

			d, perr := details.Load(ctx, env, root)
			if perr != nil {
				spinner.Stop()
				return reportProblem(perr)
			}
			spinner.Stop()

			switch d.Extras.(type) {
			case *details.Cached:
				p.done(fmt.Sprintf("Verified %s (cached, build %d)", root, d.BuildID))
			default:
				p.done(fmt.Sprintf("Verified %s (%d foreign modules)", root, len(d.Foreigns)))
			}
			printSuccess("dependencies are ready")
			return nil
		},
	}
}

// newInstallCmd builds the `gelm install` command: run the verify pipeline
// up to dependencies and discard the result.
func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [project-root]",
		Short: "Check that the current manifest is buildable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			env, err := buildEnv(ctx)
			if err != nil {
				return err
			}

			if perr := details.VerifyInstall(ctx, env, root); perr != nil {
				return reportProblem(perr)
			}
			printSuccess("the manifest is buildable")
			return nil
		},
	}
}

func projectRoot(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return os.Getwd()
}

// reportProblem renders an engine problem for the terminal and returns a
// bare error so cobra sets the exit code without double-printing.
func reportProblem(p problem.Problem) error {
	printError("%s", p.Error())
	if deps, ok := p.(*problem.BadDeps); ok {
		fmt.Fprintln(os.Stderr, styleDim.Render(fmt.Sprintf("package cache: %s", deps.Home)))
	}
	return fmt.Errorf("verification failed")
}
