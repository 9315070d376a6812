package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/fetch"
	"github.com/gelm-lang/gelm/pkg/registry"
)

// newFetchCmd builds the `gelm fetch` command: prefetch one package
// version into the package cache.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch author/project@version",
		Short: "Download and unpack one package into the package cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name, versionStr, ok := strings.Cut(args[0], "@")
			if !ok {
				return fmt.Errorf("expected author/project@version, got %q", args[0])
			}
			pkg, err := core.ParsePkgName(name)
			if err != nil {
				return err
			}
			vsn, err := core.ParseVersion(versionStr)
			if err != nil {
				return err
			}

			env, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			if env.Offline {
				return fmt.Errorf("cannot fetch packages in offline mode")
			}

			lock, err := registry.AcquireLock(env.Fs, env.Home)
			if err != nil {
				return err
			}
			defer lock.Release()

			client := registry.NewClient(env.RegistryBase, env.Cache, env.CacheTTL)
			spinner := newSpinner(ctx, fmt.Sprintf("fetching %s %s", pkg, vsn))
			spinner.Start()
			if ferr := fetch.Fetch(ctx, env.Fs, env.Home, client, pkg, vsn); ferr != nil {
				spinner.StopWithError(ferr.Error())
				return fmt.Errorf("fetch failed")
			}
			spinner.StopWithSuccess(fmt.Sprintf("%s %s is in the package cache", pkg, vsn))
			return nil
		},
	}
}
