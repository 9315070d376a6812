package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gelm-lang/gelm/pkg/config"
)

// newCacheCmd builds the `gelm cache` command group for the registry
// response cache. The package cache (sources and artifacts) is not
// touched here; it is content-addressed and never stale.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the registry response cache",
	}
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached registry response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fs := afero.NewOsFs()
			home, err := config.Home()
			if err != nil {
				return err
			}
			cfg, err := config.Load(fs, home)
			if err != nil {
				return err
			}

			// Clear whichever backend verify and fetch actually use.
			backend, err := cacheBackend(ctx, fs, home, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()
			if err := backend.Clear(ctx); err != nil {
				return err
			}
			printSuccess("response cache cleared")
			return nil
		},
	}
}

func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the response cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.Home()
			if err != nil {
				return err
			}
			fmt.Println(httpCacheDir(home))
			return nil
		},
	}
}
