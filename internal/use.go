package internal

import (
	"github.com/weezy20/zv/internal/app"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/resolver"
	"github.com/weezy20/zv/internal/version"

	"github.com/spf13/cobra"
)

func NewUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <version>",
		Short: "Install a toolchain if needed and make it the active one",
		Long: `Resolves a version spec, installs the toolchain when it is missing, and
points the zig/zls shims at it.

Examples:
    zv use 0.14.0      # released version (patch may be omitted: zv use 0.14)
    zv use master      # latest nightly
    zv use stable      # newest release known to the local index
    zv use latest      # newest release, refreshing the index first`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := version.Parse(args[0])
			if err != nil {
				return err
			}

			a, err := app.New()
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force-ziglang")
			a.Resolver.ForceOrigin = a.Resolver.ForceOrigin || force

			ctx := cmd.Context()

			// An explicit `use master`/`use latest` always refetches the
			// index; a failure falls back to the cache inside Lookup.
			if spec.Kind == version.KindMaster || spec.Kind == version.KindLatest {
				if _, err := a.Cache.Refresh(ctx, true); err != nil {
					logger.Warn("%v", err)
				}
			}

			res, err := a.Resolver.Resolve(ctx, spec, resolver.InstallIfMissing)
			if err != nil {
				return err
			}

			unlock, err := a.Store.Lock(ctx)
			if err != nil {
				return err
			}
			defer unlock()

			if err := a.Store.SetActive(res.Toolchain.Version); err != nil {
				return err
			}
			logger.Success("now using zig %s", res.Toolchain.Version)
			return nil
		},
	}

	cmd.Flags().BoolP("force-ziglang", "f", false, "Download from ziglang.org only, bypassing mirrors")

	return cmd
}
