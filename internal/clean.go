package internal

import (
	"fmt"
	"strings"

	"github.com/weezy20/zv/internal/app"
	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/version"

	"github.com/spf13/cobra"
)

func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clean [<version>|all]",
		Aliases: []string{"rm"},
		Short:   "Remove installed toolchains",
		Long: `Removes toolchains from the store. Removing the active version clears the
active pointer without switching to another install.

Examples:
    zv clean 0.13.0                  # remove one version
    zv clean master@0.16.0-dev.565+f50c64797
    zv clean all                     # remove everything
    zv clean --except 0.14.0,master  # keep only the listed versions
    zv clean --outdated              # drop nightlies behind the index master`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exceptList, _ := cmd.Flags().GetString("except")
			outdated, _ := cmd.Flags().GetBool("outdated")

			modes := 0
			if len(args) > 0 {
				modes++
			}
			if exceptList != "" {
				modes++
			}
			if outdated {
				modes++
			}
			if modes != 1 {
				return fmt.Errorf("%w: pass exactly one of <version>, all, --except or --outdated", errs.ErrBadVersionSpec)
			}

			a, err := app.New()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			unlock, err := a.Store.Lock(ctx)
			if err != nil {
				return err
			}
			defer unlock()

			a.Store.SweepOrphans()

			switch {
			case outdated:
				entry, _, err := a.Cache.Lookup(ctx, mustParse("master"), a.Plat.Triple())
				if err != nil {
					return err
				}
				return a.Store.RemoveMasterOutdated(entry.Version)

			case exceptList != "":
				keep := make(map[string]bool)
				for _, raw := range strings.Split(exceptList, ",") {
					rv, err := resolveRemovalTarget(a, strings.TrimSpace(raw))
					if err != nil {
						return err
					}
					keep[rv.Value] = true
				}
				return a.Store.RemoveExcept(keep)

			case args[0] == "all":
				return a.Store.RemoveExcept(map[string]bool{})

			default:
				rv, err := resolveRemovalTarget(a, args[0])
				if err != nil {
					return err
				}
				if err := a.Store.Remove(rv); err != nil {
					return err
				}
				logger.Success("removed zig %s", rv)
				return nil
			}
		},
	}

	cmd.Flags().String("except", "", "Comma-separated versions to keep; everything else is removed")
	cmd.Flags().Bool("outdated", false, "Remove master builds not matching the current index master")

	return cmd
}

// resolveRemovalTarget maps a spec string onto an installed toolchain's
// resolved value without touching the network: the store is the source of
// truth for what can be removed.
func resolveRemovalTarget(a *app.App, raw string) (version.Resolved, error) {
	spec, err := version.Parse(raw)
	if err != nil {
		// Bare dev strings are accepted as a convenience for nightlies.
		if version.IsDevString(raw) {
			return version.ResolvedMaster(raw), nil
		}
		return version.Resolved{}, err
	}

	switch spec.Kind {
	case version.KindSemver:
		return version.ResolvedSemver(spec.Normalized()), nil
	case version.KindMasterPinned:
		return version.ResolvedMaster(spec.Dev), nil
	case version.KindMaster:
		// The moving tag maps onto whichever nightlies are installed; with
		// several, require the pinned form.
		chains, _, err := a.Store.Scan()
		if err != nil {
			return version.Resolved{}, err
		}
		var masters []version.Resolved
		for _, tc := range chains {
			if tc.Version.Master {
				masters = append(masters, tc.Version)
			}
		}
		switch len(masters) {
		case 0:
			return version.Resolved{}, fmt.Errorf("%w: no master toolchain installed", errs.ErrUnknownVersion)
		case 1:
			return masters[0], nil
		default:
			return version.Resolved{}, fmt.Errorf("%w: several master builds installed; use master@<dev> or --outdated", errs.ErrBadVersionSpec)
		}
	default:
		return version.Resolved{}, fmt.Errorf("%w: %s does not name an installed toolchain", errs.ErrBadVersionSpec, raw)
	}
}

func mustParse(s string) version.Spec {
	spec, err := version.Parse(s)
	if err != nil {
		panic(err)
	}
	return spec
}
