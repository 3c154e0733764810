package internal

import (
	"fmt"
	"strings"

	"github.com/weezy20/zv/internal/app"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/resolver"
	"github.com/weezy20/zv/internal/version"

	"github.com/spf13/cobra"
)

func NewInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install <version>[,<version>...]",
		Aliases: []string{"i"},
		Short:   "Install one or more toolchains without activating them",
		Long: `Installs toolchains into the store. The active version is left alone;
use ` + "`zv use`" + ` to switch.

A batch continues past per-item failures and reports a summary:
    zv install 0.13,0.14,master`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New()
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force-ziglang")
			a.Resolver.ForceOrigin = a.Resolver.ForceOrigin || force

			var specs []string
			for _, arg := range args {
				for _, part := range strings.Split(arg, ",") {
					if part = strings.TrimSpace(part); part != "" {
						specs = append(specs, part)
					}
				}
			}

			var failed []string
			for _, raw := range specs {
				spec, err := version.Parse(raw)
				if err == nil {
					_, err = a.Resolver.Resolve(cmd.Context(), spec, resolver.InstallIfMissing)
				}
				if err != nil {
					logger.LogError("install %s: %v", raw, err)
					failed = append(failed, raw)
					continue
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d installs failed: %s",
					len(failed), len(specs), strings.Join(failed, ", "))
			}
			if len(specs) > 1 {
				logger.Success("installed %d toolchains", len(specs))
			}
			return nil
		},
	}

	cmd.Flags().BoolP("force-ziglang", "f", false, "Download from ziglang.org only, bypassing mirrors")

	return cmd
}
