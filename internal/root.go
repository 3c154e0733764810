package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zv",
		Short: "Zig toolchain version manager",
		Long: `zv installs, verifies and switches between Zig toolchains.
Toolchains are downloaded from community mirrors or ziglang.org, checked
against the release index and the upstream minisign key, and kept in a
content-addressed store under ZV_DIR (default ~/.zv).`,
		Example: `  zv use 0.14.0
  zv install master
  zig +0.13.0 build test`,
		Run: func(cmd *cobra.Command, _ []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Printf("zv %s\n", Version)
				return
			}
			_ = cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolP("version", "v", false, "Print version information")

	RegisterSubCommands(cmd)

	return cmd
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
