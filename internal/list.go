package internal

import (
	"sort"

	"github.com/weezy20/zv/internal/app"
	"github.com/weezy20/zv/internal/logger"

	"github.com/spf13/cobra"
)

func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed toolchains",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New()
			if err != nil {
				return err
			}

			// Read-only: no lock, tolerate concurrent mutation.
			chains, broken, err := a.Store.Scan()
			if err != nil {
				return err
			}
			for _, name := range broken {
				logger.Warn("broken install %s: missing zig binary", name)
			}
			if len(chains) == 0 {
				logger.Info("no toolchains installed; try `zv use stable`")
				return nil
			}

			sort.Slice(chains, func(i, j int) bool {
				return chains[i].Version.Value < chains[j].Version.Value
			})

			active, hasActive := a.Store.Active()

			table := logger.CreateTable([]string{"Version", "Kind", "ZLS", "Installed", "Active"})
			for _, tc := range chains {
				kind := "release"
				if tc.Version.Master {
					kind = "master"
				}
				zls := "-"
				if tc.Zls != "" {
					zls = "yes"
				}
				mark := ""
				if hasActive && tc.Version == active {
					mark = "*"
				}
				_ = table.Append([]string{
					tc.Version.Value,
					kind,
					zls,
					tc.InstalledAt.Format("2006-01-02"),
					mark,
				})
			}
			return table.Render()
		},
	}
}
