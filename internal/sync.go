package internal

import (
	"github.com/weezy20/zv/internal/app"
	"github.com/weezy20/zv/internal/logger"

	"github.com/spf13/cobra"
)

func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Force-refresh the download index and the mirror list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			idx, err := a.Cache.Refresh(ctx, true)
			if err != nil {
				return err
			}
			logger.Success("index refreshed: %d releases", len(idx.Releases))

			if err := a.Registry.Resync(ctx, a.Client, ""); err != nil {
				return err
			}
			if err := a.Registry.SaveAtomic(); err != nil {
				return err
			}
			live := 0
			for _, m := range a.Registry.Mirrors {
				if !m.Retired {
					live++
				}
			}
			logger.Success("mirror list synced: %d mirrors", live)
			return nil
		},
	}
}
