package internal

import (
	"github.com/spf13/cobra"
)

type commandFactory func() *cobra.Command

var defaultCommands = []commandFactory{
	NewUseCmd,
	NewInstallCmd,
	NewListCmd,
	NewCleanCmd,
	NewSyncCmd,
}

func RegisterSubCommands(cmd *cobra.Command) {
	for _, factory := range defaultCommands {
		cmd.AddCommand(factory())
	}
}
