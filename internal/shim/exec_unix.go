//go:build !windows

package shim

import (
	"syscall"

	"github.com/weezy20/zv/internal/logger"
)

// execTool replaces the shim process with the real binary so signals, ttys
// and exit codes behave exactly as if the compiler had been run directly.
func execTool(bin string, args []string, env []string) int {
	argv := append([]string{bin}, args...)
	if err := syscall.Exec(bin, argv, env); err != nil {
		logger.LogError("failed to exec %s: %v", bin, err)
		return 1
	}
	// unreachable: Exec does not return on success
	return 0
}
