//go:build windows

package shim

import (
	"os"
	"os/exec"

	"github.com/weezy20/zv/internal/logger"
)

// execTool spawns the real binary and waits, propagating the child's exit
// code exactly. Windows has no process replacement.
func execTool(bin string, args []string, env []string) int {
	cmd := exec.Command(bin, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		logger.LogError("failed to run %s: %v", bin, err)
		return 1
	}
	return 0
}
