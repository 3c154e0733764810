package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	cmd "github.com/weezy20/zv/internal"
	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/shim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// The same binary is installed as `zv`, `zig` and `zls`. When invoked
	// through one of the shim names, skip the CLI entirely and dispatch to
	// the wrapped toolchain.
	tool := strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe")
	switch tool {
	case "zig", "zls":
		os.Exit(shim.Run(ctx, tool, os.Args))
	}

	if err := cmd.Execute(ctx); err != nil {
		logger.LogError(err.Error())
		os.Exit(errs.ExitCode(err))
	}
}
