package shim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/weezy20/zv/internal/app"
	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/resolver"
	"github.com/weezy20/zv/internal/version"
)

const (
	// recursionEnv guards against the shim resolving to itself (e.g. a
	// toolchain dir that somehow contains the shim binary).
	recursionEnv  = "ZV_RECURSION_COUNT"
	maxRecursion  = 10
	inlineTTL     = 24 * time.Hour
	zigVersionPin = ".zigversion"
)

// Run is the zig/zls front-end: pick a version spec (inline +token beats
// .zigversion beats the active pointer), resolve it, and hand the original
// argv to the real binary. Returns the process exit code.
func Run(ctx context.Context, tool string, argv []string) int {
	depth, _ := strconv.Atoi(os.Getenv(recursionEnv))
	if depth >= maxRecursion {
		logger.LogError("%s shim recursion limit reached; is the shim on PATH inside a toolchain?", tool)
		return 1
	}

	specStr, rest, inline := splitInline(argv)

	a, err := app.New()
	if err != nil {
		logger.LogError(err.Error())
		return 1
	}

	if specStr == "" {
		if pin, ok := discoverPin(workingDir()); ok {
			specStr = pin
		}
	}
	if specStr == "" {
		if active, ok := a.Store.Active(); ok {
			specStr = active.Value
			if active.Master {
				specStr = "master@" + active.Value
			}
		}
	}
	if specStr == "" {
		logger.LogError("no zig version selected: pass +<version>, add a %s file, or run `zv use <version>`", zigVersionPin)
		return 2
	}

	spec, err := version.Parse(specStr)
	if err != nil {
		logger.LogError(err.Error())
		return errs.ExitCode(err)
	}

	// Inline moving tags stay fresh on a one-day horizon regardless of the
	// configured index TTL.
	if inline && (spec.Kind == version.KindMaster || spec.Kind == version.KindLatest) {
		a.Resolver.Cache = a.Cache.WithTTL(inlineTTL)
	}

	res, err := a.Resolver.Resolve(ctx, spec, resolver.InstallIfMissing)
	if err != nil {
		logger.LogError("failed to resolve %s: %v", spec, err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}

	bin := res.Toolchain.Zig
	if tool == "zls" {
		if res.Toolchain.Zls == "" {
			logger.LogError("toolchain %s has no zls binary", res.Toolchain.Version)
			return 1
		}
		bin = res.Toolchain.Zls
	}

	env := append(os.Environ(), fmt.Sprintf("%s=%d", recursionEnv, depth+1))
	return execTool(bin, rest, env)
}

// splitInline strips a leading +version token: `zig +0.14.0 build` resolves
// 0.14.0 and forwards `build`. The token itself never reaches the compiler;
// everything else is forwarded byte for byte.
func splitInline(argv []string) (spec string, rest []string, inline bool) {
	rest = argv[1:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "+") {
		return rest[0][1:], rest[1:], true
	}
	return "", rest, false
}

func workingDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return dir
}
