package shim

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/weezy20/zv/internal/utils"
)

// discoverPin ascends from dir looking for a .zigversion file. The walk
// stops at the filesystem root, or once it leaves the project: a directory
// holding build.zig whose parent holds none is the project boundary.
func discoverPin(dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	dir = filepath.Clean(dir)

	for {
		if spec, ok := readPin(filepath.Join(dir, zigVersionPin)); ok {
			return spec, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		if hasBuildZig(dir) && !hasBuildZig(parent) {
			return "", false
		}
		dir = parent
	}
}

// readPin returns the first non-empty, non-comment line of a .zigversion
// file. A blank or unreadable file means "no pin", never an error.
func readPin(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer utils.Close(f)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

func hasBuildZig(dir string) bool {
	ok, err := utils.FileExists(filepath.Join(dir, "build.zig"))
	return err == nil && ok
}
