package shim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/weezy20/zv/internal/logger"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func mkProject(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSplitInline(t *testing.T) {
	spec, rest, inline := splitInline([]string{"zig", "+0.14.0", "build", "test"})
	if !inline || spec != "0.14.0" {
		t.Fatalf("spec = %q, inline = %v", spec, inline)
	}
	if len(rest) != 2 || rest[0] != "build" || rest[1] != "test" {
		t.Errorf("rest = %v", rest)
	}
}

// Argv not starting with + passes through byte for byte.
func TestSplitInlineTransparent(t *testing.T) {
	argv := []string{"zig", "build", "-Doptimize=ReleaseSafe", "--", "+weird"}
	spec, rest, inline := splitInline(argv)
	if inline || spec != "" {
		t.Fatalf("unexpected inline parse: %q", spec)
	}
	if len(rest) != len(argv)-1 {
		t.Fatalf("rest = %v", rest)
	}
	for i, a := range argv[1:] {
		if rest[i] != a {
			t.Errorf("argv[%d] = %q, want %q", i, rest[i], a)
		}
	}
}

func TestSplitInlineNoArgs(t *testing.T) {
	spec, rest, inline := splitInline([]string{"zig"})
	if inline || spec != "" || len(rest) != 0 {
		t.Errorf("got %q, %v, %v", spec, rest, inline)
	}
}

func TestReadPinSkipsCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	mkProject(t, dir, map[string]string{
		".zigversion": "# toolchain pin\n\n  0.14  \n0.13.0\n",
	})
	spec, ok := readPin(filepath.Join(dir, ".zigversion"))
	if !ok || spec != "0.14" {
		t.Errorf("readPin = %q, %v", spec, ok)
	}
}

func TestReadPinBlankFileMeansNoPin(t *testing.T) {
	dir := t.TempDir()
	mkProject(t, dir, map[string]string{".zigversion": "\n# only comments\n"})
	if _, ok := readPin(filepath.Join(dir, ".zigversion")); ok {
		t.Error("blank pin file must read as no pin")
	}
	if _, ok := readPin(filepath.Join(dir, "missing")); ok {
		t.Error("missing pin file must read as no pin")
	}
}

// zig build from /p/sub finds /p/.zigversion via ascent.
func TestDiscoverPinAscends(t *testing.T) {
	root := t.TempDir()
	mkProject(t, root, map[string]string{
		"build.zig":        "",
		".zigversion":      "0.14\n",
		"sub/inner/.keep":  "",
	})

	spec, ok := discoverPin(filepath.Join(root, "sub", "inner"))
	if !ok || spec != "0.14" {
		t.Errorf("discoverPin = %q, %v", spec, ok)
	}
}

func TestDiscoverPinPrefersNearest(t *testing.T) {
	root := t.TempDir()
	mkProject(t, root, map[string]string{
		".zigversion":     "0.13.0\n",
		"sub/.zigversion": "0.14.0\n",
	})
	spec, ok := discoverPin(filepath.Join(root, "sub"))
	if !ok || spec != "0.14.0" {
		t.Errorf("discoverPin = %q, %v", spec, ok)
	}
}

// The walk must not escape a project: a build.zig directory whose parent has
// no build.zig is the boundary.
func TestDiscoverPinStopsAtProjectBoundary(t *testing.T) {
	root := t.TempDir()
	mkProject(t, root, map[string]string{
		".zigversion":           "0.12.0\n", // outside the project
		"proj/build.zig":        "",
		"proj/src/.keep":        "",
	})

	if spec, ok := discoverPin(filepath.Join(root, "proj", "src")); ok {
		t.Errorf("walk escaped the project and found %q", spec)
	}
}

func TestDiscoverPinInsideNestedBuildZig(t *testing.T) {
	root := t.TempDir()
	mkProject(t, root, map[string]string{
		"build.zig":           "",
		".zigversion":         "0.14\n",
		"nested/build.zig":    "",
		"nested/inner/.keep":  "",
	})

	// nested/ has build.zig but so does its parent; the walk continues up
	// and finds the pin at the workspace root.
	spec, ok := discoverPin(filepath.Join(root, "nested", "inner"))
	if !ok || spec != "0.14" {
		t.Errorf("discoverPin = %q, %v", spec, ok)
	}
}
