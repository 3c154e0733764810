package version

import (
	"errors"
	"testing"

	"github.com/weezy20/zv/internal/errs"
)

func TestParseKeywords(t *testing.T) {
	cases := map[string]Kind{
		"master": KindMaster,
		"stable": KindStable,
		"latest": KindLatest,
	}
	for in, want := range cases {
		spec, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if spec.Kind != want {
			t.Errorf("Parse(%q): kind %v, want %v", in, spec.Kind, want)
		}
	}
}

func TestParseSemver(t *testing.T) {
	spec, err := Parse("0.14")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Kind != KindSemver || spec.Major != 0 || spec.Minor != 14 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if spec.HasPatch {
		t.Error("patch should not be set for 0.14")
	}
	if got := spec.Normalized(); got != "0.14.0" {
		t.Errorf("Normalized() = %q, want 0.14.0", got)
	}
}

func TestParsePreRelease(t *testing.T) {
	spec, err := Parse("0.14.0-rc1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Pre != "rc1" {
		t.Errorf("Pre = %q, want rc1", spec.Pre)
	}
	if got := spec.Normalized(); got != "0.14.0-rc1" {
		t.Errorf("Normalized() = %q", got)
	}
}

func TestParseMasterPinned(t *testing.T) {
	spec, err := Parse("master@0.16.0-dev.565+f50c64797")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Kind != KindMasterPinned {
		t.Fatalf("kind = %v, want KindMasterPinned", spec.Kind)
	}
	if spec.Dev != "0.16.0-dev.565+f50c64797" {
		t.Errorf("Dev = %q", spec.Dev)
	}
}

// Parse(s).String() must return the exact literal so re-parsing it is the
// identity.
func TestDisplayRoundTrip(t *testing.T) {
	for _, in := range []string{
		"master", "stable", "latest",
		"0", "1", "0.13", "0.13.0", "0.14.0-rc1",
		"master@0.16.0-dev.565+f50c64797",
	} {
		spec, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if spec.String() != in {
			t.Errorf("String() = %q, want %q", spec.String(), in)
		}
		again, err := Parse(spec.String())
		if err != nil {
			t.Fatalf("re-Parse(%q): %v", spec.String(), err)
		}
		if again != spec {
			t.Errorf("round-trip mismatch for %q: %+v vs %+v", in, again, spec)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "banana", "v0.13.0", "0.13.0.1", "master@", "master@nightly", "..", "1.2.3.4"} {
		if _, err := Parse(in); !errors.Is(err, errs.ErrBadVersionSpec) {
			t.Errorf("Parse(%q): expected ErrBadVersionSpec, got %v", in, err)
		}
	}
}

func TestCompareRelease(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"0.13.0", "0.14.0", -1},
		{"0.14.1", "0.14.0", 1},
		{"0.14.0", "0.14.0", 0},
		{"1.0.0", "0.99.9", 1},
		{"0.14.0-rc1", "0.14.0", -1},
	}
	for _, c := range cases {
		if got := CompareRelease(c.a, c.b); got != c.want {
			t.Errorf("CompareRelease(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestResolvedActiveKind(t *testing.T) {
	if ResolvedSemver("0.13.0").ActiveKind() != "semver" {
		t.Error("semver kind")
	}
	if ResolvedMaster("0.16.0-dev.565+f50c64797").ActiveKind() != "master" {
		t.Error("master kind")
	}
}
