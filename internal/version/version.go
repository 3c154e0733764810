package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/weezy20/zv/internal/errs"
)

// Kind discriminates the Spec sum type.
type Kind int

const (
	KindSemver Kind = iota
	KindMaster
	KindStable
	KindLatest
	KindMasterPinned
)

// Spec is a parsed user-supplied version descriptor. For KindSemver the
// original literal is preserved so diagnostics can echo exactly what the user
// typed; the missing patch is only filled in at resolution time.
type Spec struct {
	Kind Kind

	raw string

	Major    int
	Minor    int
	Patch    int
	HasMinor bool
	HasPatch bool
	Pre      string // optional pre-release suffix, e.g. "rc1" in 0.14.0-rc1

	Dev string // KindMasterPinned: the full dev string
}

var semverPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-([0-9A-Za-z][0-9A-Za-z.+-]*))?$`)

// Parse turns a spec string into a Spec. Grammar: the keywords master,
// stable, latest; master@<dev> for a pinned nightly; N, N.M or N.M.P with an
// optional pre-release suffix. Anything else is a BadVersionSpec.
func Parse(s string) (Spec, error) {
	trimmed := strings.TrimSpace(s)
	switch trimmed {
	case "":
		return Spec{}, errs.BadSpec(s)
	case "master":
		return Spec{Kind: KindMaster, raw: trimmed}, nil
	case "stable":
		return Spec{Kind: KindStable, raw: trimmed}, nil
	case "latest":
		return Spec{Kind: KindLatest, raw: trimmed}, nil
	}

	if dev, ok := strings.CutPrefix(trimmed, "master@"); ok {
		if dev == "" || !strings.Contains(dev, "-dev.") {
			return Spec{}, errs.BadSpec(s)
		}
		return Spec{Kind: KindMasterPinned, raw: trimmed, Dev: dev}, nil
	}

	m := semverPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Spec{}, errs.BadSpec(s)
	}

	spec := Spec{Kind: KindSemver, raw: trimmed}
	spec.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		spec.Minor, _ = strconv.Atoi(m[2])
		spec.HasMinor = true
	}
	if m[3] != "" {
		spec.Patch, _ = strconv.Atoi(m[3])
		spec.HasPatch = true
	}
	spec.Pre = m[4]
	return spec, nil
}

// String returns the literal the spec was parsed from, so that
// Parse(s).String() round-trips.
func (s Spec) String() string { return s.raw }

// Normalized returns the concrete M.m.p form a semver spec resolves to, with
// the missing minor/patch auto-filled as zero. For keyword specs it returns
// the keyword itself; resolution against the index happens elsewhere.
func (s Spec) Normalized() string {
	if s.Kind != KindSemver {
		return s.raw
	}
	v := fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
	if s.Pre != "" {
		v += "-" + s.Pre
	}
	return v
}

// Resolved is a concrete, installable version: either a released semver value
// like "0.13.0" or a nightly identified by its full dev string.
type Resolved struct {
	Master bool
	Value  string
}

// ResolvedSemver builds a Resolved for a released version string.
func ResolvedSemver(v string) Resolved { return Resolved{Value: v} }

// ResolvedMaster builds a Resolved for a nightly dev string.
func ResolvedMaster(dev string) Resolved { return Resolved{Master: true, Value: dev} }

func (r Resolved) String() string { return r.Value }

// ActiveKind is the discriminator persisted in active.json.
func (r Resolved) ActiveKind() string {
	if r.Master {
		return "master"
	}
	return "semver"
}

// CompareRelease orders two released M.m.p[-pre] strings. A version with a
// pre-release suffix sorts below its release, matching semver.
func CompareRelease(a, b string) int {
	pa, okA := splitRelease(a)
	pb, okB := splitRelease(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	for i := 0; i < 3; i++ {
		if pa.nums[i] != pb.nums[i] {
			if pa.nums[i] < pb.nums[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case pa.pre == pb.pre:
		return 0
	case pa.pre == "":
		return 1
	case pb.pre == "":
		return -1
	default:
		return strings.Compare(pa.pre, pb.pre)
	}
}

type releaseParts struct {
	nums [3]int
	pre  string
}

func splitRelease(v string) (releaseParts, bool) {
	var p releaseParts
	core := v
	if i := strings.IndexByte(v, '-'); i >= 0 {
		core, p.pre = v[:i], v[i+1:]
	}
	fields := strings.Split(core, ".")
	if len(fields) != 3 {
		return p, false
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return p, false
		}
		p.nums[i] = n
	}
	return p, true
}

// IsDevString reports whether v looks like a nightly build identifier.
func IsDevString(v string) bool {
	return strings.Contains(v, "-dev.")
}
