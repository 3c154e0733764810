package mirrors

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/service"
	"github.com/weezy20/zv/internal/utils"

	"github.com/pelletier/go-toml/v2"
)

const (
	// CommunityMirrorsURL lists one mirror base URL per line.
	CommunityMirrorsURL = "https://ziglang.org/download/community-mirrors.txt"

	// RegistryFile is the persisted registry inside the store root.
	RegistryFile = "mirrors.toml"

	// demoteAfter is the consecutive-failure count at which a mirror drops
	// to the minimum selection weight until its next success.
	demoteAfter = 3

	maxMirrorsBytes = 1 << 20
)

// Mirror is one community mirror with its user-editable rank and the
// failure bookkeeping mutated on every fetch outcome.
type Mirror struct {
	URL         string     `toml:"url"`
	Rank        int        `toml:"rank"`
	Failures    int        `toml:"failures"`
	LastSuccess *time.Time `toml:"last_success,omitempty"`
	LastFailure *time.Time `toml:"last_failure,omitempty"`

	// Retired marks a mirror that dropped out of community-mirrors.txt on
	// the latest resync. It is kept so rank edits survive, but never
	// selected.
	Retired bool `toml:"retired,omitempty"`
}

func (m *Mirror) weight() int {
	if m.Failures >= demoteAfter {
		return 1
	}
	w := 256 - m.Rank
	if w < 1 {
		w = 1
	}
	return w
}

type registryFile struct {
	LastSynced time.Time `toml:"last_synced"`
	Mirrors    []*Mirror `toml:"mirrors"`
}

// Registry is the persistent mirror list. It is not safe for concurrent use;
// the store lock serializes mutators across processes.
type Registry struct {
	path       string
	LastSynced time.Time
	Mirrors    []*Mirror

	rng *rand.Rand
}

// Load reads mirrors.toml, returning an empty registry when the file does
// not exist yet.
func Load(dir string) (*Registry, error) {
	r := &Registry{path: filepath.Join(dir, RegistryFile)}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	var f registryFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.path, err)
	}
	r.LastSynced = f.LastSynced
	r.Mirrors = f.Mirrors
	for _, m := range r.Mirrors {
		if m.Rank < 1 {
			m.Rank = 1
		}
	}
	return r, nil
}

// SaveAtomic persists the registry with a tempfile + rename so a crash never
// leaves a torn file.
func (r *Registry) SaveAtomic() error {
	data, err := toml.Marshal(registryFile{LastSynced: r.LastSynced, Mirrors: r.Mirrors})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	return utils.WriteBytesAtomic(r.path, data)
}

// Stale reports whether the registry should be resynced. A never-synced
// registry always is; a recently-synced one is not, even when the upstream
// list came back empty.
func (r *Registry) Stale(ttl time.Duration) bool {
	if r.LastSynced.IsZero() {
		return true
	}
	return ttl <= 0 || time.Since(r.LastSynced) > ttl
}

// SelectCandidates samples up to n live mirrors without replacement.
// Selection is weighted by max(1, 256-rank) so user ranking has strong but
// non-absolute influence; mirrors at demoteAfter consecutive failures drop
// to weight 1 and are only offered after every healthier mirror.
func (r *Registry) SelectCandidates(n int) []*Mirror {
	var healthy, demoted []*Mirror
	for _, m := range r.Mirrors {
		if m.Retired {
			continue
		}
		if m.Failures >= demoteAfter {
			demoted = append(demoted, m)
		} else {
			healthy = append(healthy, m)
		}
	}

	out := r.sampleWeighted(healthy, n)
	if len(out) < n {
		out = append(out, r.sampleWeighted(demoted, n-len(out))...)
	}
	return out
}

func (r *Registry) sampleWeighted(pool []*Mirror, n int) []*Mirror {
	pool = append([]*Mirror(nil), pool...)
	var out []*Mirror
	for len(out) < n && len(pool) > 0 {
		total := 0
		for _, m := range pool {
			total += m.weight()
		}
		pick := r.intn(total)
		for i, m := range pool {
			pick -= m.weight()
			if pick < 0 {
				out = append(out, m)
				pool = append(pool[:i], pool[i+1:]...)
				break
			}
		}
	}
	return out
}

func (r *Registry) intn(n int) int {
	if r.rng != nil {
		return r.rng.Intn(n)
	}
	return rand.Intn(n)
}

// RecordSuccess resets the failure counter for url.
func (r *Registry) RecordSuccess(url string) {
	if m := r.find(url); m != nil {
		now := time.Now().UTC()
		m.Failures = 0
		m.LastSuccess = &now
	}
}

// RecordFailure bumps the failure counter for url.
func (r *Registry) RecordFailure(url string) {
	if m := r.find(url); m != nil {
		now := time.Now().UTC()
		m.Failures++
		m.LastFailure = &now
	}
}

func (r *Registry) find(url string) *Mirror {
	for _, m := range r.Mirrors {
		if m.URL == url {
			return m
		}
	}
	return nil
}

// Resync fetches community-mirrors.txt and merges it into the registry: new
// mirrors enter at rank 1 with a clean slate, known mirrors keep their rank
// and counters, and mirrors absent from the new list are retired rather than
// dropped so the user's rank edits survive.
func (r *Registry) Resync(ctx context.Context, client service.HTTPClient, srcURL string) error {
	if srcURL == "" {
		srcURL = CommunityMirrorsURL
	}
	data, err := service.FetchBytes(ctx, client, srcURL, maxMirrorsBytes)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrMirrorsFetch, srcURL, err)
	}

	fresh := make(map[string]bool)
	var order []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := normalizeURL(line)
		if err != nil {
			logger.Warn("skipping malformed mirror %q: %v", line, err)
			continue
		}
		if !fresh[u] {
			fresh[u] = true
			order = append(order, u)
		}
	}

	known := make(map[string]*Mirror, len(r.Mirrors))
	for _, m := range r.Mirrors {
		known[m.URL] = m
	}

	var merged []*Mirror
	for _, u := range order {
		if m, ok := known[u]; ok {
			m.Retired = false
			merged = append(merged, m)
			delete(known, u)
			continue
		}
		merged = append(merged, &Mirror{URL: u, Rank: 1})
	}
	for _, m := range r.Mirrors {
		if _, gone := known[m.URL]; gone {
			m.Retired = true
			merged = append(merged, m)
		}
	}

	r.Mirrors = merged
	r.LastSynced = time.Now().UTC()
	return nil
}

// normalizeURL defaults the scheme to https and rejects anything that is not
// plain http(s).
func normalizeURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// WithRand pins the sampling source; tests use it for determinism.
func (r *Registry) WithRand(rng *rand.Rand) *Registry {
	r.rng = rng
	return r
}
