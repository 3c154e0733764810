package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/service"
	"github.com/weezy20/zv/internal/utils"
	"github.com/weezy20/zv/internal/version"
)

const (
	// DownloadIndexURL is the canonical upstream index.
	DownloadIndexURL = "https://ziglang.org/download/index.json"

	// CacheFile is the on-disk mirror of the upstream index, kept verbatim.
	CacheFile = "index.json"

	maxIndexBytes = 8 << 20
)

// Cache is the TTL-governed on-disk mirror of the download index.
type Cache struct {
	path   string
	client service.HTTPClient
	ttl    time.Duration
	url    string
}

func NewCache(dir string, client service.HTTPClient, ttl time.Duration) *Cache {
	return &Cache{
		path:   filepath.Join(dir, CacheFile),
		client: client,
		ttl:    ttl,
		url:    DownloadIndexURL,
	}
}

// WithTTL returns a view of the cache with a different effective TTL. The
// shim uses this to keep inline +master/+latest fresh on a 1-day horizon
// without touching the user's configuration.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	cc := *c
	cc.ttl = ttl
	return &cc
}

// WithURL overrides the upstream endpoint; tests point it at a local server.
func (c *Cache) WithURL(url string) *Cache {
	cc := *c
	cc.url = url
	return &cc
}

// Load reads the cached index. It never fails the caller: a missing file, a
// parse error, or an expired TTL all come back as a stale (possibly empty)
// index plus at most a warning.
func (c *Cache) Load() *Index {
	info, err := os.Stat(c.path)
	if err != nil {
		return &Index{Releases: map[string]Release{}, Stale: true, Empty: true}
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		logger.Warn("unreadable index cache %s: %v", c.path, err)
		return &Index{Releases: map[string]Release{}, Stale: true, Empty: true}
	}

	idx, err := parse(data)
	if err != nil {
		logger.Warn("corrupt index cache %s: %v", c.path, err)
		return &Index{Releases: map[string]Release{}, Stale: true, Empty: true}
	}

	// TTL of zero means every call refreshes.
	if c.ttl <= 0 || time.Since(info.ModTime()) > c.ttl {
		idx.Stale = true
	}
	return idx
}

// Refresh fetches the upstream index and atomically replaces the cache.
// Without force, a fresh cache short-circuits to the local copy. On any
// failure the prior cache is preserved untouched.
func (c *Cache) Refresh(ctx context.Context, force bool) (*Index, error) {
	if !force {
		if idx := c.Load(); !idx.Stale {
			return idx, nil
		}
	}

	data, err := service.FetchBytes(ctx, c.client, c.url, maxIndexBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrIndexFetch, c.url, err)
	}

	idx, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s served malformed JSON: %v", errs.ErrIndexFetch, c.url, err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return nil, err
	}
	if err := utils.WriteBytesAtomic(c.path, data); err != nil {
		return nil, err
	}
	logger.Debug("index cache refreshed from %s (%d releases)", c.url, len(idx.Releases))
	return idx, nil
}

// Lookup resolves a spec against the index, applying the refresh policy:
// Latest refreshes first; Master and Stable refresh only when the cache is
// stale; an exact-semver miss against a stale cache triggers one forced
// refresh before UnknownVersion is reported.
func (c *Cache) Lookup(ctx context.Context, spec version.Spec, triple string) (Entry, version.Resolved, error) {
	switch spec.Kind {
	case version.KindLatest:
		idx, err := c.Refresh(ctx, false)
		if err != nil {
			idx = c.Load()
			if idx.Empty {
				return Entry{}, version.Resolved{}, err
			}
			logger.Warn("using cached index, refresh failed: %v", err)
		}
		return lookupStable(idx, triple)

	case version.KindStable:
		idx := c.Load()
		if idx.Stale {
			if fresh, err := c.Refresh(ctx, false); err == nil {
				idx = fresh
			} else if idx.Empty {
				return Entry{}, version.Resolved{}, err
			}
		}
		return lookupStable(idx, triple)

	case version.KindMaster:
		idx := c.Load()
		if idx.Stale {
			if fresh, err := c.Refresh(ctx, false); err == nil {
				idx = fresh
			} else if idx.Empty {
				return Entry{}, version.Resolved{}, err
			}
		}
		return lookupMaster(idx, triple)

	case version.KindSemver:
		want := spec.Normalized()
		idx := c.Load()
		if e, ok := idx.entryFor(want, want, triple); ok {
			return e, version.ResolvedSemver(want), nil
		}
		if idx.Stale {
			fresh, err := c.Refresh(ctx, true)
			if err != nil {
				if idx.Empty {
					return Entry{}, version.Resolved{}, err
				}
			} else if e, ok := fresh.entryFor(want, want, triple); ok {
				return e, version.ResolvedSemver(want), nil
			}
		}
		// Pre-releases drop out of the index once the release lands, but the
		// community mirrors keep serving them. Hand those to the downloader
		// with no digest; minisign alone gates acceptance.
		if spec.Pre != "" {
			return sentinelEntry(want, triple), version.ResolvedSemver(want), nil
		}
		return Entry{}, version.Resolved{}, errs.Unknown(want)

	case version.KindMasterPinned:
		// Pinned nightlies are only resolvable against what is already
		// installed; the index carries a single master entry.
		return Entry{}, version.Resolved{}, errs.Unknown(spec.String())
	}
	return Entry{}, version.Resolved{}, errs.BadSpec(spec.String())
}

func lookupMaster(idx *Index, triple string) (Entry, version.Resolved, error) {
	rel, ok := idx.Releases["master"]
	if !ok || rel.Version == "" {
		return Entry{}, version.Resolved{}, errs.Unknown("master")
	}
	e, ok := idx.entryFor("master", rel.Version, triple)
	if !ok {
		return Entry{}, version.Resolved{}, fmt.Errorf("%w: master has no artifact for %s", errs.ErrUnknownVersion, triple)
	}
	return e, version.ResolvedMaster(rel.Version), nil
}

// lookupStable picks the highest released semver key in the index.
func lookupStable(idx *Index, triple string) (Entry, version.Resolved, error) {
	best := ""
	for key := range idx.Releases {
		if key == "master" || version.IsDevString(key) {
			continue
		}
		if best == "" || version.CompareRelease(key, best) > 0 {
			best = key
		}
	}
	if best == "" {
		return Entry{}, version.Resolved{}, errs.Unknown("stable")
	}
	e, ok := idx.entryFor(best, best, triple)
	if !ok {
		return Entry{}, version.Resolved{}, fmt.Errorf("%w: %s has no artifact for %s", errs.ErrUnknownVersion, best, triple)
	}
	return e, version.ResolvedSemver(best), nil
}

func sentinelEntry(concrete, triple string) Entry {
	ext := "tar.xz"
	if strings.HasSuffix(triple, "-windows") {
		ext = "zip"
	}
	return Entry{
		Version:    concrete,
		Tarball:    fmt.Sprintf("https://ziglang.org/download/%s/zig-%s-%s.%s", concrete, triple, concrete, ext),
		Unverified: true,
	}
}
