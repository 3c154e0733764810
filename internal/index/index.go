package index

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Index is the parsed form of the upstream download index. The on-disk cache
// keeps the upstream JSON verbatim; this structure is rebuilt from it on
// every load.
type Index struct {
	Releases map[string]Release

	// Stale marks a cache past its TTL, unreadable, or missing entirely.
	// A stale index is still usable; callers decide whether to refresh.
	Stale bool
	Empty bool
}

// Release is one version key of the index: its artifacts per target triple
// plus, for the master key, the embedded dev version string.
type Release struct {
	Version   string
	Artifacts map[string]Artifact
}

// Artifact describes one downloadable archive.
type Artifact struct {
	Tarball string   `json:"tarball"`
	Shasum  string   `json:"shasum"`
	Size    byteSize `json:"size"`
}

// Entry is the lookup result handed to the downloader. Unverified entries
// carry no digest and must pass minisign alone.
type Entry struct {
	Version    string // concrete: "0.13.0" or a dev string
	Tarball    string
	Shasum     string
	Size       int64
	Unverified bool
}

// byteSize tolerates the index serving sizes as JSON strings.
type byteSize int64

func (b *byteSize) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", s, err)
		}
		*b = byteSize(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = byteSize(n)
	return nil
}

// metadata keys that appear alongside target triples inside a release object
var nonTargetKeys = map[string]bool{
	"version":   true,
	"date":      true,
	"docs":      true,
	"stdDocs":   true,
	"notes":     true,
	"src":       true,
	"bootstrap": true,
}

func parse(data []byte) (*Index, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse index JSON: %w", err)
	}

	idx := &Index{Releases: make(map[string]Release, len(raw))}
	for key, fields := range raw {
		rel := Release{Artifacts: make(map[string]Artifact)}
		for name, val := range fields {
			if name == "version" {
				_ = json.Unmarshal(val, &rel.Version)
				continue
			}
			if nonTargetKeys[name] {
				continue
			}
			var a Artifact
			if err := json.Unmarshal(val, &a); err != nil || a.Tarball == "" {
				continue
			}
			rel.Artifacts[name] = a
		}
		idx.Releases[key] = rel
	}
	return idx, nil
}

// entryFor builds the downloader Entry for one release/triple pair.
func (idx *Index) entryFor(key, concrete, triple string) (Entry, bool) {
	rel, ok := idx.Releases[key]
	if !ok {
		return Entry{}, false
	}
	a, ok := rel.Artifacts[triple]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Version: concrete,
		Tarball: a.Tarball,
		Shasum:  a.Shasum,
		Size:    int64(a.Size),
	}, true
}
