package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/platform"
	"github.com/weezy20/zv/internal/utils"
	"github.com/weezy20/zv/internal/version"
)

const (
	activeFile = "active.json"

	// orphanAge is how old a scratch file must be before SweepOrphans
	// removes it; a concurrent install's live temp files stay untouched.
	orphanAge = 24 * time.Hour
)

// Toolchain is one installed Zig toolchain rooted in the store.
type Toolchain struct {
	Version     version.Resolved
	Root        string
	Zig         string
	Zls         string // empty when the toolchain ships without zls
	InstalledAt time.Time
}

// Store is the content-addressed on-disk toolchain store under ZV_DIR.
// Everything is reconcilable from disk alone; active.json is a hint.
type Store struct {
	dir  string
	plat platform.Descriptor
}

// Open prepares the store layout under dir.
func Open(dir string, plat platform.Descriptor) (*Store, error) {
	s := &Store{dir: dir, plat: plat}
	for _, sub := range []string{s.VersionsDir(), s.MasterDir(), s.DownloadsDir(), s.BinDir()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	return s, nil
}

func (s *Store) Dir() string          { return s.dir }
func (s *Store) VersionsDir() string  { return filepath.Join(s.dir, "versions") }
func (s *Store) MasterDir() string    { return filepath.Join(s.dir, "master") }
func (s *Store) DownloadsDir() string { return filepath.Join(s.dir, "downloads") }
func (s *Store) BinDir() string       { return filepath.Join(s.dir, "bin") }

// InstallDirFor is the final content-addressed directory for a version.
func (s *Store) InstallDirFor(rv version.Resolved) string {
	if rv.Master {
		return filepath.Join(s.MasterDir(), rv.Value)
	}
	return filepath.Join(s.VersionsDir(), rv.Value)
}

// TempInstallDir creates a scratch extraction directory that a successful
// install renames over InstallDirFor. It lives in the same parent so the
// rename stays on one filesystem.
func (s *Store) TempInstallDir(rv version.Resolved) (string, error) {
	parent := filepath.Dir(s.InstallDirFor(rv))
	return os.MkdirTemp(parent, "tmp-")
}

// Scan enumerates every installed toolchain, plus the names of entries whose
// zig binary is missing or not executable (reported, never returned).
func (s *Store) Scan() (chains []Toolchain, broken []string, err error) {
	for _, scan := range []struct {
		dir    string
		master bool
	}{
		{s.VersionsDir(), false},
		{s.MasterDir(), true},
	} {
		entries, err := os.ReadDir(scan.dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, err
		}
		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() || strings.HasPrefix(name, "tmp-") || name == "current" {
				continue
			}
			rv := version.Resolved{Master: scan.master, Value: name}
			tc, ok := s.inspect(rv)
			if !ok {
				broken = append(broken, name)
				continue
			}
			chains = append(chains, tc)
		}
	}
	return chains, broken, nil
}

// Find returns the installed toolchain for rv, if any.
func (s *Store) Find(rv version.Resolved) (Toolchain, bool) {
	return s.inspect(rv)
}

func (s *Store) inspect(rv version.Resolved) (Toolchain, bool) {
	root := s.InstallDirFor(rv)
	zig := filepath.Join(root, "zig"+s.plat.ExeSuffix())
	info, err := os.Stat(zig)
	if err != nil || info.IsDir() {
		return Toolchain{}, false
	}
	if !s.plat.IsWindows() && info.Mode()&0o111 == 0 {
		return Toolchain{}, false
	}

	tc := Toolchain{
		Version:     rv,
		Root:        root,
		Zig:         zig,
		InstalledAt: info.ModTime(),
	}
	zls := filepath.Join(root, "zls"+s.plat.ExeSuffix())
	if zi, err := os.Stat(zls); err == nil && !zi.IsDir() {
		tc.Zls = zls
	}
	return tc, true
}

type activeState struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Active reads the active-version hint. A pointer at a toolchain that is no
// longer installed yields a warning and no active version.
func (s *Store) Active() (version.Resolved, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, activeFile))
	if err != nil {
		return version.Resolved{}, false
	}
	var a activeState
	if err := json.Unmarshal(data, &a); err != nil {
		logger.Warn("corrupt %s: %v", activeFile, err)
		return version.Resolved{}, false
	}
	rv := version.Resolved{Master: a.Kind == "master", Value: a.Value}
	if _, ok := s.Find(rv); !ok {
		logger.Warn("active version %s is not installed; ignoring %s", rv, activeFile)
		return version.Resolved{}, false
	}
	return rv, true
}

// SetActive atomically rewrites active.json and, for master builds, the
// master/current pointer.
func (s *Store) SetActive(rv version.Resolved) error {
	a := activeState{Kind: rv.ActiveKind(), Value: rv.Value}
	if err := utils.WriteJSONAtomic(filepath.Join(s.dir, activeFile), a); err != nil {
		return err
	}
	if rv.Master {
		return s.setCurrentMaster(rv.Value)
	}
	return nil
}

// ClearActive removes the hint entirely.
func (s *Store) ClearActive() error {
	err := os.Remove(filepath.Join(s.dir, activeFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// setCurrentMaster points master/current at the named nightly: a symlink
// where the platform has them, a pointer file on Windows.
func (s *Store) setCurrentMaster(dev string) error {
	link := filepath.Join(s.MasterDir(), "current")
	if s.plat.IsWindows() {
		return utils.WriteBytesAtomic(link, []byte(dev+"\n"))
	}
	tmp := link + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(dev, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, link)
}

// Remove deletes a toolchain. Removing the active version clears the hint
// without switching to another install.
func (s *Store) Remove(rv version.Resolved) error {
	if _, ok := s.Find(rv); !ok {
		return fmt.Errorf("%s is not installed", rv)
	}
	if active, ok := s.Active(); ok && active == rv {
		if err := s.ClearActive(); err != nil {
			return err
		}
	}
	return os.RemoveAll(s.InstallDirFor(rv))
}

// RemoveMasterOutdated deletes every nightly except keepDev.
func (s *Store) RemoveMasterOutdated(keepDev string) error {
	chains, _, err := s.Scan()
	if err != nil {
		return err
	}
	for _, tc := range chains {
		if tc.Version.Master && tc.Version.Value != keepDev {
			if err := s.Remove(tc.Version); err != nil {
				return err
			}
			logger.Info("removed outdated master build %s", tc.Version)
		}
	}
	return nil
}

// RemoveExcept deletes every installed toolchain whose resolved value is not
// in keep.
func (s *Store) RemoveExcept(keep map[string]bool) error {
	chains, _, err := s.Scan()
	if err != nil {
		return err
	}
	for _, tc := range chains {
		if keep[tc.Version.Value] {
			continue
		}
		if err := s.Remove(tc.Version); err != nil {
			return err
		}
	}
	return nil
}

// SweepOrphans clears scratch left behind by interrupted runs: stale files
// in downloads/ and tmp- extraction directories past the orphan age.
func (s *Store) SweepOrphans() {
	cutoff := time.Now().Add(-orphanAge)

	if entries, err := os.ReadDir(s.DownloadsDir()); err == nil {
		for _, e := range entries {
			p := filepath.Join(s.DownloadsDir(), e.Name())
			if info, err := e.Info(); err == nil && info.ModTime().Before(cutoff) {
				logger.Debug("sweeping orphaned download %s", p)
				_ = os.RemoveAll(p)
			}
		}
	}

	for _, dir := range []string{s.VersionsDir(), s.MasterDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), "tmp-") {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if info, err := e.Info(); err == nil && info.ModTime().Before(cutoff) {
				logger.Debug("sweeping orphaned extraction %s", p)
				_ = os.RemoveAll(p)
			}
		}
	}
}
