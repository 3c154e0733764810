package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/index"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/mirrors"
	"github.com/weezy20/zv/internal/platform"
	"github.com/weezy20/zv/internal/service"
	"github.com/weezy20/zv/internal/store"
	"github.com/weezy20/zv/internal/utils"
	"github.com/weezy20/zv/internal/verify"
	"github.com/weezy20/zv/internal/version"
)

// mirrorCandidates is how many community mirrors are tried before falling
// back to the origin.
const mirrorCandidates = 3

// sourceTag is appended to mirror download URLs; mirror operators ask
// clients to identify themselves.
const sourceTag = "zv"

// Downloader turns an index entry into a verified, extracted toolchain.
type Downloader struct {
	client service.HTTPClient
	reg    *mirrors.Registry
	st     *store.Store
	plat   platform.Descriptor

	// MirrorsTTL bounds how old the registry may be before a download
	// triggers a best-effort resync. A never-synced registry is always
	// resynced; zero resyncs before every download.
	MirrorsTTL time.Duration

	// MirrorsURL overrides the community mirror list endpoint in tests.
	MirrorsURL string

	// PubKey is the minisign key archives must verify against. Defaults to
	// the upstream release key.
	PubKey string
}

func NewDownloader(client service.HTTPClient, reg *mirrors.Registry, st *store.Store, plat platform.Descriptor) *Downloader {
	return &Downloader{client: client, reg: reg, st: st, plat: plat, PubKey: verify.ZiglangPublicKey}
}

// candidate is one source to try, with the registry key to charge the
// outcome to (empty for the origin).
type candidate struct {
	archiveURL string
	mirrorURL  string
}

// FetchAndInstall downloads entry from up to mirrorCandidates mirrors plus
// the origin, verifies each attempt, and extracts the first accepted archive
// into the store. Mirror outcomes are recorded and the registry persisted
// once the run completes, successfully or not.
func (d *Downloader) FetchAndInstall(ctx context.Context, entry index.Entry, rv version.Resolved, forceOrigin bool) (store.Toolchain, error) {
	if tc, ok := d.st.Find(rv); ok {
		return tc, nil
	}

	// Best-effort: a stale or never-synced registry gets resynced before selection
	// so a fresh store still benefits from the mirror fleet.
	if !forceOrigin && d.reg.Stale(d.MirrorsTTL) {
		if err := d.reg.Resync(ctx, d.client, d.MirrorsURL); err != nil {
			logger.Warn("%v", err)
		}
	}

	cands := d.candidates(entry, forceOrigin)
	defer func() {
		if err := d.reg.SaveAtomic(); err != nil {
			logger.Warn("failed to persist mirror registry: %v", err)
		}
	}()

	var reasons []errs.MirrorFailure
	for _, cand := range cands {
		if ctx.Err() != nil {
			return store.Toolchain{}, ctx.Err()
		}
		tc, err := d.attempt(ctx, cand, entry, rv)
		if err == nil {
			if cand.mirrorURL != "" {
				d.reg.RecordSuccess(cand.mirrorURL)
			}
			return tc, nil
		}
		if ctx.Err() != nil {
			return store.Toolchain{}, ctx.Err()
		}
		logger.Warn("download from %s failed: %v", cand.archiveURL, err)
		if cand.mirrorURL != "" {
			d.reg.RecordFailure(cand.mirrorURL)
		}
		reasons = append(reasons, errs.MirrorFailure{URL: cand.archiveURL, Err: err})
	}
	return store.Toolchain{}, &errs.AllMirrorsFailed{Reasons: reasons}
}

func (d *Downloader) candidates(entry index.Entry, forceOrigin bool) []candidate {
	origin := candidate{archiveURL: entry.Tarball}
	if forceOrigin {
		return []candidate{origin}
	}

	filename := path.Base(mustPath(entry.Tarball))
	var cands []candidate
	for _, m := range d.reg.SelectCandidates(mirrorCandidates) {
		cands = append(cands, candidate{
			archiveURL: fmt.Sprintf("%s/%s?source=%s", m.URL, filename, sourceTag),
			mirrorURL:  m.URL,
		})
	}
	return append(cands, origin)
}

// attempt fetches, verifies and extracts from a single source. Any failure
// discards the temp files so the next candidate starts clean.
func (d *Downloader) attempt(ctx context.Context, cand candidate, entry index.Entry, rv version.Resolved) (store.Toolchain, error) {
	filename := path.Base(mustPath(entry.Tarball))
	archiveTmp, err := tempName(d.st.DownloadsDir(), filename)
	if err != nil {
		return store.Toolchain{}, err
	}
	sigTmp := archiveTmp + ".minisig"
	defer func() {
		_ = os.Remove(archiveTmp)
		_ = os.Remove(sigTmp)
	}()

	if err := service.DownloadToFile(ctx, d.client, cand.archiveURL, archiveTmp); err != nil {
		return store.Toolchain{}, err
	}
	if err := service.DownloadToFile(ctx, d.client, sigURL(cand.archiveURL), sigTmp); err != nil {
		return store.Toolchain{}, fmt.Errorf("signature fetch: %w", err)
	}

	// Mirror downloads of non-indexed versions have no digest on record;
	// minisign alone gates those.
	shasum := entry.Shasum
	if entry.Unverified {
		shasum = ""
	}
	if shasum != "" {
		if err := verify.Digest(archiveTmp, shasum); err != nil {
			return store.Toolchain{}, err
		}
	}
	if err := verify.Minisign(archiveTmp, sigTmp, filename, d.PubKey); err != nil {
		return store.Toolchain{}, err
	}

	return d.install(archiveTmp, rv)
}

// install extracts a verified archive into a scratch directory and renames
// it to its content-addressed home. A concurrent install winning the race is
// fine: the existing copy is kept and the fresh one discarded.
func (d *Downloader) install(archivePath string, rv version.Resolved) (store.Toolchain, error) {
	tmpDir, err := d.st.TempInstallDir(rv)
	if err != nil {
		return store.Toolchain{}, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if err := extractArchive(archivePath, tmpDir, d.plat.ArchiveExt()); err != nil {
		return store.Toolchain{}, fmt.Errorf("%w: %s: %v", errs.ErrExtract, archivePath, err)
	}

	final := d.st.InstallDirFor(rv)
	if err := os.Rename(tmpDir, final); err != nil {
		if _, ok := d.st.Find(rv); ok {
			// A concurrent install won the race; its copy is as good.
			logger.Debug("%s already installed, keeping existing copy", rv)
		} else if _, statErr := os.Stat(final); statErr == nil {
			// A broken or partial directory occupies the final name.
			if err := os.RemoveAll(final); err != nil {
				return store.Toolchain{}, err
			}
			if err := os.Rename(tmpDir, final); err != nil {
				return store.Toolchain{}, err
			}
		} else {
			return store.Toolchain{}, err
		}
	}
	_ = utils.FsyncDir(filepath.Dir(final))

	tc, ok := d.st.Find(rv)
	if !ok {
		return store.Toolchain{}, fmt.Errorf("%w: %s produced no zig binary", errs.ErrExtract, archivePath)
	}
	return tc, nil
}

func sigURL(archiveURL string) string {
	if i := strings.IndexByte(archiveURL, '?'); i >= 0 {
		return archiveURL[:i] + ".minisig" + archiveURL[i:]
	}
	return archiveURL + ".minisig"
}

func tempName(dir, base string) (string, error) {
	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	return name, f.Close()
}

func mustPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
