package resolver

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/fetch"
	"github.com/weezy20/zv/internal/index"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/mirrors"
	"github.com/weezy20/zv/internal/platform"
	"github.com/weezy20/zv/internal/service"
	"github.com/weezy20/zv/internal/store"
	"github.com/weezy20/zv/internal/verify/minisigntest"
	"github.com/weezy20/zv/internal/version"

	"github.com/ulikunitz/xz"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

// fixture is a full fake upstream: index endpoint plus archive hosting, and
// the local store wired against it.
type fixture struct {
	resolver *Resolver
	store    *store.Store
	server   *httptest.Server
	signer   *minisigntest.Signer

	indexHits int
}

func tarXzToolchain(t *testing.T, topDir string) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xw)
	body := "#!/bin/sh\n"
	if err := tw.WriteHeader(&tar.Header{Name: topDir + "/zig", Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newFixture(t *testing.T, versions ...string) *fixture {
	t.Helper()
	f := &fixture{signer: minisigntest.New(99)}
	plat := platform.Descriptor{OS: "linux", Arch: "x86_64"}

	archives := map[string][]byte{}
	sums := map[string]string{}
	for _, v := range versions {
		name := fmt.Sprintf("zig-x86_64-linux-%s.tar.xz", v)
		data := tarXzToolchain(t, fmt.Sprintf("zig-x86_64-linux-%s", v))
		archives[name] = data
		sum := sha256.Sum256(data)
		sums[name] = hex.EncodeToString(sum[:])
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/download/index.json":
			f.indexHits++
			var b strings.Builder
			b.WriteString("{")
			first := true
			for _, v := range versions {
				name := fmt.Sprintf("zig-x86_64-linux-%s.tar.xz", v)
				if !first {
					b.WriteString(",")
				}
				first = false
				fmt.Fprintf(&b, `%q: {"date": "2026-01-01", "x86_64-linux": {"tarball": %q, "shasum": %q, "size": "%d"}}`,
					v, f.server.URL+"/download/"+v+"/"+name, sums[name], len(archives[name]))
			}
			b.WriteString("}")
			_, _ = w.Write([]byte(b.String()))
		case strings.HasSuffix(r.URL.Path, ".minisig"):
			name := filepath.Base(strings.TrimSuffix(r.URL.Path, ".minisig"))
			data, ok := archives[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(f.signer.Sign(data, name)))
		default:
			data, ok := archives[filepath.Base(r.URL.Path)]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(data)
		}
	}))
	t.Cleanup(f.server.Close)

	dir := t.TempDir()
	st, err := store.Open(dir, plat)
	if err != nil {
		t.Fatal(err)
	}
	f.store = st

	client := service.NewHTTPClient(5 * time.Second)
	cache := index.NewCache(dir, client, 21*24*time.Hour).WithURL(f.server.URL + "/download/index.json")
	reg, err := mirrors.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	reg.LastSynced = time.Now()

	dl := fetch.NewDownloader(client, reg, st, plat)
	dl.PubKey = f.signer.PublicKey()
	dl.MirrorsTTL = time.Hour

	f.resolver = &Resolver{Store: st, Cache: cache, Downloader: dl, Plat: plat}
	return f
}

// Fresh store, released version: one index fetch, verified install, no
// active pointer side effect.
func TestResolveInstallsMissingSemver(t *testing.T) {
	f := newFixture(t, "0.13.0", "0.14.0")

	spec, _ := version.Parse("0.13.0")
	res, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.Toolchain.Version.Value != "0.13.0" {
		t.Errorf("resolved %s", res.Toolchain.Version)
	}
	info, err := os.Stat(res.Toolchain.Zig)
	if err != nil {
		t.Fatalf("zig missing: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("zig not executable")
	}
	if f.indexHits != 1 {
		t.Errorf("index fetched %d times, want 1", f.indexHits)
	}
	if _, ok := f.store.Active(); ok {
		t.Error("Resolve must not set the active version")
	}
}

// Patch auto-fill: "0.14" resolves to the 0.14.0 install.
func TestResolveAutoFillsPatch(t *testing.T) {
	f := newFixture(t, "0.14.0")

	spec, _ := version.Parse("0.14")
	res, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Toolchain.Version.Value != "0.14.0" {
		t.Errorf("resolved %s, want 0.14.0", res.Toolchain.Version)
	}
}

func TestResolvePrefersLocalInstall(t *testing.T) {
	f := newFixture(t, "0.13.0")
	spec, _ := version.Parse("0.13.0")

	if _, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing); err != nil {
		t.Fatal(err)
	}
	hits := f.indexHits

	if _, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing); err != nil {
		t.Fatal(err)
	}
	if f.indexHits != hits {
		t.Error("already-installed resolve must not consult the network")
	}
}

func TestResolveMustExistLocally(t *testing.T) {
	f := newFixture(t, "0.13.0")
	spec, _ := version.Parse("0.13.0")

	_, err := f.resolver.Resolve(t.Context(), spec, MustExistLocally)
	if !errors.Is(err, errs.ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
	if f.indexHits != 0 {
		t.Error("MustExistLocally must never fetch")
	}
}

func TestResolveUnknownVersion(t *testing.T) {
	f := newFixture(t, "0.13.0")
	spec, _ := version.Parse("0.15.2")

	_, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing)
	if !errors.Is(err, errs.ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestResolveStable(t *testing.T) {
	f := newFixture(t, "0.13.0", "0.14.0")
	spec, _ := version.Parse("stable")

	res, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Toolchain.Version.Value != "0.14.0" {
		t.Errorf("stable resolved to %s", res.Toolchain.Version)
	}
}

func TestResolveMasterPinnedLocalOnly(t *testing.T) {
	f := newFixture(t)
	dev := "0.16.0-dev.565+f50c64797"

	// Not installed: must fail without touching the network.
	spec, _ := version.Parse("master@" + dev)
	if _, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing); !errors.Is(err, errs.ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
	if f.indexHits != 0 {
		t.Error("pinned master resolution must not fetch the index")
	}

	// Installed: resolves from the store.
	root := f.store.InstallDirFor(version.ResolvedMaster(dev))
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "zig"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Toolchain.Version.Master || res.Toolchain.Version.Value != dev {
		t.Errorf("resolved %+v", res.Toolchain.Version)
	}
}

func TestResolveInstallAlwaysReinstalls(t *testing.T) {
	f := newFixture(t, "0.13.0")
	spec, _ := version.Parse("0.13.0")

	res, err := f.resolver.Resolve(t.Context(), spec, InstallIfMissing)
	if err != nil {
		t.Fatal(err)
	}

	// Break the install, then force a re-resolve.
	if err := os.Remove(res.Toolchain.Zig); err != nil {
		t.Fatal(err)
	}
	res, err = f.resolver.Resolve(t.Context(), spec, InstallAlways)
	if err != nil {
		t.Fatalf("InstallAlways: %v", err)
	}
	if _, err := os.Stat(res.Toolchain.Zig); err != nil {
		t.Errorf("zig missing after reinstall: %v", err)
	}
}
