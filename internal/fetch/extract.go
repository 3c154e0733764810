package fetch

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/weezy20/zv/internal/utils"

	"github.com/ulikunitz/xz"
)

// extractArchive unpacks a verified archive into destDir. Upstream archives
// wrap everything in a zig-<triple>-<version>/ top-level directory; that
// component is stripped so destDir itself becomes the toolchain root.
func extractArchive(archivePath, destDir, format string) error {
	switch format {
	case "tar.xz":
		return extractTarXz(archivePath, destDir)
	case "zip":
		return extractZip(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

func extractTarXz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer utils.Close(f)

	xzr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("xz: %w", err)
	}

	tr := tar.NewReader(xzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rel, ok := stripTopDir(hdr.Name)
		if !ok {
			continue
		}
		target, err := secureJoin(destDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)&0o777); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if strings.Contains(hdr.Linkname, "..") || filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("refusing symlink %s -> %s", hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer utils.Close(zr)

	for _, zf := range zr.File {
		rel, ok := stripTopDir(zf.Name)
		if !ok {
			continue
		}
		target, err := secureJoin(destDir, rel)
		if err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return err
		}
		werr := writeFile(target, rc, zf.Mode()&0o777)
		_ = rc.Close()
		if werr != nil {
			return werr
		}
	}
	return nil
}

// stripTopDir removes a zig-* leading path component. The component itself
// (with nothing under it) yields ok=false.
func stripTopDir(name string) (string, bool) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "./")
	top, rest, found := strings.Cut(clean, "/")
	if strings.HasPrefix(top, "zig-") {
		if !found || rest == "" {
			return "", false
		}
		return rest, true
	}
	if clean == "" {
		return "", false
	}
	return clean, true
}

// secureJoin rejects entries that would escape destDir.
func secureJoin(destDir, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q in archive", rel)
	}
	target := filepath.Join(destDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes extraction root", rel)
	}
	return target, nil
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode&0o400 == 0 {
		mode |= 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
