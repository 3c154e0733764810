package platform

import "testing"

func TestDetectMapping(t *testing.T) {
	cases := []struct {
		goos, goarch string
		triple       string
	}{
		{"linux", "amd64", "x86_64-linux"},
		{"darwin", "arm64", "aarch64-macos"},
		{"windows", "amd64", "x86_64-windows"},
		{"linux", "386", "x86-linux"},
		{"linux", "riscv64", "riscv64-linux"},
	}
	for _, c := range cases {
		d := detect(c.goos, c.goarch)
		if got := d.Triple(); got != c.triple {
			t.Errorf("detect(%s, %s).Triple() = %q, want %q", c.goos, c.goarch, got, c.triple)
		}
	}
}

func TestArchiveExt(t *testing.T) {
	if ext := (Descriptor{OS: "windows", Arch: "x86_64"}).ArchiveExt(); ext != "zip" {
		t.Errorf("windows ext = %q, want zip", ext)
	}
	if ext := (Descriptor{OS: "linux", Arch: "x86_64"}).ArchiveExt(); ext != "tar.xz" {
		t.Errorf("linux ext = %q, want tar.xz", ext)
	}
}

func TestExeSuffix(t *testing.T) {
	if s := (Descriptor{OS: "windows"}).ExeSuffix(); s != ".exe" {
		t.Errorf("windows suffix = %q", s)
	}
	if s := (Descriptor{OS: "macos"}).ExeSuffix(); s != "" {
		t.Errorf("macos suffix = %q", s)
	}
}
