package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/weezy20/zv/internal/logger"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func TestWriteBytesAtomicReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := WriteBytesAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := WriteBytesAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q", data)
	}

	// No temp litter left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has leftovers: %v", entries)
	}
}

func TestWriteFileAtomicStreams(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "payload.bin")
	if err := WriteFileAtomic(final+".tmp", final, bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.json")
	if err := WriteJSONAtomic(path, map[string]string{"kind": "semver", "value": "0.13.0"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"kind": "semver"`)) {
		t.Errorf("json = %s", data)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if ok, err := FileExists(file); err != nil || !ok {
		t.Errorf("FileExists(file) = %v, %v", ok, err)
	}
	if ok, err := FileExists(filepath.Join(dir, "missing")); err != nil || ok {
		t.Errorf("FileExists(missing) = %v, %v", ok, err)
	}
	if _, err := FileExists(dir); err == nil {
		t.Error("FileExists on a directory must error")
	}
}
