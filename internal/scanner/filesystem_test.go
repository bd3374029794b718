package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/qitoolchain/internal/archive"
)

func setupTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string][]byte{
		"boost-1.77.tar.gz":       {0x1F, 0x8B, 0x08, 0x00},
		"linux64/qt-5.15.tar.xz":  {0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
		"linux64/ctc.zip":         []byte("PK\x03\x04rest"),
		"mac64/qt-5.15.zip":       []byte("PK\x03\x04rest"),
		"README.md":               []byte("# packages\n"),
		"linux64/notes/notes.txt": []byte("hello"),
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		os.MkdirAll(filepath.Dir(path), 0755)
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestScanAll(t *testing.T) {
	dir := setupTree(t)

	archives, err := NewFileSystemScanner(nil).Scan(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got := make(map[string]archive.Format)
	for _, a := range archives {
		got[a.Name] = a.Format
	}
	want := map[string]archive.Format{
		"boost-1.77": archive.FormatTarGz,
		"ctc":        archive.FormatZip,
		"qt-5.15":    archive.FormatTarXz,
	}
	if len(got) != len(want) {
		t.Fatalf("archives = %v", got)
	}
	for name, format := range want {
		if got[name] != format {
			t.Errorf("%s: format = %s, want %s", name, got[name], format)
		}
	}

	// linux64/qt-5.15.tar.xz comes before mac64/qt-5.15.zip
	for _, a := range archives {
		if a.Name == "qt-5.15" && filepath.Base(filepath.Dir(a.Path)) != "linux64" {
			t.Errorf("qt should come from linux64, got %s", a.Path)
		}
	}
}

func TestScanWithPattern(t *testing.T) {
	dir := setupTree(t)

	archives, err := NewFileSystemScanner(nil).Scan(context.Background(), dir, "mac64/**")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(archives) != 1 || archives[0].Name != "qt-5.15" || archives[0].Format != archive.FormatZip {
		t.Errorf("archives = %+v", archives)
	}
}

func TestScanInvalidPattern(t *testing.T) {
	if _, err := NewFileSystemScanner(nil).Scan(context.Background(), t.TempDir(), "[a-"); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestScanCancelled(t *testing.T) {
	dir := setupTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewFileSystemScanner(nil).Scan(ctx, dir, ""); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
