package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ralt/qitoolchain/internal/config"
	"github.com/ralt/qitoolchain/internal/database"
	"github.com/ralt/qitoolchain/internal/models"
)

type fakeFeed struct {
	refs     []string
	packages []*models.Package
}

func (f *fakeFeed) Parse(ctx context.Context, ref string) ([]*models.Package, error) {
	f.refs = append(f.refs, ref)
	var res []*models.Package
	for _, p := range f.packages {
		cp := *p
		res = append(res, &cp)
	}
	return res, nil
}

type fakeExtractor struct {
	calls int
}

func (e *fakeExtractor) Extract(archivePath, destDir string) (string, error) {
	e.calls++
	if err := os.RemoveAll(destDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	return destDir, os.WriteFile(filepath.Join(destDir, "package.xml"), []byte(`<package name="x" version="2.1"/>`), 0644)
}

func newToolchain(t *testing.T, locs config.Locations, feed *fakeFeed, extractor *fakeExtractor) *Toolchain {
	t.Helper()
	opts := Options{Database: database.Options{Feeds: feed}}
	if extractor != nil {
		opts.Extractor = extractor
	}
	tc, err := New("linux64", locs, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tc
}

func TestNewCreatesDocuments(t *testing.T) {
	locs := config.InDir(t.TempDir())
	tc := newToolchain(t, locs, &fakeFeed{}, nil)

	paths := tc.Paths()
	for _, p := range []string{paths.ConfigPath, paths.DBPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should exist: %v", p, err)
		}
	}

	names, err := Names(locs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"linux64"}) {
		t.Errorf("Names = %v", names)
	}

	if err := tc.Unregister(); err != nil {
		t.Fatal(err)
	}
	names, _ = Names(locs)
	if len(names) != 0 {
		t.Errorf("Names after unregister = %v", names)
	}
}

func TestNamesWithoutToolchains(t *testing.T) {
	names, err := Names(config.InDir(t.TempDir()))
	if err != nil || len(names) != 0 {
		t.Errorf("Names = %v, %v", names, err)
	}
}

func TestInvalidName(t *testing.T) {
	for _, name := range []string{"", "..", "a/b"} {
		_, err := New(name, config.InDir(t.TempDir()), Options{})
		if !models.IsType(err, models.ErrInvalidConfig) {
			t.Errorf("New(%q): expected InvalidConfig, got %v", name, err)
		}
	}
}

func TestUpdateRemembersFeed(t *testing.T) {
	locs := config.InDir(t.TempDir())
	ctcDir := t.TempDir()
	feed := &fakeFeed{packages: []*models.Package{
		{Name: "ctc", Source: &models.LocalSource{Directory: ctcDir}},
	}}
	tc := newToolchain(t, locs, feed, nil)

	if _, err := tc.Update(context.Background(), ""); !models.IsType(err, models.ErrInvalidConfig) {
		t.Errorf("update without feed: expected InvalidConfig, got %v", err)
	}

	result, err := tc.Update(context.Background(), "http://example.com/linux64.xml")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !reflect.DeepEqual(result.Added, []string{"ctc"}) {
		t.Errorf("added = %v", result.Added)
	}

	// The feed is stored in the config document
	tc = newToolchain(t, locs, feed, nil)
	if tc.FeedURL != "http://example.com/linux64.xml" {
		t.Errorf("FeedURL = %q", tc.FeedURL)
	}

	if _, err := tc.Update(context.Background(), ""); err != nil {
		t.Fatalf("Update with stored feed failed: %v", err)
	}
	if feed.refs[len(feed.refs)-1] != "http://example.com/linux64.xml" {
		t.Errorf("stored feed not used: %v", feed.refs)
	}
}

func TestToolchainFileIsWrittenOnlyWhenChanged(t *testing.T) {
	locs := config.InDir(t.TempDir())
	tc := newToolchain(t, locs, &fakeFeed{}, nil)
	tc.AddPackage(&models.Package{Name: "boost", Path: models.Some("/opt/boost")})

	path, err := tc.ToolchainFile()
	if err != nil {
		t.Fatalf("ToolchainFile failed: %v", err)
	}
	if path != locs.For("linux64").ToolchainFilePath {
		t.Errorf("path = %s", path)
	}

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if _, err := tc.ToolchainFile(); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().Equal(old) {
		t.Error("unchanged toolchain file should not be rewritten")
	}

	tc.AddPackage(&models.Package{Name: "qt", Path: models.Some("/opt/qt")})
	if _, err := tc.ToolchainFile(); err != nil {
		t.Fatal(err)
	}
	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), `list(INSERT CMAKE_PREFIX_PATH 0 "/opt/qt")`) {
		t.Errorf("new package missing from toolchain file:\n%s", content)
	}
}

func TestUpdateTwiceKeepsToolchainFile(t *testing.T) {
	locs := config.InDir(t.TempDir())
	ctcDir := t.TempDir()
	feed := &fakeFeed{packages: []*models.Package{
		{Name: "ctc", Version: models.Some("2.0"), Source: &models.LocalSource{Directory: ctcDir}},
	}}
	tc := newToolchain(t, locs, feed, nil)

	if _, err := tc.Update(context.Background(), "feed.xml"); err != nil {
		t.Fatal(err)
	}
	path, _ := tc.ToolchainFile()
	before, _ := os.ReadFile(path)
	dbBefore, _ := os.ReadFile(tc.Paths().DBPath)

	result, err := tc.Update(context.Background(), "feed.xml")
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Errorf("second update changed packages: %+v", result)
	}
	tc.ToolchainFile()
	after, _ := os.ReadFile(path)
	dbAfter, _ := os.ReadFile(tc.Paths().DBPath)
	if string(before) != string(after) || string(dbBefore) != string(dbAfter) {
		t.Error("documents should be byte-identical after a no-op update")
	}
}

func TestSysrootAndCrossGdb(t *testing.T) {
	tc := newToolchain(t, config.InDir(t.TempDir()), &fakeFeed{}, nil)
	if tc.Sysroot() != "" || tc.CrossGdb() != "" {
		t.Error("empty toolchain has no sysroot")
	}

	tc.AddPackage(&models.Package{Name: "zz", Sysroot: models.Some("/zz/sysroot")})
	tc.AddPackage(&models.Package{Name: "ctc", Sysroot: models.Some("/ctc/sysroot"), CrossGdb: models.Some("/ctc/gdb")})
	tc.AddPackage(&models.Package{Name: "aa", Sysroot: models.Some("")})

	if got := tc.Sysroot(); got != "/ctc/sysroot" {
		t.Errorf("Sysroot = %s", got)
	}
	if got := tc.CrossGdb(); got != "/ctc/gdb" {
		t.Errorf("CrossGdb = %s", got)
	}
}

func TestAddAndRemovePackagePersist(t *testing.T) {
	locs := config.InDir(t.TempDir())
	tc := newToolchain(t, locs, &fakeFeed{}, nil)

	if err := tc.AddPackage(&models.Package{Name: "boost", Version: models.Some("1.77"), Path: models.Some("/opt/boost")}); err != nil {
		t.Fatal(err)
	}

	tc = newToolchain(t, locs, &fakeFeed{}, nil)
	if _, err := tc.GetPackage("boost", true); err != nil {
		t.Fatalf("boost should persist: %v", err)
	}

	if err := tc.RemovePackage("boost"); err != nil {
		t.Fatal(err)
	}
	if err := tc.RemovePackage("boost"); !models.IsType(err, models.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}

	tc = newToolchain(t, locs, &fakeFeed{}, nil)
	if pkg, _ := tc.GetPackage("boost", false); pkg != nil {
		t.Error("removal should persist")
	}
}

func TestString(t *testing.T) {
	tc := newToolchain(t, config.InDir(t.TempDir()), &fakeFeed{}, nil)
	if got := tc.String(); got != "Toolchain linux64\nNo feed\nNo packages\n" {
		t.Errorf("String = %q", got)
	}

	tc.FeedURL = "http://example.com/feed.xml"
	tc.AddPackage(&models.Package{Name: "boost", Version: models.Some("1.77"), Path: models.Some("/opt/boost")})
	tc.AddPackage(&models.Package{Name: "ctc"})

	want := "Toolchain linux64\n" +
		"Using feed from http://example.com/feed.xml\n" +
		"  Packages:\n" +
		"    boost 1.77\n" +
		"      in /opt/boost\n" +
		"    ctc\n"
	if got := tc.String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestRemove(t *testing.T) {
	locs := config.InDir(t.TempDir())
	tc := newToolchain(t, locs, &fakeFeed{}, nil)
	tc.AddPackage(&models.Package{Name: "boost", Path: models.Some("/opt/boost")})
	tc.ToolchainFile()

	if err := tc.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	paths := tc.Paths()
	for _, p := range []string{paths.ConfigPath, paths.DBPath, paths.ToolchainFilePath, paths.PackagesPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", p)
		}
	}
}

func TestAddArchiveSkipsUpToDateExtraction(t *testing.T) {
	locs := config.InDir(t.TempDir())
	extractor := &fakeExtractor{}
	tc := newToolchain(t, locs, &fakeFeed{}, extractor)

	archivePath := filepath.Join(t.TempDir(), "boost.tar.gz")
	os.WriteFile(archivePath, []byte{0x1F, 0x8B}, 0644)
	old := time.Now().Add(-time.Hour)
	os.Chtimes(archivePath, old, old)

	pkg, err := tc.AddArchive("boost", archivePath)
	if err != nil {
		t.Fatalf("AddArchive failed: %v", err)
	}
	if pkg.Path.Value() != filepath.Join(locs.For("linux64").PackagesPath, "boost") {
		t.Errorf("path = %s", pkg.Path.Value())
	}
	if pkg.Version.Value() != "2.1" {
		t.Errorf("version from manifest = %q", pkg.Version.Value())
	}

	if _, err := tc.AddArchive("boost", archivePath); err != nil {
		t.Fatal(err)
	}
	if extractor.calls != 1 {
		t.Errorf("up to date package re-extracted, %d extractions", extractor.calls)
	}

	newer := time.Now().Add(time.Hour)
	os.Chtimes(archivePath, newer, newer)
	if _, err := tc.AddArchive("boost", archivePath); err != nil {
		t.Fatal(err)
	}
	if extractor.calls != 2 {
		t.Errorf("newer archive should be extracted again, %d extractions", extractor.calls)
	}

	tc = newToolchain(t, locs, &fakeFeed{}, extractor)
	if _, err := tc.GetPackage("boost", true); err != nil {
		t.Errorf("boost should be saved: %v", err)
	}
}

func TestImport(t *testing.T) {
	locs := config.InDir(t.TempDir())
	extractor := &fakeExtractor{}
	tc := newToolchain(t, locs, &fakeFeed{}, extractor)

	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "linux64"), 0755)
	os.WriteFile(filepath.Join(dir, "linux64", "boost.tar.gz"), []byte{0x1F, 0x8B}, 0644)
	os.WriteFile(filepath.Join(dir, "linux64", "qt.zip"), []byte("PK\x03\x04"), 0644)
	os.WriteFile(filepath.Join(dir, "linux64", "README"), []byte("hello"), 0644)
	os.WriteFile(filepath.Join(dir, "other.tar.gz"), []byte{0x1F, 0x8B}, 0644)

	added, err := tc.Import(context.Background(), dir, "linux64/*")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	var names []string
	for _, p := range added {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"boost", "qt"}) {
		t.Errorf("imported = %v", names)
	}
	if len(tc.Packages()) != 2 {
		t.Errorf("packages = %d", len(tc.Packages()))
	}
}
