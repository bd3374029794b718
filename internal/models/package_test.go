package models

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestAttrUnsetVersusEmpty(t *testing.T) {
	var unset Attr
	if unset.IsSet() {
		t.Error("zero Attr should be unset")
	}

	empty := Some("")
	if !empty.IsSet() {
		t.Error("Some(\"\") should be set")
	}
	if empty.NonEmpty() {
		t.Error("Some(\"\") should not be NonEmpty")
	}

	v, ok := Some("1.0").Get()
	if !ok || v != "1.0" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
}

func TestIdentityIncludesVersionAndURL(t *testing.T) {
	a := Package{Name: "boost", Version: Some("1.0"), Source: &ArchiveSource{URL: "http://x/boost-1.0.tar.gz"}}
	b := a
	if a.Identity() != b.Identity() {
		t.Error("copies should share an identity")
	}

	b.Version = Some("1.1")
	if a.Identity() == b.Identity() {
		t.Error("a version bump should change the identity")
	}

	c := a
	c.Source = &ArchiveSource{URL: "http://y/boost-1.0.tar.gz"}
	if a.Identity() == c.Identity() {
		t.Error("a url change should change the identity")
	}

	// The sha256 is not part of the identity: it never reaches the database
	d := a
	d.Source = &ArchiveSource{URL: "http://x/boost-1.0.tar.gz", SHA256: "abc"}
	if a.Identity() != d.Identity() {
		t.Error("checksum should not change the identity")
	}
}

func TestKind(t *testing.T) {
	cases := map[SourceKind]Package{
		SourceInstalled: {Name: "a"},
		SourceArchive:   {Name: "b", Source: &ArchiveSource{URL: "u"}},
		SourceLocal:     {Name: "c", Source: &LocalSource{Directory: "d"}},
		SourceVCS:       {Name: "d", Source: &VCSSource{System: "svn", URL: "svn://x"}},
	}
	for want, pkg := range cases {
		if got := pkg.Kind(); got != want {
			t.Errorf("%s: Kind() = %s, want %s", pkg.Name, got, want)
		}
	}
}

func TestDependsFiltersAndDeduplicates(t *testing.T) {
	pkg := Package{Name: "app"}
	pkg.SetDeps([]string{"a", "b"}, []string{"b", "c"}, []string{"gtest"})

	if !pkg.DepsLoaded() {
		t.Error("SetDeps should mark dependencies loaded")
	}

	got := pkg.Depends([]string{DepBuild, DepRuntime})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Depends(build, runtime) = %v, want %v", got, want)
	}

	got = pkg.Depends([]string{DepTest})
	if !reflect.DeepEqual(got, []string{"gtest"}) {
		t.Errorf("Depends(test) = %v", got)
	}

	if got := pkg.Depends(nil); len(got) != 0 {
		t.Errorf("Depends(nil) = %v, want empty", got)
	}
}

func TestToolchainErrorFormatting(t *testing.T) {
	err := NotFound("boost", "remove")
	if err.Error() != "[NotFound] boost: remove: no such package: boost" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := fmt.Errorf("update failed: %w", NewError(ErrAcquisition, "qt", "download", errors.New("timeout")))
	if !IsType(wrapped, ErrAcquisition) {
		t.Error("IsType should see through wrapping")
	}
	if IsType(wrapped, ErrNotFound) {
		t.Error("IsType matched the wrong type")
	}
	if IsType(errors.New("plain"), ErrNotFound) {
		t.Error("IsType matched a plain error")
	}
}
