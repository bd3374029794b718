package models

import "fmt"

// Attr is an optional string attribute of a package. The zero value is unset,
// which is distinct from an attribute explicitly set to the empty string.
type Attr struct {
	value string
	set   bool
}

// Some returns an attribute set to v
func Some(v string) Attr {
	return Attr{value: v, set: true}
}

// None returns an unset attribute
func None() Attr {
	return Attr{}
}

// IsSet reports whether the attribute was given a value
func (a Attr) IsSet() bool {
	return a.set
}

// Get returns the value and whether it is set
func (a Attr) Get() (string, bool) {
	return a.value, a.set
}

// Value returns the value, or "" when unset
func (a Attr) Value() string {
	return a.value
}

// NonEmpty reports whether the attribute is set to a non-empty value.
// Only such attributes are persisted.
func (a Attr) NonEmpty() bool {
	return a.set && a.value != ""
}

// String implements fmt.Stringer
func (a Attr) String() string {
	if !a.set {
		return "<unset>"
	}
	return a.value
}

// SourceKind is the acquisition strategy of a package
type SourceKind int

const (
	SourceInstalled SourceKind = iota
	SourceArchive
	SourceLocal
	SourceVCS
)

// String returns the string representation of SourceKind
func (k SourceKind) String() string {
	switch k {
	case SourceInstalled:
		return "installed"
	case SourceArchive:
		return "archive"
	case SourceLocal:
		return "local"
	case SourceVCS:
		return "vcs"
	default:
		return "unknown"
	}
}

// Source describes where a package comes from. It is one of
// *ArchiveSource, *LocalSource or *VCSSource.
type Source interface {
	Kind() SourceKind
	// Location is the URL or directory the package is acquired from
	Location() string
}

// ArchiveSource is a package downloaded as an archive and extracted
type ArchiveSource struct {
	URL string
	// SHA256 is optional, and only ever comes from a feed
	SHA256 string
}

// Kind implements Source
func (s *ArchiveSource) Kind() SourceKind { return SourceArchive }

// Location implements Source
func (s *ArchiveSource) Location() string { return s.URL }

// LocalSource is a package referenced in place from a directory relative
// to the feed that declared it
type LocalSource struct {
	Directory string
}

// Kind implements Source
func (s *LocalSource) Kind() SourceKind { return SourceLocal }

// Location implements Source
func (s *LocalSource) Location() string { return s.Directory }

// VCSSource is a package checked out from a version control repository
type VCSSource struct {
	System   string // "svn" or "git"
	URL      string
	Revision string
}

// Kind implements Source
func (s *VCSSource) Kind() SourceKind { return SourceVCS }

// Location implements Source
func (s *VCSSource) Location() string { return s.URL }

// Package is a prebuilt package tracked by a toolchain
type Package struct {
	Name string

	Version       Attr
	Path          Attr
	ToolchainFile Attr
	Sysroot       Attr
	CrossGdb      Attr

	// Source is nil for packages that were registered directly and have
	// nothing to acquire
	Source Source

	// Manifest is an optional path to the package.xml declared by a feed,
	// used only to check feed consistency
	Manifest string

	// Dependency lists, filled by LoadDeps from the package manifest
	BuildDepends []string
	RunDepends   []string
	TestDepends  []string
	depsLoaded   bool
}

// Kind returns the acquisition kind of the package
func (p *Package) Kind() SourceKind {
	if p.Source == nil {
		return SourceInstalled
	}
	return p.Source.Kind()
}

// URL returns the archive or repository URL, or "" for other kinds
func (p *Package) URL() string {
	switch s := p.Source.(type) {
	case *ArchiveSource:
		return s.URL
	case *VCSSource:
		return s.URL
	default:
		return ""
	}
}

// Identity returns the key used when diffing a local package set against a
// feed. Two packages with the same name but a different version or url are
// different packages.
func (p *Package) Identity() string {
	return fmt.Sprintf("%s:%s:%s", p.Name, p.Version.Value(), p.URL())
}

// DepsLoaded reports whether the dependency lists were already loaded
func (p *Package) DepsLoaded() bool {
	return p.depsLoaded
}

// SetDeps stores the dependency lists of the package
func (p *Package) SetDeps(build, run, test []string) {
	p.BuildDepends = build
	p.RunDepends = run
	p.TestDepends = test
	p.depsLoaded = true
}

// Depends returns the union of the dependency lists selected by depTypes
// ("build", "runtime", "test"), without duplicates, in declaration order.
func (p *Package) Depends(depTypes []string) []string {
	var lists [][]string
	for _, t := range depTypes {
		switch t {
		case DepBuild:
			lists = append(lists, p.BuildDepends)
		case DepRuntime:
			lists = append(lists, p.RunDepends)
		case DepTest:
			lists = append(lists, p.TestDepends)
		}
	}

	seen := make(map[string]bool)
	var deps []string
	for _, list := range lists {
		for _, name := range list {
			if seen[name] {
				continue
			}
			seen[name] = true
			deps = append(deps, name)
		}
	}
	return deps
}

// Dependency categories
const (
	DepBuild   = "build"
	DepRuntime = "runtime"
	DepTest    = "test"
)

// AllDepTypes selects every dependency category
var AllDepTypes = []string{DepBuild, DepRuntime, DepTest}
