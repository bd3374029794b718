// Package manifest reads the package.xml found at the root of a package,
// which declares its dependencies.
package manifest

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/qitoolchain/internal/models"
)

// FileName is the name of the manifest at the root of a package
const FileName = "package.xml"

// Manifest is the content of a package.xml
type Manifest struct {
	XMLName xml.Name    `xml:"package"`
	Name    string      `xml:"name,attr"`
	Version string      `xml:"version,attr,omitempty"`
	Depends []dependsEl `xml:"depends"`
}

type dependsEl struct {
	BuildTime bool   `xml:"buildtime,attr"`
	RunTime   bool   `xml:"runtime,attr"`
	TestTime  bool   `xml:"testtime,attr"`
	Names     string `xml:"names,attr"`
}

// BuildDepends returns the build dependencies, in declaration order
func (m *Manifest) BuildDepends() []string {
	return m.collect(func(d dependsEl) bool { return d.BuildTime })
}

// RunDepends returns the runtime dependencies, in declaration order
func (m *Manifest) RunDepends() []string {
	return m.collect(func(d dependsEl) bool { return d.RunTime })
}

// TestDepends returns the test dependencies, in declaration order
func (m *Manifest) TestDepends() []string {
	return m.collect(func(d dependsEl) bool { return d.TestTime })
}

func (m *Manifest) collect(keep func(dependsEl) bool) []string {
	var names []string
	for _, d := range m.Depends {
		if keep(d) {
			names = append(names, strings.Fields(d.Names)...)
		}
	}
	return names
}

// Read parses the manifest at path
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &m, nil
}

// Loader fills package dependency lists from the manifest at the package
// path. Packages without a manifest have no dependencies.
type Loader struct{}

// NewLoader creates a manifest loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadDeps loads the dependencies of pkg once
func (l *Loader) LoadDeps(pkg *models.Package) error {
	if pkg.DepsLoaded() {
		return nil
	}

	path, ok := pkg.Path.Get()
	if !ok || path == "" {
		pkg.SetDeps(nil, nil, nil)
		return nil
	}

	m, err := Read(filepath.Join(path, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			pkg.SetDeps(nil, nil, nil)
			return nil
		}
		return models.NewError(models.ErrFileOp, pkg.Name, "load manifest", err)
	}

	pkg.SetDeps(m.BuildDepends(), m.RunDepends(), m.TestDepends())
	return nil
}
