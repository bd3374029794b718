// Package cmake generates a CMake toolchain file adding every package of a
// toolchain to CMAKE_PREFIX_PATH.
package cmake

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ralt/qitoolchain/internal/generator"
	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/utils"
)

const header = `# Autogenerated file. Do not edit
# Make sure we don't keep adding elements to this list:
set(CMAKE_PREFIX_PATH "" CACHE INTERNAL "" FORCE)
set(CMAKE_FRAMEWORK_PATH "" CACHE INTERNAL "" FORCE)
`

// Generator implements the generator.Generator interface for CMake
type Generator struct{}

// NewGenerator creates a new CMake generator
func NewGenerator() generator.Generator {
	return &Generator{}
}

// FileName returns toolchain-<name>.cmake
func (g *Generator) FileName(toolchain string) string {
	return fmt.Sprintf("toolchain-%s.cmake", toolchain)
}

// ValidatePackages rejects paths that cannot be quoted in CMake
func (g *Generator) ValidatePackages(packages []*models.Package) error {
	for _, pkg := range packages {
		for _, attr := range []models.Attr{pkg.Path, pkg.ToolchainFile} {
			if strings.Contains(attr.Value(), `"`) {
				return fmt.Errorf("package %s: path %q contains a double quote", pkg.Name, attr.Value())
			}
		}
	}
	return nil
}

// Generate renders the toolchain file. Toolchain files of the packages are
// included first, then every package path is inserted at the front of the
// search paths, so that the last package in name order is searched first.
func (g *Generator) Generate(packages []*models.Package) ([]byte, error) {
	if err := g.ValidatePackages(packages); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(header)

	for _, pkg := range packages {
		if pkg.ToolchainFile.NonEmpty() {
			fmt.Fprintf(&buf, "include(\"%s\")\n", utils.ToPosixPath(pkg.ToolchainFile.Value()))
		}
	}

	for _, pkg := range packages {
		if !pkg.Path.NonEmpty() {
			continue
		}
		path := utils.ToPosixPath(pkg.Path.Value())
		fmt.Fprintf(&buf, "list(INSERT CMAKE_PREFIX_PATH 0 \"%s\")\n", path)
		// CMAKE_FRAMEWORK_PATH does not follow CMAKE_PREFIX_PATH
		fmt.Fprintf(&buf, "list(INSERT CMAKE_FRAMEWORK_PATH 0 \"%s\")\n", path)
	}

	return buf.Bytes(), nil
}
