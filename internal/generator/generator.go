// Package generator renders the build-system configuration of a toolchain.
package generator

import "github.com/ralt/qitoolchain/internal/models"

// Generator interface for toolchain configuration generators
type Generator interface {
	// Generate renders the configuration for packages, given sorted by name
	Generate(packages []*models.Package) ([]byte, error)

	// ValidatePackages checks if packages can be rendered by this generator
	ValidatePackages(packages []*models.Package) error

	// FileName returns the name of the generated file of a toolchain
	FileName(toolchain string) string
}
