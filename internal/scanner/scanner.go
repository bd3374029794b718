// Package scanner finds prebuilt package archives in a directory tree.
package scanner

import (
	"context"

	"github.com/ralt/qitoolchain/internal/archive"
)

// DefaultPattern matches every file below the scanned directory
const DefaultPattern = "**/*"

// ScannedArchive represents an archive file found during scanning
type ScannedArchive struct {
	Path string
	// Name is the package name: the file name without archive extension
	Name   string
	Format archive.Format
	Size   int64
}

// Scanner interface for finding package archives
type Scanner interface {
	// Scan recursively scans dir for archives whose path relative to dir
	// matches pattern
	Scan(ctx context.Context, dir, pattern string) ([]ScannedArchive, error)
}
