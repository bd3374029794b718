package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/ralt/qitoolchain/internal/archive"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct {
	log logrus.FieldLogger
}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner(log logrus.FieldLogger) *FileSystemScanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileSystemScanner{log: log}
}

// Scan recursively scans a directory for archives. Archives are returned
// in lexical path order; when two archives yield the same package name,
// the first one wins.
func (s *FileSystemScanner) Scan(ctx context.Context, dir, pattern string) ([]ScannedArchive, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", pattern)
	}

	var archives []ScannedArchive
	seen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		match, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil || !match {
			return nil
		}

		format, err := archive.DetectFormat(path)
		if err != nil {
			s.log.Warnf("Failed to detect format of %s: %v", path, err)
			return nil
		}
		if format == archive.FormatUnknown {
			return nil
		}

		name := archive.TrimExtension(d.Name())
		if previous, ok := seen[name]; ok {
			s.log.Warnf("Skipping %s: package %s already provided by %s", path, name, previous)
			return nil
		}
		seen[name] = path

		info, err := d.Info()
		if err != nil {
			return err
		}

		s.log.Debugf("Found %s archive: %s", format, path)

		archives = append(archives, ScannedArchive{
			Path:   path,
			Name:   name,
			Format: format,
			Size:   info.Size(),
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	s.log.Infof("Found %d archives in %s", len(archives), dir)
	return archives, nil
}
