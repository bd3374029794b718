// Package archive extracts prebuilt package archives.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/sassoftware/go-rpmutils"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// Extractor unpacks archives into package directories
type Extractor struct {
	log logrus.FieldLogger
}

// NewExtractor creates a new extractor
func NewExtractor(log logrus.FieldLogger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{log: log}
}

// Extract unpacks archivePath so that its content ends up in destDir,
// replacing anything already there. When the archive holds a single
// top-level directory, that directory becomes destDir. Returns destDir.
func (e *Extractor) Extract(archivePath, destDir string) (string, error) {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to detect format of %s: %w", archivePath, err)
	}
	if format == FormatUnknown {
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}

	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", err
	}

	tmp, err := os.MkdirTemp(parent, ".extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	e.log.Debugf("Extracting %s archive %s", format, archivePath)

	switch format {
	case FormatZip:
		err = extractZip(archivePath, tmp)
	case FormatRpm:
		err = extractRpm(archivePath, tmp)
	default:
		err = extractTarFile(archivePath, format, tmp)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}

	root, err := contentRoot(tmp)
	if err != nil {
		return "", err
	}

	if err := os.RemoveAll(destDir); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", destDir, err)
	}
	if err := os.Rename(root, destDir); err != nil {
		return "", fmt.Errorf("failed to move extracted content to %s: %w", destDir, err)
	}

	return destDir, nil
}

// contentRoot returns the single top-level directory of dir, or dir itself
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// safeJoin joins name under dest, refusing paths escaping dest
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return target, nil
}

func within(dest, path string) bool {
	dest = filepath.Clean(dest)
	return path == dest || strings.HasPrefix(path, dest+string(os.PathSeparator))
}

// checkParents refuses a target whose existing parent directories under
// dest include a symlink, so that no entry is written through a link
func checkParents(dest, target string) error {
	rel, err := filepath.Rel(dest, filepath.Dir(target))
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	current := dest
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("illegal file path in archive: %s goes through symlink %s", target, current)
		}
	}
	return nil
}

// checkSymlink refuses links pointing outside dest
func checkSymlink(dest, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("illegal symlink in archive: %s -> %s", target, linkname)
	}
	if !within(dest, filepath.Join(filepath.Dir(target), linkname)) {
		return fmt.Errorf("illegal symlink in archive: %s -> %s", target, linkname)
	}
	return nil
}

func extractTarFile(path string, format Format, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		r = xr
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case FormatTarBz2:
		r = bzip2.NewReader(f)
	case FormatTar:
		// No compression
	default:
		return fmt.Errorf("%s is not a tar format", format)
	}

	return extractTar(tar.NewReader(r), dest)
}

func extractTar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading tar header: %w", err)
		}

		// Skip PAX headers (global or per-file)
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := checkParents(dest, target); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 && hdr.Typeflag != tar.TypeSymlink {
			return fmt.Errorf("illegal file path in archive: %s replaces a symlink", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
			_ = os.Chtimes(target, hdr.ModTime, hdr.ModTime)
		case tar.TypeSymlink:
			if err := checkSymlink(dest, target, hdr.Linkname); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink %s -> %s: %w", target, hdr.Linkname, err)
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := checkParents(dest, source); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("failed to create hard link %s: %w", target, err)
			}
		default:
			// devices and fifos have no place in a toolchain package
		}
	}
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0600)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	return out.Close()
}

func extractZip(path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if err := checkParents(dest, target); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeEntry(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractRpm(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return fmt.Errorf("failed to read RPM: %w", err)
	}
	return rpm.ExpandPayload(dest)
}
