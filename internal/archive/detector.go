package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Format is the container format of a package archive
type Format int

const (
	FormatUnknown Format = iota
	FormatTar
	FormatTarGz
	FormatTarXz
	FormatTarZst
	FormatTarBz2
	FormatZip
	FormatRpm
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarZst:
		return "tar.zst"
	case FormatTarBz2:
		return "tar.bz2"
	case FormatZip:
		return "zip"
	case FormatRpm:
		return "rpm"
	default:
		return "unknown"
	}
}

// Magic bytes for format detection
var (
	gzipMagic  = []byte{0x1F, 0x8B}
	xzMagic    = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	zstdMagic  = []byte{0x28, 0xB5, 0x2F, 0xFD}
	bzip2Magic = []byte("BZh")
	zipMagic   = []byte("PK\x03\x04")
	rpmMagic   = []byte{0xED, 0xAB, 0xEE, 0xDB}
	// "ustar" at offset 257 of the first tar header
	tarMagic = []byte("ustar")
)

// extensions maps archive suffixes to formats, longest first
var extensions = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".tar.zst", FormatTarZst},
	{".tar.bz2", FormatTarBz2},
	{".tgz", FormatTarGz},
	{".txz", FormatTarXz},
	{".tar", FormatTar},
	{".zip", FormatZip},
	{".rpm", FormatRpm},
}

// DetectFormat determines the archive format based on magic bytes, falling
// back to the file extension
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	// Read first 512 bytes for magic byte detection
	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return FormatUnknown, err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz, nil
	case bytes.HasPrefix(header, xzMagic):
		return FormatTarXz, nil
	case bytes.HasPrefix(header, zstdMagic):
		return FormatTarZst, nil
	case bytes.HasPrefix(header, bzip2Magic):
		return FormatTarBz2, nil
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip, nil
	case bytes.HasPrefix(header, rpmMagic):
		return FormatRpm, nil
	case len(header) >= 262 && bytes.Equal(header[257:262], tarMagic):
		return FormatTar, nil
	}

	return FormatFromName(path), nil
}

// FormatFromName determines the archive format from the file name only
func FormatFromName(path string) Format {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range extensions {
		if strings.HasSuffix(base, ext.suffix) {
			return ext.format
		}
	}
	return FormatUnknown
}

// TrimExtension strips a known archive extension from a file name:
// "boost-1.77.tar.gz" becomes "boost-1.77"
func TrimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext.suffix) {
			return name[:len(name)-len(ext.suffix)]
		}
	}
	return name
}
