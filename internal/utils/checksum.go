package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Checksum contains the checksum of a file
type Checksum struct {
	SHA256 string
	Size   int64
}

// CalculateChecksums calculates the checksum of a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return &Checksum{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   info.Size(),
	}, nil
}

// VerifySHA256 checks that the file at path has the expected sha256
func VerifySHA256(path, expected string) error {
	sum, err := CalculateChecksums(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sum.SHA256, expected) {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", path, expected, sum.SHA256)
	}
	return nil
}
