package checksum

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// MismatchError reports an archive whose content hash differs from the recorded one.
type MismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("BLAKE3 mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// BLAKE3File computes the BLAKE3 hash of a file
func BLAKE3File(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Verify hashes filename and compares it with expected.
func Verify(filename, expected string) error {
	actual, err := BLAKE3File(filename)
	if err != nil {
		return fmt.Errorf("failed to calculate BLAKE3: %w", err)
	}
	if actual != expected {
		return &MismatchError{Path: filename, Expected: expected, Actual: actual}
	}
	return nil
}
