package fileutils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

const hashBufferSize = 1 << 20

// HashFile computes the SHA-256 digest of the file at path, streamed in 1MB
// chunks, and returns it as a lowercase hex string.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.WithStack(err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
