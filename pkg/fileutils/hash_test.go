package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0600))

	hash, err := HashFile(path)
	require.NoError(t, err)
	// sha256("hello world")
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hash)
}

func TestHashFileSameContentSameHash(t *testing.T) {
	dir := t.TempDir()

	pathA := filepath.Join(dir, "a.epub")
	pathB := filepath.Join(dir, "b.epub")
	require.NoError(t, os.WriteFile(pathA, []byte("identical bytes"), 0600))
	require.NoError(t, os.WriteFile(pathB, []byte("identical bytes"), 0600))

	hashA, err := HashFile(pathA)
	require.NoError(t, err)
	hashB, err := HashFile(pathB)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing.epub"))
	require.Error(t, err)
}
