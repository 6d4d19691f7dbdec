package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "src.epub")
	dst := filepath.Join(dir, "sub", "dst.epub")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	err := MoveFile(src, dst)
	require.NoError(t, err)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestCopyFilePreservesPermissions(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")
	require.NoError(t, os.WriteFile(src, []byte("pdf bytes"), 0640))

	err := CopyFile(src, dst)
	require.NoError(t, err)

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, srcInfo.Mode(), dstInfo.Mode())
}

func TestFilenameStem(t *testing.T) {
	assert.Equal(t, "My Book", FilenameStem("/library/My Book.epub"))
	assert.Equal(t, "report", FilenameStem("report.pdf"))
	assert.Equal(t, "noext", FilenameStem("/tmp/noext"))
}
