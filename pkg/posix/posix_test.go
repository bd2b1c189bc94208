package posix

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRunMkdirAndMove(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Run(dir, []string{"mkdir", "-p", "a/b", "c"}, io.Discard))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
	assert.DirExists(t, filepath.Join(dir, "c"))

	touch(t, filepath.Join(dir, "one.txt"))
	touch(t, filepath.Join(dir, "two.txt"))
	require.NoError(t, Run(dir, []string{"mv", "one.txt", "two.txt", "c"}, io.Discard))
	assert.FileExists(t, filepath.Join(dir, "c", "one.txt"))
	assert.FileExists(t, filepath.Join(dir, "c", "two.txt"))

	require.NoError(t, Run(dir, []string{"mv", "c/one.txt", "renamed.txt"}, io.Discard))
	assert.FileExists(t, filepath.Join(dir, "renamed.txt"))

	assert.Error(t, Run(dir, []string{"mv", "renamed.txt", "c/two.txt", "missing/x"}, io.Discard))
	assert.Error(t, Run(dir, []string{"mkdir", "a"}, io.Discard))
}

func TestRunRemove(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "out", "a.js"))
	touch(t, filepath.Join(dir, "b.js"))

	assert.Error(t, Run(dir, []string{"rm", "out"}, io.Discard))
	assert.Error(t, Run(dir, []string{"rm", "missing"}, io.Discard))

	require.NoError(t, Run(dir, []string{"rm", "-rf", "out", "b.js", "missing"}, io.Discard))
	assert.NoDirExists(t, filepath.Join(dir, "out"))
	assert.NoFileExists(t, filepath.Join(dir, "b.js"))

	assert.Error(t, Run(dir, []string{"ln", "a", "b"}, io.Discard))
}

func TestRunCopy(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "src", "a.js"))
	touch(t, filepath.Join(dir, "src", "sub", "b.js"))

	require.NoError(t, Run(dir, []string{"cp", "src/a.js", "copy.js"}, io.Discard))
	assert.FileExists(t, filepath.Join(dir, "copy.js"))
	assert.FileExists(t, filepath.Join(dir, "src", "a.js"))

	assert.Error(t, Run(dir, []string{"cp", "src", "out"}, io.Discard))

	require.NoError(t, Run(dir, []string{"cp", "-r", "src", "out"}, io.Discard))
	assert.FileExists(t, filepath.Join(dir, "out", "a.js"))
	assert.FileExists(t, filepath.Join(dir, "out", "sub", "b.js"))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "many"), 0o755))
	require.NoError(t, Run(dir, []string{"cp", "src/a.js", "copy.js", "many"}, io.Discard))
	assert.FileExists(t, filepath.Join(dir, "many", "a.js"))
	assert.FileExists(t, filepath.Join(dir, "many", "copy.js"))
}
