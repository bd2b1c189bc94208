package buildsys

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/pipeline"
)

func testContext(t *testing.T) context.Context {
	t.Helper()

	logger := zerolog.Nop()
	return buildlog.WithLogger(context.Background(), &logger)
}

func writeScript(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "tasks.star")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// copyFixture copies testdata/<name> into a temporary directory and returns its path
func copyFixture(t *testing.T, name string) string {
	t.Helper()

	src := filepath.Join("testdata", name)
	dest := t.TempDir()

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, content, 0o644)
	})
	require.NoError(t, err)

	return dest
}

// syncBuffer is a bytes.Buffer that's safe to share between concurrently running tasks
type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return strings.Fields(b.buf.String())
}

// fakeSass substitutes $brand and returns a single-segment map if one was requested
type fakeSass struct {
	lock  sync.Mutex
	paths []string
}

func (f *fakeSass) Compile(ctx context.Context, req pipeline.SassRequest) (pipeline.SassResult, error) {
	f.lock.Lock()
	f.paths = append(f.paths, req.Path)
	f.lock.Unlock()

	result := pipeline.SassResult{CSS: strings.ReplaceAll(req.Source, "$brand", "#2a6496")}
	if req.SourceMap {
		result.SourceMap = `{"version":3,"sources":["file://` + filepath.ToSlash(req.Path) + `"],"names":[],"mappings":"AAAA"}`
	}
	return result, nil
}

func taskNamesOf(tasks TaskList) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	return names
}

func TestShellWordsQuoting(t *testing.T) {
	argv := starlark.Tuple{
		starlark.String("FOO=bar"),
		starlark.String("echo"),
		starlark.String("two words"),
		starlark.String("it's"),
		starlark.String("plain"),
	}

	dir := t.TempDir()
	script := writeScript(t, dir, `
def configure():
    task("quoted", cmds = [`+argv.String()+`])
`)

	tasks, _, err := RunScript(testContext(t), script, dir, nil, true)
	require.NoError(t, err)
	require.Contains(t, tasks, "quoted")
	require.Len(t, tasks["quoted"].Cmds, 1)

	cmd, ok := tasks["quoted"].Cmds[0].(TaskCmdScript)
	require.True(t, ok)
	assert.Equal(t, `FOO=bar echo 'two words' $'it\'s' plain`, cmd.Content)
}
