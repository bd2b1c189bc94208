package cmd

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/buildsys"
	"github.com/ngld/assetsys/pkg/pipeline"
)

const fakeModernizr = `#!/bin/sh
# called as: modernizr -c <config> -d <output>
printf 'window.Modernizr={flexbox:true,touchevents:false};\n' > "$4"
`

type fakeSass struct{}

func (fakeSass) Compile(ctx context.Context, req pipeline.SassRequest) (pipeline.SassResult, error) {
	result := pipeline.SassResult{CSS: strings.ReplaceAll(req.Source, "$brand", "#2a6496")}
	if req.SourceMap {
		result.SourceMap = `{"version":3,"sources":["file://` + filepath.ToSlash(req.Path) + `"],"names":[],"mappings":"AAAA"}`
	}
	return result, nil
}

func testContext() context.Context {
	logger := zerolog.Nop()
	return buildlog.WithLogger(context.Background(), &logger)
}

// copySite copies the buildsys acceptance site into a temporary directory
func copySite(t *testing.T) string {
	t.Helper()

	src := filepath.Join("..", "pkg", "buildsys", "testdata", "site")
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

func TestWriteStarter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")

	path, err := writeStarter(dir)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, starterScript, content)

	_, err = writeStarter(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStarterScriptParses(t *testing.T) {
	dir := t.TempDir()
	path, err := writeStarter(dir)
	require.NoError(t, err)

	ctx := testContext()

	for _, options := range []map[string]string{nil, {"compress": "true"}} {
		tasks, _, err := buildsys.RunScript(ctx, path, dir, options, true)
		require.NoError(t, err)
		require.NoError(t, buildsys.ValidateGraph(tasks))

		for _, name := range []string{"clean", "vendor", "eslint", "modernizr", "uglify", "sass", "javascript", "watch", "build", "default"} {
			assert.Contains(t, tasks, name)
		}
	}
}

func TestStarterScriptBuildsSite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the fake modernizr binary is a shell script")
	}

	dir := copySite(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "tasks.star")))
	script, err := writeStarter(dir)
	require.NoError(t, err)

	bin := filepath.Join(dir, "node_modules", ".bin", "modernizr")
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte(fakeModernizr), 0o755))

	tasks, _, err := buildsys.RunScript(testContext(), script, dir, nil, true)
	require.NoError(t, err)

	opts := buildsys.RunOptions{Sass: fakeSass{}, Stdout: io.Discard, Stderr: io.Discard}
	require.NoError(t, buildsys.RunTask(testContext(), dir, "default", tasks, opts))
	require.NoError(t, buildsys.RunTask(testContext(), dir, "javascript", tasks, opts))

	for _, path := range []string{
		"static/js/vendor/jquery.min.js",
		"static/js/vendor/ekko-lightbox.min.js",
		"static/js/vendor/transition.min.js",
		"static/js/vendor/modernizr-custom.min.js",
		"static/js/vendor/modernizr-custom.min.js.map",
		"static/js/main.min.js",
		"static/js/all.min.js",
		"static/css/style.css",
		"static/fonts/font-awesome/fontawesome-webfont.woff",
		"static/fonts/panno/panno.woff",
	} {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path)))
		if assert.NoError(t, err, path) {
			assert.NotZero(t, info.Size(), path)
		}
	}

	modernizr, err := os.ReadFile(filepath.Join(dir, "static", "js", "vendor", "modernizr-custom.min.js"))
	require.NoError(t, err)
	assert.Contains(t, string(modernizr), "flexbox")

	compressed, _, err := buildsys.RunScript(testContext(), script, dir, map[string]string{"compress": "true"}, true)
	require.NoError(t, err)
	assert.Contains(t, compressed["javascript"].Cmds[0].Describe(), "precompress | dest")
}

func TestRootCommands(t *testing.T) {
	names := []string{}
	for _, sub := range newRootCmd().Commands() {
		names = append(names, sub.Name())
	}

	assert.ElementsMatch(t, []string{"task", "init", "cp", "mv", "rm", "mkdir"}, names)
}
