package buildsys

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/assetsys/pkg/sourcemap"
)

func loadSite(t *testing.T) (string, TaskList) {
	t.Helper()

	dir := copyFixture(t, "site")
	tasks, _, err := RunScript(testContext(t), filepath.Join(dir, "tasks.star"), dir, nil, true)
	require.NoError(t, err)

	return dir, tasks
}

func runSite(ctx context.Context, dir, name string, tasks TaskList) error {
	return RunTask(ctx, dir, name, tasks, RunOptions{
		Sass:   &fakeSass{},
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
}

func requireNonEmpty(t *testing.T, dir string, paths ...string) {
	t.Helper()

	for _, path := range paths {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path)))
		if assert.NoError(t, err, path) {
			assert.NotZero(t, info.Size(), path)
		}
	}
}

func TestBuildSite(t *testing.T) {
	dir, tasks := loadSite(t)

	// stale outputs from an earlier build
	writeFile(t, filepath.Join(dir, "static", "css", "old.css"), "old")
	writeFile(t, filepath.Join(dir, "static", "fonts", "removed", "old.woff"), "old")

	require.NoError(t, runSite(testContext(t), dir, "default", tasks))

	requireNonEmpty(t, dir,
		"static/js/vendor/jquery.min.js",
		"static/js/vendor/smooth-scroll.min.js",
		"static/js/vendor/collapse.min.js",
		"static/js/vendor/collapse.min.js.map",
		"static/js/vendor/modal.min.js",
		"static/js/vendor/locale/nl.min.js",
		"static/js/vendor/locale/nl.min.js.map",
		"static/js/vendor/modernizr-custom.min.js",
		"static/js/vendor/modernizr-custom.min.js.map",
		"static/js/main.min.js",
		"static/js/main.min.js.map",
		"static/css/style.css",
		"static/css/style.css.map",
		"static/fonts/bootstrap/glyphicons-halflings-regular.woff",
		"static/fonts/font-awesome/fontawesome-webfont.woff",
		"static/fonts/panno/panno.woff",
		"node_modules/ekko-lightbox/ekko-lightbox.scss",
	)

	assert.NoFileExists(t, filepath.Join(dir, "static", "css", "old.css"))
	assert.NoDirExists(t, filepath.Join(dir, "static", "fonts", "removed"))
	assert.NoFileExists(t, filepath.Join(dir, "static", "css", "_variables.css"))
	assert.NoFileExists(t, filepath.Join(dir, "static", "js", "vendor", "lightbox.min.js"))

	scss, err := os.ReadFile(filepath.Join(dir, "node_modules", "ekko-lightbox", "ekko-lightbox.scss"))
	require.NoError(t, err)
	assert.Contains(t, string(scss), "$modal-padding: 15px;")
	assert.Contains(t, string(scss), "padding: $modal-padding;")

	css, err := os.ReadFile(filepath.Join(dir, "static", "css", "style.css"))
	require.NoError(t, err)
	assert.Contains(t, string(css), "color: #2a6496;")
	assert.True(t, strings.HasSuffix(string(css), "/*# sourceMappingURL=style.css.map */\n"))

	mainJS, err := os.ReadFile(filepath.Join(dir, "static", "js", "main.min.js"))
	require.NoError(t, err)
	assert.Contains(t, string(mainJS), "//# sourceMappingURL=main.min.js.map")

	// gallery.js comes first because main.js is always appended last
	assert.Less(t, strings.Index(string(mainJS), "initGallery"), strings.Index(string(mainJS), "SmoothScroll"))

	data, err := os.ReadFile(filepath.Join(dir, "static", "js", "main.min.js.map"))
	require.NoError(t, err)
	m, err := sourcemap.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "main.min.js", m.File)
	assert.Equal(t, []string{"gallery.js", "main.js"}, m.Sources)
	assert.Len(t, m.SourcesContent, 2)

	// the final bundle needs a full build first
	require.NoError(t, runSite(testContext(t), dir, "javascript", tasks))
	bundle, err := os.ReadFile(filepath.Join(dir, "static", "js", "all.min.js"))
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "jQuery")
	assert.Contains(t, string(bundle), "SmoothScroll")
	assert.Contains(t, string(bundle), "initGallery")
}

func TestBuildSiteKeepsUnchangedOutputs(t *testing.T) {
	dir, tasks := loadSite(t)
	require.NoError(t, runSite(testContext(t), dir, "uglify", tasks))

	output := filepath.Join(dir, "static", "js", "main.min.js")
	before, err := os.Stat(output)
	require.NoError(t, err)

	require.NoError(t, runSite(testContext(t), dir, "uglify", tasks))
	after, err := os.Stat(output)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestLintErrorFailsUglify(t *testing.T) {
	dir, tasks := loadSite(t)
	writeFile(t, filepath.Join(dir, "js", "broken.js"), "function broken() {\n  undefinedHelper();\n}\n")

	err := runSite(testContext(t), dir, "eslint", tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error")

	err = runSite(testContext(t), dir, "uglify", tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task uglify failed due to its dependency eslint")
	assert.NoFileExists(t, filepath.Join(dir, "static", "js", "main.min.js"))
}

func TestBuildSiteDryRun(t *testing.T) {
	dir, tasks := loadSite(t)

	err := RunTask(testContext(t), dir, "build", tasks, RunOptions{DryRun: true, Sass: &fakeSass{}})
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(dir, "static", "js"))
	assert.NoDirExists(t, filepath.Join(dir, "static", "css"))
	assert.FileExists(t, filepath.Join(dir, "static", "fonts", "panno", "panno.woff"))
}
