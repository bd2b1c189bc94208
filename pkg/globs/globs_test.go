package globs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFiles(t *testing.T, basedir string, paths ...string) {
	t.Helper()

	for _, p := range paths {
		fullpath := filepath.Join(basedir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullpath), 0o755))
		require.NoError(t, os.WriteFile(fullpath, []byte(p), 0o644))
	}
}

func relPaths(t *testing.T, base string, matches []Match) []string {
	t.Helper()

	result := make([]string, len(matches))
	for idx, m := range matches {
		rel, err := filepath.Rel(base, m.Path)
		require.NoError(t, err)
		result[idx] = filepath.ToSlash(rel)
	}
	return result
}

func TestResolveKeepsOrderAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "js/a.js", "js/b.js", "js/main.js", "js/readme.md")

	matches, err := Resolve([]string{
		filepath.Join(dir, "js/*.js"),
		"!" + filepath.Join(dir, "js/main.js"),
		filepath.Join(dir, "js/main.js"),
	}, Options{FilesOnly: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"js/a.js", "js/b.js", "js/main.js"}, relPaths(t, dir, matches))
	for _, m := range matches {
		assert.Equal(t, filepath.Join(dir, "js"), m.Base)
	}
}

func TestResolveNegationOnlyAffectsEarlierPatterns(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "fonts/a.woff", "fonts/panno/p.woff", "css/site.css")

	matches, err := Resolve([]string{
		filepath.Join(dir, "fonts/**"),
		"!" + filepath.Join(dir, "fonts"),
		"!" + filepath.Join(dir, "fonts/panno"),
		"!" + filepath.Join(dir, "fonts/panno/**"),
		filepath.Join(dir, "css"),
	}, Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"fonts/a.woff", "css"}, relPaths(t, dir, matches))
}

func TestResolveLiteralPaths(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "node_modules/jquery/dist/jquery.min.js")

	matches, err := Resolve([]string{filepath.Join(dir, "node_modules/jquery/dist/jquery.min.js")}, Options{FilesOnly: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "jquery.min.js", matches[0].Relative())

	_, err = Resolve([]string{filepath.Join(dir, "node_modules/missing.js")}, Options{FilesOnly: true})
	assert.Error(t, err)

	matches, err = Resolve([]string{filepath.Join(dir, "node_modules/missing.js")}, Options{AllowMissing: true})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestResolveMissingGlobBase(t *testing.T) {
	matches, err := Resolve([]string{filepath.Join(t.TempDir(), "nothing", "*.js")}, Options{FilesOnly: true})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestResolveBaseOverride(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "src/sub/a.js")

	matches, err := Resolve([]string{filepath.Join(dir, "src/**/*.js")}, Options{FilesOnly: true, Base: dir})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join("src", "sub", "a.js"), matches[0].Relative())
}

func TestBase(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("sass"), Base("sass/**/*.scss"))
	assert.Equal(t, filepath.FromSlash("node_modules/bootstrap/dist/fonts"), Base("node_modules/bootstrap/dist/fonts/*.*"))
	assert.Equal(t, filepath.FromSlash("node_modules/moment/locale"), Base("node_modules/moment/locale/nl.js"))
	assert.Equal(t, "js", Base("!js/main.js"))
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"/p/js/*.js", "!/p/js/vendor.js"}

	ok, err := MatchAny(patterns, "/p/js/main.js")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchAny(patterns, "/p/js/vendor.js")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = MatchAny(patterns, "/p/sass/site.scss")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchPath(t *testing.T) {
	ok, err := MatchPath("/p/sass/**/*.scss", "/p/sass/components/_nav.scss")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchPath("!/p/js/vendor.js", "/p/js/vendor.js")
	require.NoError(t, err)
	assert.True(t, ok, "the negation marker is ignored")

	ok, err = MatchPath("/p/js/*.js", "/p/js/lib/util.js")
	require.NoError(t, err)
	assert.False(t, ok)
}
