package pipeline

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSass struct {
	requests []SassRequest
	fail     map[string]bool
}

func (f *fakeSass) Compile(ctx context.Context, req SassRequest) (SassResult, error) {
	f.requests = append(f.requests, req)
	if f.fail[filepath.Base(req.Path)] {
		return SassResult{}, eris.Errorf("%s: expected \";\"", req.Path)
	}

	result := SassResult{CSS: strings.ReplaceAll(req.Source, "$color", "red")}
	if req.SourceMap {
		result.SourceMap = `{"version":3,"sources":["file://` + filepath.ToSlash(req.Path) + `"],"names":[],"mappings":"AAAA"}`
	}
	return result, nil
}

func TestSassCompilesAndSkipsPartials(t *testing.T) {
	compiler := &fakeSass{}
	env := &Env{Sass: compiler}
	files := []*File{
		{Base: "/src/sass", Path: "/src/sass/main.scss", Contents: []byte("a{color:$color}")},
		{Base: "/src/sass", Path: "/src/sass/_vars.scss", Contents: []byte("$color: red;")},
		{Base: "/src/sass", Path: "/src/sass/print.sass", Contents: []byte("a\n  color: $color")},
		{Base: "/src/sass", Path: "/src/sass/plain.css", Contents: []byte("b{}")},
	}

	step := &Sass{OutputStyle: "compressed", IncludePaths: []string{"/vendor"}}
	result, err := step.Apply(context.Background(), env, files)
	require.NoError(t, err)

	assert.Equal(t, []string{"main.css", "print.css", "plain.css"}, relPaths(result))
	assert.Equal(t, "a{color:red}", string(result[0].Contents))

	require.Len(t, compiler.requests, 2)
	assert.Equal(t, []string{filepath.FromSlash("/src/sass"), "/vendor"}, compiler.requests[0].IncludePaths)
	assert.Equal(t, "compressed", compiler.requests[0].OutputStyle)
	assert.False(t, compiler.requests[0].Indented)
	assert.True(t, compiler.requests[1].Indented)
	assert.False(t, compiler.requests[0].SourceMap)
}

func TestSassKeepsSourceMaps(t *testing.T) {
	env := &Env{Sass: &fakeSass{}}
	files := []*File{{Base: "/src/sass", Path: "/src/sass/main.scss", Contents: []byte("a{color:$color}")}}

	files, err := (&SourcemapsInit{}).Apply(context.Background(), env, files)
	require.NoError(t, err)

	files, err = (&Sass{}).Apply(context.Background(), env, files)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].Map)
	assert.Equal(t, []string{"main.scss"}, files[0].Map.Sources)
}

func TestSassErrors(t *testing.T) {
	newFiles := func() []*File {
		return []*File{
			{Base: "/src", Path: "/src/broken.scss", Contents: []byte("a{")},
			{Base: "/src", Path: "/src/main.scss", Contents: []byte("a{}")},
		}
	}
	env := &Env{Sass: &fakeSass{fail: map[string]bool{"broken.scss": true}}}

	result, err := (&Sass{}).Apply(context.Background(), env, newFiles())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.css"}, relPaths(result))

	_, err = (&Sass{HaltOnError: true}).Apply(context.Background(), env, newFiles())
	assert.ErrorContains(t, err, "broken.scss")

	_, err = (&Sass{}).Apply(context.Background(), &Env{}, newFiles())
	assert.Error(t, err)
}

func TestDartSass(t *testing.T) {
	binary, err := exec.LookPath("sass")
	if err != nil {
		t.Skip("sass is not installed")
	}

	compiler := &DartSass{Binary: binary, Timeout: 30 * time.Second}
	defer compiler.Close()

	_, err = compiler.start(context.Background())
	if err != nil {
		t.Skipf("sass does not support the embedded protocol: %s", err)
	}

	result, err := compiler.Compile(context.Background(), SassRequest{
		Source:      "$c: red;\na { color: $c; }",
		Path:        filepath.Join(t.TempDir(), "main.scss"),
		OutputStyle: "compressed",
		SourceMap:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", strings.TrimSpace(result.CSS))
	assert.NotEmpty(t, result.SourceMap)
}
