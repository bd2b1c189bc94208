package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModernizrScan(t *testing.T) {
	files := []*File{
		jsFile("a.js", "if (Modernizr.flexbox && Modernizr['touchevents']) {}\nModernizr.on('webp', cb);"),
		jsFile("b.js", "var x = Modernizr.prefixed('transform');\nif (Modernizr.customthing) {}"),
	}

	m := &Modernizr{Options: []string{"setClasses"}, Detects: map[string]string{"customthing": "custom/thing"}}
	detects, options := m.Scan(context.Background(), files)
	assert.Equal(t, []string{"css/flexbox", "custom/thing", "touchevents"}, detects)
	assert.Equal(t, []string{"prefixed", "setClasses"}, options)
}

func TestModernizrRunsCommand(t *testing.T) {
	var config modernizrConfig
	var calledArgs []string
	var calledDir string

	env := &Env{
		Root: "/project",
		Exec: func(ctx context.Context, dir string, args []string) error {
			calledArgs = args
			calledDir = dir
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}

			err = json.Unmarshal(data, &config)
			if err != nil {
				return err
			}

			return os.WriteFile(args[4], []byte("/* modernizr */"), 0o644)
		},
	}

	files := []*File{jsFile("a.js", "Modernizr.svg;")}
	result, err := (&Modernizr{}).Apply(context.Background(), env, files)
	require.NoError(t, err)

	require.Len(t, result, 1)
	assert.Equal(t, filepath.Join("/src/js", "modernizr-custom.js"), result[0].Path)
	assert.Equal(t, "/* modernizr */", string(result[0].Contents))
	assert.Equal(t, "modernizr", calledArgs[0])
	assert.Equal(t, "/project", calledDir)
	assert.Equal(t, []string{"test/svg"}, config.FeatureDetects)

	result, err = (&Modernizr{Output: "features.js"}).Apply(context.Background(), env, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/project", "features.js"), result[0].Path)
}

func TestModernizrCommandFailure(t *testing.T) {
	env := &Env{Exec: func(ctx context.Context, dir string, args []string) error {
		return eris.New("command not found")
	}}

	_, err := (&Modernizr{Command: []string{"missing-tool", "{config}"}}).Apply(context.Background(), env, nil)
	assert.ErrorContains(t, err, "command not found")

	_, err = (&Modernizr{}).Apply(context.Background(), &Env{}, nil)
	assert.Error(t, err)
}
