// Package pipeline implements the file pipelines that tasks use to process assets.
//
// A pipeline is an ordered list of steps. Each step receives the files produced by the
// previous one, so a typical pipeline starts with Src, transforms the files in memory and ends
// with Dest.
package pipeline

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/sourcemap"
)

func init() {
	gob.Register(&Src{})
	gob.Register(&Dest{})
	gob.Register(&Concat{})
	gob.Register(&Uglify{})
	gob.Register(&CSSMin{})
	gob.Register(&Rename{})
	gob.Register(&SourcemapsInit{})
	gob.Register(&SourcemapsWrite{})
	gob.Register(&Sass{})
	gob.Register(&LessToScss{})
	gob.Register(&Lint{})
	gob.Register(&Modernizr{})
	gob.Register(&Precompress{})
}

// File is a single file travelling through a pipeline
type File struct {
	// Base is the directory Path is relative to when the file gets written
	Base     string
	Path     string
	Contents []byte
	Map      *sourcemap.Map
}

// Relative returns Path relative to Base
func (f *File) Relative() string {
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return filepath.Base(f.Path)
	}
	return rel
}

// SetExt replaces the file extension
func (f *File) SetExt(ext string) {
	f.Path = strings.TrimSuffix(f.Path, filepath.Ext(f.Path)) + ext
}

// ExecFunc runs an external command in dir
type ExecFunc func(ctx context.Context, dir string, args []string) error

// Env holds everything steps need from the outside world
type Env struct {
	// Root is the project root. Clean refuses to delete anything outside of it unless forced.
	Root string
	Sass SassCompiler
	Exec ExecFunc

	minifierOnce sync.Once
	minifier     *minify.M
}

// Minifier returns the shared minifier with JS and CSS support
func (e *Env) Minifier() *minify.M {
	e.minifierOnce.Do(func() {
		e.minifier = minify.New()
		e.minifier.AddFunc(mimeJS, js.Minify)
		e.minifier.AddFunc(mimeCSS, css.Minify)
	})
	return e.minifier
}

// Step transforms the list of files in a pipeline
type Step interface {
	Name() string
	Apply(ctx context.Context, env *Env, files []*File) ([]*File, error)
}

// Pipeline is an ordered list of steps
type Pipeline struct {
	Name  string
	Steps []Step
}

// Describe returns a short human readable summary like "src | concat | dest"
func (p *Pipeline) Describe() string {
	names := make([]string, len(p.Steps))
	for idx, step := range p.Steps {
		names[idx] = step.Name()
	}
	return strings.Join(names, " | ")
}

// Run executes all steps and returns the files produced by the last one
func (p *Pipeline) Run(ctx context.Context, env *Env) ([]*File, error) {
	var files []*File
	var err error

	for idx, step := range p.Steps {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		buildlog.Log(ctx).Debug().
			Str("pipeline", p.Name).
			Int("files", len(files)).
			Msgf("step %d: %s", idx, step.Name())

		files, err = step.Apply(ctx, env, files)
		if err != nil {
			return nil, eris.Wrapf(err, "step %d (%s) failed", idx, step.Name())
		}
	}

	return files, nil
}

func readFile(match, base string) (*File, error) {
	content, err := os.ReadFile(match)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", match)
	}

	return &File{
		Base:     base,
		Path:     match,
		Contents: content,
	}, nil
}
