package pipeline

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/sourcemap"
)

// SassRequest describes a single stylesheet compilation
type SassRequest struct {
	Source       string
	Path         string
	Indented     bool
	OutputStyle  string
	IncludePaths []string
	SourceMap    bool
}

// SassResult holds the compiled CSS and, if requested, the JSON source map
type SassResult struct {
	CSS       string
	SourceMap string
}

// SassCompiler compiles Sass / SCSS sources to CSS
type SassCompiler interface {
	Compile(ctx context.Context, req SassRequest) (SassResult, error)
}

// Sass compiles .scss and .sass files to CSS. Partials (names starting with "_") are dropped
// from the stream. Compile errors are logged and the failing file is dropped unless
// HaltOnError is set.
type Sass struct {
	OutputStyle  string
	Precision    int
	IncludePaths []string
	HaltOnError  bool
}

func (s *Sass) Name() string {
	return "sass"
}

func (s *Sass) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	if env.Sass == nil {
		return nil, eris.New("no sass compiler configured")
	}

	if s.Precision != 0 && s.Precision != 10 {
		buildlog.Log(ctx).Debug().Msgf("Dart Sass always uses a precision of 10, ignoring %d", s.Precision)
	}

	result := make([]*File, 0, len(files))
	for _, file := range files {
		ext := filepath.Ext(file.Path)
		if ext != ".scss" && ext != ".sass" {
			result = append(result, file)
			continue
		}

		if strings.HasPrefix(filepath.Base(file.Path), "_") {
			continue
		}

		includes := append([]string{filepath.Dir(file.Path)}, s.IncludePaths...)
		out, err := env.Sass.Compile(ctx, SassRequest{
			Source:       string(file.Contents),
			Path:         file.Path,
			Indented:     ext == ".sass",
			OutputStyle:  s.OutputStyle,
			IncludePaths: includes,
			SourceMap:    file.Map != nil,
		})
		if err != nil {
			if s.HaltOnError {
				return nil, eris.Wrapf(err, "failed to compile %s", file.Path)
			}

			buildlog.Log(ctx).Error().Err(err).Str("path", file.Path).Msgf("failed to compile %s", file.Relative())
			continue
		}

		file.Contents = []byte(out.CSS)
		file.SetExt(".css")

		if file.Map != nil {
			file.Map = nil
			if out.SourceMap != "" {
				m, err := sourcemap.Parse([]byte(out.SourceMap))
				if err != nil {
					return nil, eris.Wrapf(err, "compiler returned an invalid map for %s", file.Path)
				}

				relativizeSources(m, file.Base)
				file.Map = m
			}
		}

		result = append(result, file)
	}

	return result, nil
}

// relativizeSources rewrites file: URLs in the map's sources to paths relative to base
func relativizeSources(m *sourcemap.Map, base string) {
	for idx, source := range m.Sources {
		if !strings.HasPrefix(source, "file:") {
			continue
		}

		parsed, err := url.Parse(source)
		if err != nil {
			continue
		}

		rel, err := filepath.Rel(base, filepath.FromSlash(parsed.Path))
		if err == nil {
			m.Sources[idx] = filepath.ToSlash(rel)
		}
	}
}

// DartSass compiles stylesheets through the Dart Sass embedded protocol. The sass process is
// started on first use and shared until Close is called.
type DartSass struct {
	Binary  string
	Timeout time.Duration

	lock       sync.Mutex
	transpiler *godartsass.Transpiler
}

func (d *DartSass) start(ctx context.Context) (*godartsass.Transpiler, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.transpiler != nil {
		return d.transpiler, nil
	}

	logger := buildlog.Log(ctx)
	transpiler, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.Binary,
		Timeout:                  d.Timeout,
		LogEventHandler: func(event godartsass.LogEvent) {
			switch event.Type {
			case godartsass.LogEventTypeDebug:
				logger.Debug().Str("module", "sass").Msg(event.Message)
			default:
				logger.Warn().Str("module", "sass").Msg(event.Message)
			}
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to start %s", d.Binary)
	}

	d.transpiler = transpiler
	return transpiler, nil
}

func (d *DartSass) Compile(ctx context.Context, req SassRequest) (SassResult, error) {
	transpiler, err := d.start(ctx)
	if err != nil {
		return SassResult{}, err
	}

	args := godartsass.Args{
		Source:                  req.Source,
		URL:                     (&url.URL{Scheme: "file", Path: filepath.ToSlash(req.Path)}).String(),
		OutputStyle:             godartsass.OutputStyleExpanded,
		SourceSyntax:            godartsass.SourceSyntaxSCSS,
		IncludePaths:            req.IncludePaths,
		EnableSourceMap:         req.SourceMap,
		SourceMapIncludeSources: req.SourceMap,
	}
	if req.OutputStyle == "compressed" {
		args.OutputStyle = godartsass.OutputStyleCompressed
	}
	if req.Indented {
		args.SourceSyntax = godartsass.SourceSyntaxSASS
	}

	res, err := transpiler.Execute(args)
	if err != nil {
		return SassResult{}, err
	}

	return SassResult{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the sass process if it was started
func (d *DartSass) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.transpiler == nil {
		return nil
	}

	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}
