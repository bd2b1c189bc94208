package pipeline

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/ngld/assetsys/pkg/sourcemap"
)

const (
	mimeJS  = "application/javascript"
	mimeCSS = "text/css"
)

// Uglify minifies JavaScript files.
//
// Files carrying a source map are split into chunks of consecutive lines that come from the
// same source. Every chunk is minified on its own and written to its own line so the map can
// keep pointing at the right source.
type Uglify struct {
	// KeepVarNames disables renaming of local variables
	KeepVarNames bool
}

func (u *Uglify) Name() string {
	return "uglify"
}

func (u *Uglify) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	m := env.Minifier()
	if u.KeepVarNames {
		m = minify.New()
		m.Add(mimeJS, &js.Minifier{KeepVarNames: true})
	}

	for _, file := range files {
		if file.Map == nil {
			out, err := m.Bytes(mimeJS, file.Contents)
			if err != nil {
				return nil, eris.Wrapf(err, "failed to minify %s", file.Path)
			}

			file.Contents = out
			continue
		}

		builder := sourcemap.NewBuilder(filepath.Base(file.Path))
		buffer := bytes.Buffer{}

		for _, chunk := range splitChunks(file.Contents, file.Map) {
			out, err := m.Bytes(mimeJS, chunk.content)
			if err != nil {
				return nil, eris.Wrapf(err, "failed to minify %s (lines %d-%d)", file.Path, chunk.startLine+1, chunk.endLine)
			}

			out = bytes.TrimRight(out, "\n")
			if len(out) == 0 {
				continue
			}

			if buffer.Len() > 0 {
				buffer.WriteString(";\n")
				builder.Append(";\n", nil)
			}

			buffer.Write(out)
			if chunk.source >= 0 {
				sourceContent := ""
				if chunk.source < len(file.Map.SourcesContent) {
					sourceContent = file.Map.SourcesContent[chunk.source]
				}
				builder.AppendSegment(string(out), file.Map.Sources[chunk.source], sourceContent, chunk.sourceLine)
			} else {
				builder.Append(string(out), nil)
			}
		}

		file.Contents = buffer.Bytes()
		file.Map = builder.Map()
	}

	return files, nil
}

type chunk struct {
	content    []byte
	source     int
	sourceLine int
	startLine  int
	endLine    int
}

// splitChunks groups the generated lines of content by the source of their first mapped
// segment. Unmapped lines stay with the preceding chunk.
func splitChunks(content []byte, m *sourcemap.Map) []chunk {
	lines := bytes.Split(content, []byte("\n"))
	chunks := make([]chunk, 0)
	current := chunk{source: -1}

	flush := func(end int) {
		if end > current.startLine {
			current.endLine = end
			current.content = bytes.Join(lines[current.startLine:end], []byte("\n"))
			chunks = append(chunks, current)
		}
	}

	for idx := range lines {
		source := -1
		sourceLine := 0
		if idx < len(m.Lines) {
			for _, seg := range m.Lines[idx] {
				if !seg.Unmapped {
					source = seg.Source
					sourceLine = seg.SourceLine
					break
				}
			}
		}

		if source < 0 || source == current.source {
			continue
		}

		flush(idx)
		current = chunk{source: source, sourceLine: sourceLine, startLine: idx}
	}
	flush(len(lines))

	return chunks
}

// CSSMin minifies CSS files. Precision limits the number of significant digits, 0 keeps them.
type CSSMin struct {
	Precision int
}

func (c *CSSMin) Name() string {
	return "cssmin"
}

func (c *CSSMin) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	minifier := &css.Minifier{Precision: c.Precision}

	for _, file := range files {
		buffer := bytes.Buffer{}
		err := minifier.Minify(env.Minifier(), &buffer, bytes.NewReader(file.Contents), nil)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to minify %s", file.Path)
		}

		file.Contents = buffer.Bytes()
		file.Map = collapseMap(file)
	}

	return files, nil
}

// collapseMap reduces the file's map to a single segment pointing at the first mapped source
// position. It's used after transforms that put everything on one line.
func collapseMap(file *File) *sourcemap.Map {
	if file.Map == nil {
		return nil
	}

	builder := sourcemap.NewBuilder(filepath.Base(file.Path))
	for _, line := range file.Map.Lines {
		for _, seg := range line {
			if seg.Unmapped {
				continue
			}

			sourceContent := ""
			if seg.Source < len(file.Map.SourcesContent) {
				sourceContent = file.Map.SourcesContent[seg.Source]
			}
			builder.AppendSegment(string(file.Contents), file.Map.Sources[seg.Source], sourceContent, seg.SourceLine)
			return builder.Map()
		}
	}

	builder.Append(string(file.Contents), nil)
	return builder.Map()
}
