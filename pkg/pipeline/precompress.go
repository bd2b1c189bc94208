package pipeline

import (
	"bytes"
	"context"
	"io"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
)

var compressors = map[string]func(io.Writer) io.WriteCloser{
	"gz": func(w io.Writer) io.WriteCloser {
		writer, _ := gzip.NewWriterLevel(w, gzip.BestCompression)
		return writer
	},
	"br": func(w io.Writer) io.WriteCloser {
		return brotli.NewWriterLevel(w, brotli.BestCompression)
	},
}

// Precompress adds a compressed sibling (<name>.gz, <name>.br) for every file of at least
// MinSize bytes
type Precompress struct {
	Formats []string
	MinSize int
}

func (p *Precompress) Name() string {
	return "precompress"
}

func (p *Precompress) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	formats := p.Formats
	if len(formats) == 0 {
		formats = []string{"gz", "br"}
	}

	for _, format := range formats {
		if _, ok := compressors[format]; !ok {
			return nil, eris.Errorf("unsupported compression format %s", format)
		}
	}

	result := make([]*File, 0, len(files)*(len(formats)+1))
	for _, file := range files {
		result = append(result, file)

		switch filepath.Ext(file.Path) {
		case ".map", ".gz", ".br":
			continue
		}
		if len(file.Contents) < p.MinSize {
			continue
		}

		for _, format := range formats {
			buffer := bytes.Buffer{}
			writer := compressors[format](&buffer)

			_, err := writer.Write(file.Contents)
			if err == nil {
				err = writer.Close()
			}
			if err != nil {
				return nil, eris.Wrapf(err, "failed to compress %s", file.Path)
			}

			result = append(result, &File{
				Base:     file.Base,
				Path:     file.Path + "." + format,
				Contents: buffer.Bytes(),
			})
		}
	}

	return result, nil
}
