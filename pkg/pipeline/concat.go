package pipeline

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/ngld/assetsys/pkg/sourcemap"
)

// Concat joins all files into a single file called File, placed in the base of the first file
type Concat struct {
	File    string
	NewLine string
}

func (c *Concat) Name() string {
	return "concat"
}

func (c *Concat) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	if len(files) == 0 {
		return files, nil
	}

	sep := c.NewLine
	hasMap := false
	for _, file := range files {
		if file.Map != nil {
			hasMap = true
			break
		}
	}

	buffer := bytes.Buffer{}
	var builder *sourcemap.Builder
	if hasMap {
		builder = sourcemap.NewBuilder(c.File)
	}

	for idx, file := range files {
		if idx > 0 {
			buffer.WriteString(sep)
			if builder != nil {
				builder.Append(sep, nil)
			}
		}

		buffer.Write(file.Contents)
		if builder != nil {
			builder.Append(string(file.Contents), file.Map)
		}
	}

	result := &File{
		Base:     files[0].Base,
		Path:     filepath.Join(files[0].Base, c.File),
		Contents: buffer.Bytes(),
	}
	if builder != nil {
		result.Map = builder.Map()
	}

	return []*File{result}, nil
}
