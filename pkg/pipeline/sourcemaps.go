package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetsys/pkg/sourcemap"
)

const sourceRoot = "/source/"

var mapCommentRe = regexp.MustCompile(`(?m)(?://[#@]|/\*[#@])\s*sourceMappingURL=(\S+?)\s*(?:\*/)?\s*$`)

// SourcemapsInit attaches an identity source map to every file that doesn't have one yet
type SourcemapsInit struct {
	// LoadMaps picks up existing maps referenced by a sourceMappingURL comment
	LoadMaps bool
}

func (s *SourcemapsInit) Name() string {
	return "sourcemaps_init"
}

func (s *SourcemapsInit) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	for _, file := range files {
		if file.Map == nil && s.LoadMaps {
			m, err := loadMap(file)
			if err != nil {
				return nil, err
			}
			file.Map = m
		}

		if file.Map == nil {
			file.Map = sourcemap.Identity(filepath.ToSlash(file.Relative()), string(file.Contents))
		}
	}
	return files, nil
}

// SourcemapsWrite emits the map of every file that has one. With an empty Dir the map is
// inlined as a data URL, otherwise it's written to Dir (relative to the file's base) as
// <name>.map.
type SourcemapsWrite struct {
	Dir string
}

func (s *SourcemapsWrite) Name() string {
	return "sourcemaps_write"
}

func (s *SourcemapsWrite) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	result := make([]*File, 0, len(files))

	for _, file := range files {
		result = append(result, file)
		if file.Map == nil {
			continue
		}

		m := file.Map
		m.File = filepath.Base(file.Path)
		m.SourceRoot = sourceRoot

		data, err := m.Bytes()
		if err != nil {
			return nil, eris.Wrapf(err, "failed to encode source map for %s", file.Path)
		}

		var url string
		if s.Dir == "" {
			url = "data:application/json;charset=utf8;base64," + base64.StdEncoding.EncodeToString(data)
		} else {
			mapRel := filepath.Join(s.Dir, file.Relative()+".map")
			url, err = filepath.Rel(filepath.Dir(file.Relative()), mapRel)
			if err != nil {
				return nil, eris.Wrapf(err, "failed to determine map location for %s", file.Path)
			}

			result = append(result, &File{
				Base:     file.Base,
				Path:     filepath.Join(file.Base, mapRel),
				Contents: data,
			})
		}

		file.Contents = appendMapComment(file.Contents, filepath.Ext(file.Path), filepath.ToSlash(url))
		file.Map = nil
	}

	return result, nil
}

// loadMap reads the map referenced by the last sourceMappingURL comment and strips the
// comment. It returns nil if there's no comment or the map file is missing.
func loadMap(file *File) (*sourcemap.Map, error) {
	matches := mapCommentRe.FindAllSubmatchIndex(file.Contents, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	last := matches[len(matches)-1]
	url := string(file.Contents[last[2]:last[3]])

	var data []byte
	if strings.HasPrefix(url, "data:") {
		comma := strings.IndexByte(url, ',')
		if comma < 0 || !strings.HasSuffix(url[:comma], ";base64") {
			return nil, eris.Errorf("unsupported inline source map in %s", file.Path)
		}

		var err error
		data, err = base64.StdEncoding.DecodeString(url[comma+1:])
		if err != nil {
			return nil, eris.Wrapf(err, "failed to decode inline source map in %s", file.Path)
		}
	} else {
		var err error
		data, err = os.ReadFile(filepath.Join(filepath.Dir(file.Path), filepath.FromSlash(url)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read source map for %s", file.Path)
		}
	}

	m, err := sourcemap.Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse source map for %s", file.Path)
	}

	file.Contents = append(file.Contents[:last[0]:last[0]], file.Contents[last[1]:]...)
	return m, nil
}

func appendMapComment(content []byte, ext, url string) []byte {
	text := strings.TrimRight(string(content), "\n")
	if ext == ".css" {
		return []byte(fmt.Sprintf("%s\n/*# sourceMappingURL=%s */\n", text, url))
	}
	return []byte(fmt.Sprintf("%s\n//# sourceMappingURL=%s\n", text, url))
}
