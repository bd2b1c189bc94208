package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/globs"
)

// Src adds the files matching Patterns to the stream
type Src struct {
	Patterns []string
	// Base overrides the static prefix of each pattern
	Base string
	// AllowMissing skips literal paths that don't exist instead of failing
	AllowMissing bool
}

func (s *Src) Name() string {
	return "src"
}

func (s *Src) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	matches, err := globs.Resolve(s.Patterns, globs.Options{
		FilesOnly:    true,
		Base:         s.Base,
		AllowMissing: s.AllowMissing,
	})
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		buildlog.Log(ctx).Warn().Strs("patterns", s.Patterns).Msg("src patterns didn't match any files")
	}

	for _, match := range matches {
		file, err := readFile(match.Path, match.Base)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, nil
}

// Dest writes every file to Dir, keeping its path relative to its base
type Dest struct {
	Dir string
}

func (d *Dest) Name() string {
	return "dest"
}

func (d *Dest) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	written := 0
	for _, file := range files {
		target := filepath.Join(d.Dir, file.Relative())

		changed, err := writeIfChanged(target, file.Contents)
		if err != nil {
			return nil, err
		}

		if changed {
			written++
			buildlog.Log(ctx).Debug().Str("path", target).Msg("wrote file")
		}

		file.Base = d.Dir
		file.Path = target
	}

	buildlog.Log(ctx).Info().Msgf("%d of %d files in %s changed", written, len(files), d.Dir)
	return files, nil
}

// writeIfChanged writes content to path unless the file already has exactly that content.
// Unchanged files keep their mtime which keeps the up-to-date checks and watchers quiet.
func writeIfChanged(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil {
		if len(existing) == len(content) && xxhash.Sum64(existing) == xxhash.Sum64(content) {
			return false, nil
		}
	} else if !eris.Is(err, os.ErrNotExist) {
		return false, eris.Wrapf(err, "failed to read %s", path)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return false, eris.Wrapf(err, "failed to create directory for %s", path)
	}

	err = os.WriteFile(path, content, 0o644)
	if err != nil {
		return false, eris.Wrapf(err, "failed to write %s", path)
	}
	return true, nil
}
