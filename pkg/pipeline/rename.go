package pipeline

import (
	"context"
	"path/filepath"
	"strings"
)

// Rename changes the relative path of every file. Empty fields leave that part unchanged.
type Rename struct {
	Prefix   string
	Suffix   string
	Basename string
	Extname  string
	Dirname  string
}

func (r *Rename) Name() string {
	return "rename"
}

func (r *Rename) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	for _, file := range files {
		file.Path = filepath.Join(file.Base, r.rename(file.Relative()))
	}
	return files, nil
}

func (r *Rename) rename(rel string) string {
	dir, name := filepath.Split(rel)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if r.Dirname != "" {
		dir = r.Dirname
	}
	if r.Basename != "" {
		stem = r.Basename
	}
	if r.Extname != "" {
		ext = r.Extname
	}

	return filepath.Join(dir, r.Prefix+stem+r.Suffix+ext)
}
