package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/globs"
)

// Clean deletes every path matched by patterns. Negated patterns protect paths: a matched
// directory that contains a protected path is kept while its other matched children are still
// deleted. Paths outside of root are refused unless force is set.
func Clean(ctx context.Context, root string, patterns []string, force bool) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return eris.Wrapf(err, "failed to resolve %s", root)
	}

	resolved := make([]string, len(patterns))
	for idx, pattern := range patterns {
		negated := globs.IsNegated(pattern)
		pattern = strings.TrimPrefix(pattern, "!")
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(root, pattern)
		}
		if negated {
			pattern = "!" + pattern
		}
		resolved[idx] = pattern
	}

	matches, err := globs.Paths(resolved, globs.Options{AllowMissing: true})
	if err != nil {
		return err
	}

	protected := make([]string, 0)
	for _, pattern := range resolved {
		if !globs.IsNegated(pattern) {
			continue
		}

		paths, err := globs.Paths([]string{pattern[1:]}, globs.Options{AllowMissing: true})
		if err != nil {
			return err
		}
		protected = append(protected, paths...)
	}

	for _, path := range matches {
		if !force && !isInside(root, path) {
			return eris.Errorf("refusing to delete %s because it is outside of %s", path, root)
		}
	}

	// Deepest paths first so that children are gone before we look at their parents
	sort.SliceStable(matches, func(i, j int) bool {
		return strings.Count(matches[i], string(filepath.Separator)) > strings.Count(matches[j], string(filepath.Separator))
	})

	logger := buildlog.Log(ctx)
	deleted := 0
	for _, path := range matches {
		if containsAny(path, protected) {
			logger.Debug().Str("path", path).Msg("keeping directory with protected content")
			continue
		}

		err = os.RemoveAll(path)
		if err != nil {
			return eris.Wrapf(err, "failed to delete %s", path)
		}
		deleted++
	}

	logger.Info().Msgf("deleted %d paths", deleted)
	return nil
}

func isInside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func containsAny(dir string, paths []string) bool {
	for _, path := range paths {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
