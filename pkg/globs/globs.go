// Package globs resolves ordered lists of glob patterns.
//
// Patterns use the doublestar syntax ('**' matches any number of directories). A pattern
// prefixed with '!' removes every path matched so far that it matches; positive patterns
// that follow it can add those paths again. Paths are deduplicated and keep the position of
// their first match.
package globs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
)

// Match is a single resolved path together with the static base of the pattern that matched it
type Match struct {
	Path string
	Base string
}

// Relative returns the path relative to its base
func (m Match) Relative() string {
	rel, err := filepath.Rel(m.Base, m.Path)
	if err != nil {
		return filepath.Base(m.Path)
	}
	return rel
}

// Options controls how patterns are resolved
type Options struct {
	// FilesOnly drops directories from the result
	FilesOnly bool
	// Base overrides the static prefix of every pattern
	Base string
	// AllowMissing suppresses the error for literal paths that don't exist
	AllowMissing bool
}

// IsNegated reports whether pattern is an exclusion pattern
func IsNegated(pattern string) bool {
	return strings.HasPrefix(pattern, "!")
}

// HasMeta reports whether pattern contains any glob meta characters
func HasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// Base returns the static part of pattern, i.e. the directory before the first meta character.
// For literal paths it's the parent directory.
func Base(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "!")
	if !HasMeta(pattern) {
		return filepath.Dir(pattern)
	}

	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	return filepath.FromSlash(base)
}

// MatchPath reports whether path matches pattern. A leading '!' is ignored.
func MatchPath(pattern, path string) (bool, error) {
	return doublestar.PathMatch(strings.TrimPrefix(pattern, "!"), path)
}

// MatchAny reports whether path matches any of the positive patterns and none of the negated
// ones that follow it.
func MatchAny(patterns []string, path string) (bool, error) {
	matched := false
	for _, pattern := range patterns {
		ok, err := MatchPath(pattern, path)
		if err != nil {
			return false, eris.Wrapf(err, "invalid pattern %s", pattern)
		}

		if ok {
			matched = !IsNegated(pattern)
		}
	}
	return matched, nil
}

// Resolve expands patterns in order
func Resolve(patterns []string, opts Options) ([]Match, error) {
	result := make([]Match, 0)
	seen := make(map[string]int)

	for _, pattern := range patterns {
		if IsNegated(pattern) {
			exclude := pattern[1:]
			kept := result[:0]
			for _, item := range result {
				ok, err := doublestar.PathMatch(exclude, item.Path)
				if err != nil {
					return nil, eris.Wrapf(err, "invalid pattern %s", pattern)
				}

				if !ok {
					kept = append(kept, item)
				}
			}
			result = kept

			seen = make(map[string]int, len(result))
			for idx, item := range result {
				seen[item.Path] = idx
			}
			continue
		}

		base := opts.Base
		if base == "" {
			base = Base(pattern)
		}

		matches, err := expand(pattern, opts)
		if err != nil {
			return nil, err
		}

		for _, path := range matches {
			if _, ok := seen[path]; ok {
				continue
			}

			seen[path] = len(result)
			result = append(result, Match{Path: path, Base: base})
		}
	}

	return result, nil
}

// Paths is like Resolve but only returns the matched paths
func Paths(patterns []string, opts Options) ([]string, error) {
	matches, err := Resolve(patterns, opts)
	if err != nil {
		return nil, err
	}

	result := make([]string, len(matches))
	for idx, item := range matches {
		result[idx] = item.Path
	}
	return result, nil
}

func expand(pattern string, opts Options) ([]string, error) {
	if !HasMeta(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) && opts.AllowMissing {
				return nil, nil
			}
			return nil, eris.Wrapf(err, "file %s not found", pattern)
		}

		if opts.FilesOnly && info.IsDir() {
			return nil, nil
		}
		return []string{filepath.Clean(pattern)}, nil
	}

	globOpts := []doublestar.GlobOption{doublestar.WithFailOnIOErrors()}
	if opts.FilesOnly {
		globOpts = append(globOpts, doublestar.WithFilesOnly())
	}

	matches, err := doublestar.FilepathGlob(pattern, globOpts...)
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, eris.Wrapf(err, "invalid pattern %s", pattern)
		}
		return nil, eris.Wrapf(err, "failed to resolve pattern %s", pattern)
	}

	return matches, nil
}
