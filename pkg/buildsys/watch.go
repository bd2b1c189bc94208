package buildsys

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/globs"
)

// addRecursive watches dir and all its subdirectories except hidden ones
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}

// watchRoots returns the static base directories of all positive patterns. Nested bases are
// dropped since addRecursive already covers them.
func watchRoots(watches []TaskCmdWatch) []string {
	roots := make([]string, 0)
	for _, w := range watches {
		for _, pattern := range w.Patterns {
			if globs.IsNegated(pattern) {
				continue
			}

			base := globs.Base(pattern)
			covered := false
			for idx, root := range roots {
				if isSubdir(root, base) {
					covered = true
					break
				}
				if isSubdir(base, root) {
					roots[idx] = base
					covered = true
					break
				}
			}

			if !covered {
				roots = append(roots, base)
			}
		}
	}
	return roots
}

func isSubdir(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// watch blocks until ctx is cancelled and reruns the watched tasks whenever a matching file
// changes. Failing tasks are logged and don't stop the watcher.
func (r *runtimeCtx) watch(ctx context.Context, watches []TaskCmdWatch) error {
	logger := buildlog.Log(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "failed to initialize file watcher")
	}
	defer watcher.Close()

	for _, root := range watchRoots(watches) {
		err = addRecursive(watcher, root)
		if err != nil {
			return eris.Wrapf(err, "failed to watch %s", root)
		}
		logger.Debug().Msgf("watching %s", root)
	}

	for _, w := range watches {
		logger.Info().Msg(w.Describe())
	}

	pending := make(map[int]bool)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("file watcher failed")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					err = addRecursive(watcher, event.Name)
					if err != nil {
						logger.Warn().Err(err).Msgf("failed to watch %s", event.Name)
					}
				}
			}

			matched := false
			for idx, w := range watches {
				ok, err := globs.MatchAny(w.Patterns, event.Name)
				if err != nil {
					return err
				}

				if ok {
					pending[idx] = true
					matched = true
				}
			}

			if matched {
				logger.Debug().Msgf("%s: %s", event.Op, event.Name)
				timer.Reset(r.opts.Debounce)
			}
		case <-timer.C:
			// rerun in the order the watches were declared
			for idx, w := range watches {
				if !pending[idx] {
					continue
				}

				err = r.fork().runAll(ctx, w.Tasks, false, true, func(err error, _ string) error {
					return err
				})
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Error().Err(err).Msgf("watched tasks %s failed", strings.Join(w.Tasks, ", "))
				}
			}
			pending = make(map[int]bool)
		}
	}
}
