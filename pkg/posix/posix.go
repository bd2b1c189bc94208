// Package posix provides cross-platform implementations of cp, mv, rm and mkdir.
//
// Task scripts call these through the shell runner, which routes the commands here instead of
// to the system binaries so that scripts behave the same on every OS.
package posix

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// Commands lists the names handled by this package
var Commands = []string{"cp", "mv", "rm", "mkdir"}

// IsCommand reports whether name is one of the commands implemented here
func IsCommand(name string) bool {
	for _, cmd := range Commands {
		if cmd == name {
			return true
		}
	}
	return false
}

func expandArgs(args []string, skipMissing bool) ([]string, error) {
	if runtime.GOOS != "windows" {
		return args, nil
	}

	// cmd.exe doesn't expand patterns for us
	items := []string{}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", arg)
		}

		if matches == nil {
			if skipMissing {
				continue
			}
			return nil, eris.Errorf("pattern %s produced no matches", arg)
		}

		items = append(items, matches...)
	}
	return items, nil
}

// Move moves every source into dest. dest has to be a directory if there's more than one
// source.
func Move(sources []string, dest string) error {
	dest = filepath.Clean(dest)
	destParent := filepath.Dir(dest)
	info, err := os.Stat(destParent)
	if err != nil {
		return eris.Wrapf(err, "could not find destination directory %s", destParent)
	}

	if !info.IsDir() {
		return eris.Errorf("%s is not a directory", destParent)
	}

	destIsDir := false
	info, err = os.Stat(dest)
	if err == nil {
		destIsDir = info.IsDir()
	} else if !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to retrieve info about destination %s", dest)
	}

	items, err := expandArgs(sources, false)
	if err != nil {
		return err
	}

	if len(items) > 1 && !destIsDir {
		return eris.Errorf("can't move multiple items to %s because it is not a directory", dest)
	}

	for _, item := range items {
		itemDest := dest
		if destIsDir {
			itemDest = filepath.Join(dest, filepath.Base(item))
		}

		err = os.Rename(item, itemDest)
		if err != nil {
			return eris.Wrapf(err, "failed to move %s to %s", item, itemDest)
		}
	}

	return nil
}

// Copy copies every source into dest. Directories are only copied with recursive.
func Copy(sources []string, dest string, recursive bool) error {
	items, err := expandArgs(sources, false)
	if err != nil {
		return err
	}

	destIsDir := false
	info, err := os.Stat(dest)
	if err == nil {
		destIsDir = info.IsDir()
	} else if !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to retrieve info about destination %s", dest)
	}

	if len(items) > 1 && !destIsDir {
		return eris.Errorf("can't copy multiple items to %s because it is not a directory", dest)
	}

	for _, item := range items {
		itemDest := dest
		if destIsDir {
			itemDest = filepath.Join(dest, filepath.Base(item))
		}

		info, err := os.Stat(item)
		if err != nil {
			return eris.Wrapf(err, "could not stat %s", item)
		}

		if info.IsDir() {
			if !recursive {
				return eris.Errorf("%s is a directory but -r wasn't passed", item)
			}

			err = copyTree(item, itemDest)
		} else {
			err = copyFile(item, itemDest, info.Mode())
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()
		return eris.Wrapf(err, "failed to copy %s to %s", src, dest)
	}

	return out.Close()
}

// Remove deletes the given paths. Directories require recursive, missing paths are ignored
// with force.
func Remove(paths []string, recursive, force bool) error {
	items, err := expandArgs(paths, force)
	if err != nil {
		return err
	}

	existing := make([]string, 0, len(items))
	for _, item := range items {
		info, err := os.Stat(item)
		if err != nil {
			if force && eris.Is(err, os.ErrNotExist) {
				continue
			}
			return eris.Wrapf(err, "could not stat %s", item)
		}

		if info.IsDir() && !recursive {
			return eris.Errorf("%s is a directory but -r wasn't passed", item)
		}
		existing = append(existing, item)
	}

	for _, item := range existing {
		err := os.RemoveAll(item)
		if err != nil {
			return eris.Wrapf(err, "could not delete %s", item)
		}
	}

	return nil
}

// Mkdir creates the given directories
func Mkdir(paths []string, parents bool) error {
	for _, item := range paths {
		var err error
		if parents {
			err = os.MkdirAll(item, 0o770)
		} else {
			err = os.Mkdir(item, 0o770)
		}

		if err != nil {
			return eris.Wrapf(err, "failed to create %s", item)
		}
	}

	return nil
}

// NewCommands returns fresh cobra commands for cp, mv, rm and mkdir
func NewCommands() []*cobra.Command {
	cpCmd := &cobra.Command{
		Use:   "cp <source>... <dest>",
		Short: "Cross-platform implementation of the POSIX cp command",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recursive, err := cmd.Flags().GetBool("recursive")
			if err != nil {
				return err
			}

			return Copy(args[:len(args)-1], args[len(args)-1], recursive)
		},
	}
	cpCmd.Flags().BoolP("recursive", "r", false, "copy directories recursively")

	mvCmd := &cobra.Command{
		Use:   "mv <source>... <dest>",
		Short: "Cross-platform implementation of the POSIX mv command",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Move(args[:len(args)-1], args[len(args)-1])
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "A cross-platform implementation of the POSIX rm command",
		RunE: func(cmd *cobra.Command, args []string) error {
			recursive, err := cmd.Flags().GetBool("recursive")
			if err != nil {
				return err
			}

			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			return Remove(args, recursive, force)
		},
	}
	rmCmd.Flags().BoolP("recursive", "r", false, "recursively delete directories")
	rmCmd.Flags().BoolP("force", "f", false, "suppresses errors caused by missing files/folders")

	mkdirCmd := &cobra.Command{
		Use:   "mkdir <path>...",
		Short: "A cross-platform implementation of the POSIX mkdir command",
		RunE: func(cmd *cobra.Command, args []string) error {
			parents, err := cmd.Flags().GetBool("parents")
			if err != nil {
				return err
			}

			return Mkdir(args, parents)
		},
	}
	mkdirCmd.Flags().BoolP("parents", "p", false, "create parent directories as needed")

	return []*cobra.Command{cpCmd, mvCmd, rmCmd, mkdirCmd}
}

// Run executes one of the commands in-process. Relative paths are resolved against dir.
func Run(dir string, args []string, stderr io.Writer) error {
	if len(args) == 0 || !IsCommand(args[0]) {
		return eris.Errorf("unknown command %v", args)
	}

	for _, cmd := range NewCommands() {
		if cmd.Name() != args[0] {
			continue
		}

		err := cmd.ParseFlags(args[1:])
		if err != nil {
			return eris.Wrapf(err, "%s", args[0])
		}

		paths := cmd.Flags().Args()
		for idx, path := range paths {
			if !filepath.IsAbs(path) {
				paths[idx] = filepath.Join(dir, path)
			}
		}

		cmd.SetErr(stderr)
		if cmd.Args != nil {
			err = cmd.Args(cmd, paths)
			if err != nil {
				return eris.Wrapf(err, "%s", args[0])
			}
		}

		return cmd.RunE(cmd, paths)
	}

	return nil
}
