package cmd

import (
	// used for the embedded starter script
	_ "embed"
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

//go:embed starter/tasks.star
var starterScript []byte

func printTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func printSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

// writeStarter places the starter task script in dir and refuses to replace an existing one
func writeStarter(dir string) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", eris.Wrapf(err, "failed to create %s", dir)
	}

	path := filepath.Join(dir, "tasks.star")
	handle, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", eris.Errorf("%s already exists", path)
		}
		return "", eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	_, err = handle.Write(starterScript)
	if err != nil {
		return "", eris.Wrapf(err, "failed to write %s", path)
	}

	return path, nil
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter tasks.star",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			printTask("Creating the task script")
			path, err := writeStarter(dir)
			if err != nil {
				return err
			}

			printSubtask("Wrote " + path)
			printSubtask(`Run "assetsys task --list" to see the available tasks`)
			return nil
		},
	}
}
