// Package cmd implements the task command for the buildsys package
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/buildsys"
	"github.com/ngld/assetsys/pkg/config"
	"github.com/ngld/assetsys/pkg/pipeline"
)

// ErrNoScript is returned if no task script exists in the working directory or its parents
var ErrNoScript = eris.New("no tasks.star file found")

// NewTaskCmd returns the task command
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task [task...] [option=value...]",
		Short: "Build the site's assets",
		Long: `This command parses the first tasks.star file it finds and executes the given tasks.
Arguments containing a "=" set script options. Without any task, "default" is run.`,
		RunE: runTasks,
	}

	cmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	cmd.Flags().BoolP("force", "f", false, "force build; always execute the passed steps even if they don't have to run")
	cmd.Flags().BoolP("list", "l", false, "list the available tasks and options")
	cmd.Flags().Bool("no-cache", false, "always parse the task script")
	return cmd
}

// splitArgs separates task names from option assignments
func splitArgs(args []string) ([]string, map[string]string) {
	taskArgs := make([]string, 0)
	options := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > -1 {
			options[part[:pos]] = part[pos+1:]
		} else {
			taskArgs = append(taskArgs, part)
		}
	}

	return taskArgs, options
}

// findProject searches wd and its parents for the first directory containing a task script
// or config file
func findProject(wd string) (string, error) {
	path := wd
	for {
		for _, name := range []string{config.FileName, "tasks.star"} {
			_, err := os.Stat(filepath.Join(path, name))
			if err == nil {
				return path, nil
			}
			if !eris.Is(err, os.ErrNotExist) {
				return "", eris.Wrapf(err, "failed to check %s", filepath.Join(path, name))
			}
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", ErrNoScript
		}

		path = parent
	}
}

func sameOptions(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}

	for key, value := range a {
		other, ok := b[key]
		if !ok || other != value {
			return false
		}
	}

	return true
}

// loadTasks returns the cached task list if it's still valid and parses the script otherwise
func loadTasks(ctx context.Context, cachePath, script, projectRoot string, options map[string]string) (buildsys.TaskList, map[string]buildsys.ScriptOption, error) {
	logger := buildlog.Log(ctx)

	if cachePath != "" {
		cachedOptions, tasks, err := buildsys.ReadCache(cachePath, script)
		switch {
		case err == nil && sameOptions(cachedOptions, options):
			logger.Debug().Str("path", cachePath).Msgf("using cached tasks from %s", cachePath)
			return tasks, nil, nil
		case err == nil:
			logger.Debug().Msg("options changed, ignoring the cached tasks")
		case os.IsNotExist(err) || eris.Is(err, buildsys.ErrStaleCache):
			// parse below
		default:
			logger.Warn().Err(err).Msg("failed to read the task cache")
		}
	}

	tasks, scriptOptions, err := buildsys.RunScript(ctx, script, projectRoot, options, true)
	if err != nil {
		return nil, nil, err
	}

	if cachePath != "" {
		err = buildsys.WriteCache(cachePath, script, options, tasks)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to write the task cache")
		}
	}

	return tasks, scriptOptions, nil
}

func printTasks(out io.Writer, tasks buildsys.TaskList, options map[string]buildsys.ScriptOption) {
	fmt.Fprintln(out, "Available tasks:")
	maxNameLen := 0
	sortedNames := make([]string, 0)
	for _, task := range tasks {
		if task.Hidden {
			continue
		}

		nameLen := len(task.Short)
		if nameLen > maxNameLen {
			maxNameLen = nameLen
		}

		sortedNames = append(sortedNames, task.Short)
	}

	sort.Strings(sortedNames)

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range sortedNames {
		fmt.Fprintf(out, lineFmt, name+":", tasks[name].Desc)
	}

	if len(options) == 0 {
		return
	}

	fmt.Fprintln(out, "\nOptions:")
	optionNames := make([]string, 0, len(options))
	for name := range options {
		optionNames = append(optionNames, name)
	}
	sort.Strings(optionNames)

	for _, name := range optionNames {
		opt := options[name]
		fmt.Fprintf(out, " * %s=%s\n", name, opt.Default())
		if opt.Help != "" {
			fmt.Fprintf(out, "     %s\n", opt.Help)
		}
	}
}

func runTasks(cmd *cobra.Command, args []string) error {
	dryRun, err := cmd.Flags().GetBool("dry")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	// from here on errors are reported through the logger
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	taskArgs, options := splitArgs(args)
	logger := zerolog.New(NewConsoleWriter())

	wd, err := os.Getwd()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to retrieve the current working directory")
		return err
	}

	projectRoot, err := findProject(wd)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to find the task script")
		return err
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse config")
		return err
	}

	if cfg.Log.JSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	logger = logger.Level(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = buildlog.WithLogger(ctx, &logger)

	script := filepath.Join(projectRoot, cfg.Script)
	cachePath := cfg.CachePath(projectRoot)
	if noCache || list {
		cachePath = ""
	}

	tasks, scriptOptions, err := loadTasks(ctx, cachePath, script, projectRoot, options)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse tasks")
		return err
	}

	if len(taskArgs) == 0 {
		if _, ok := tasks["default"]; !ok {
			list = true
		} else if !list {
			taskArgs = append(taskArgs, "default")
		}
	}

	if list {
		if scriptOptions == nil {
			_, scriptOptions, err = buildsys.RunScript(ctx, script, projectRoot, options, false)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to parse tasks")
				return err
			}
		}

		printTasks(cmd.OutOrStdout(), tasks, scriptOptions)
		return nil
	}

	sass := &pipeline.DartSass{
		Binary:  cfg.Sass.Binary,
		Timeout: cfg.Sass.Timeout,
	}
	defer sass.Close()

	opts := buildsys.RunOptions{
		DryRun:   dryRun,
		Force:    force,
		Sass:     sass,
		Debounce: cfg.Watch.Debounce,
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
	}

	for _, name := range taskArgs {
		err = buildsys.RunTask(ctx, projectRoot, name, tasks, opts)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn().Msgf("Task %s was interrupted", name)
			} else {
				logger.Error().Err(err).Msgf("Failed task %s:", name)
			}
			return err
		}
	}

	return nil
}
