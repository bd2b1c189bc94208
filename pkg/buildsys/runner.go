package buildsys

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/assetsys/pkg/buildlog"
	"github.com/ngld/assetsys/pkg/globs"
	"github.com/ngld/assetsys/pkg/pipeline"
)

// RunOptions controls how RunTask executes tasks
type RunOptions struct {
	// DryRun only logs the commands and pipelines
	DryRun bool
	// Force skips the up-to-date and skip_if_exists checks for the requested task
	Force bool
	// Sass compiles stylesheets for sass() steps
	Sass pipeline.SassCompiler
	// Debounce is the quiet period after a change before watched tasks run, 200ms by default
	Debounce time.Duration
	Stdout   io.Writer
	Stderr   io.Writer
}

type taskRun struct {
	done chan struct{}
	err  error
}

type runtimeCtx struct {
	projectRoot string
	tasks       TaskList
	opts        RunOptions
	logger      *zerolog.Logger

	lock sync.Mutex
	runs map[string]*taskRun
}

func newRuntimeCtx(ctx context.Context, projectRoot string, tasks TaskList, opts RunOptions) *runtimeCtx {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}

	return &runtimeCtx{
		projectRoot: projectRoot,
		tasks:       tasks,
		opts:        opts,
		logger:      buildlog.Log(ctx),
		runs:        make(map[string]*taskRun),
	}
}

// fork returns a runtime with the same settings but without any finished tasks
func (r *runtimeCtx) fork() *runtimeCtx {
	return &runtimeCtx{
		projectRoot: r.projectRoot,
		tasks:       r.tasks,
		opts:        r.opts,
		logger:      r.logger,
		runs:        make(map[string]*taskRun),
	}
}

// RunTask executes the given task after its dependencies. Every task runs at most once per
// call.
func RunTask(ctx context.Context, projectRoot, task string, tasks TaskList, opts RunOptions) error {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return err
	}

	if _, found := tasks[task]; !found {
		return eris.Errorf("task %s not found", task)
	}

	err = ValidateGraph(tasks)
	if err != nil {
		return err
	}

	return newRuntimeCtx(ctx, projectRoot, tasks, opts).run(ctx, task, opts.Force)
}

// run executes the named task unless it already ran (or is running) in this runtime, in which
// case it waits for that run and returns its result
func (r *runtimeCtx) run(ctx context.Context, name string, force bool) error {
	task, ok := r.tasks[name]
	if !ok {
		return eris.Errorf("task %s not found", name)
	}

	r.lock.Lock()
	if existing, ok := r.runs[name]; ok {
		r.lock.Unlock()
		r.logger.Debug().Msgf("task %s already run", name)

		select {
		case <-existing.done:
			return existing.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	current := &taskRun{done: make(chan struct{})}
	r.runs[name] = current
	r.lock.Unlock()

	current.err = r.execute(ctx, task, force)
	close(current.done)
	return current.err
}

func (r *runtimeCtx) runAll(ctx context.Context, names []string, parallel, force bool, wrap func(error, string) error) error {
	if !parallel {
		for _, name := range names {
			err := r.run(ctx, name, force)
			if err != nil {
				return wrap(err, name)
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		eg.Go(func() error {
			err := r.run(egCtx, name, force)
			if err != nil {
				return wrap(err, name)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (r *runtimeCtx) resolvePatternLists(base string, patterns []string) ([]string, error) {
	resolved := make([]string, len(patterns))
	for idx, pattern := range patterns {
		if globs.IsNegated(pattern) {
			resolved[idx] = "!" + resolveFrom(base, r.projectRoot, pattern[1:])
		} else {
			resolved[idx] = resolveFrom(base, r.projectRoot, pattern)
		}
	}

	return globs.Paths(resolved, globs.Options{AllowMissing: true})
}

// canSkip checks skip_if_exists and compares the input and output modification times
func (r *runtimeCtx) canSkip(ctx context.Context, task *Task) (bool, error) {
	logger := buildlog.Log(ctx)

	if len(task.SkipIfExists) > 0 {
		skipList, err := r.resolvePatternLists(task.Base, task.SkipIfExists)
		if err != nil {
			return false, eris.Wrapf(err, "failed to resolve skip_if_exists list")
		}

		// globs only returns existing paths but literal paths have to exist as well
		if len(skipList) > 0 && len(skipList) >= countLiterals(task.SkipIfExists) {
			logger.Info().Msg("skipped because all skip files exist")
			return true, nil
		}
	}

	if len(task.Inputs) == 0 {
		return false, nil
	}

	var newestInput time.Time
	inputList, err := r.resolvePatternLists(task.Base, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve inputs")
	}

	for _, item := range inputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "failed to check input %s", item)
		}

		if info.ModTime().After(newestInput) {
			newestInput = info.ModTime()
		}
	}

	if newestInput.IsZero() {
		return false, nil
	}

	outputList, err := r.resolvePatternLists(task.Base, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve output list")
	}

	if len(outputList) < countLiterals(task.Outputs) {
		// an output is missing
		return false, nil
	}

	var newestOutput time.Time
	oldestOutput := time.Now()

	for _, item := range outputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "failed to check output %s", item)
		}

		mt := info.ModTime()
		if mt.After(newestOutput) {
			newestOutput = mt
		}
		if mt.Before(oldestOutput) {
			oldestOutput = mt
		}
	}

	if newestOutput.Sub(oldestOutput) > 10*time.Minute {
		logger.Warn().
			Msgf("oldest output is %f minutes older than the newest output", newestOutput.Sub(oldestOutput).Minutes())
	}

	if newestOutput.After(newestInput) {
		logger.Info().
			Msgf("nothing to do (output is %f seconds newer)", newestOutput.Sub(newestInput).Seconds())
		return true, nil
	}

	return false, nil
}

func countLiterals(patterns []string) int {
	count := 0
	for _, pattern := range patterns {
		if !globs.IsNegated(pattern) && !globs.HasMeta(pattern) {
			count++
		}
	}
	return count
}

func (r *runtimeCtx) execute(ctx context.Context, task *Task, force bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ctx = buildlog.WithTask(buildlog.WithLogger(ctx, r.logger), task.Short)
	logger := buildlog.Log(ctx)

	err := r.runAll(ctx, task.Deps, true, false, func(err error, dep string) error {
		return eris.Wrapf(err, "task %s failed due to its dependency %s", task.Short, dep)
	})
	if err != nil {
		return err
	}

	if !force {
		skip, err := r.canSkip(ctx, task)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
	}

	// With the skip and input/output checks done, we can finally start executing
	var runner *interp.Runner
	parser := syntax.NewParser()
	printer := syntax.NewPrinter(syntax.Minify(true))
	strBuffer := strings.Builder{}
	watches := make([]TaskCmdWatch, 0)

	for _, item := range task.Cmds {
		switch cmd := item.(type) {
		case TaskCmdScript:
			stmts, err := cmd.ToShellStmts(parser)
			if err != nil {
				return eris.Wrap(err, "failed to parse shell script")
			}

			if runner == nil {
				runner, err = newRunner(task.Base, getTaskEnv(task), r.opts.Stdout, r.opts.Stderr)
				if err != nil {
					return err
				}
			}

			for _, stm := range stmts {
				strBuffer.Reset()
				err = printer.Print(&strBuffer, stm)
				if err != nil {
					return eris.Wrap(err, "failed to print shell statement")
				}

				logger.Info().
					Bool("command", true).
					Msg(strBuffer.String())

				if r.opts.DryRun {
					continue
				}

				err = runner.Run(ctx, stm)
				if err != nil {
					return eris.Wrapf(err, "command %s failed", strBuffer.String())
				}

				if runner.Exited() {
					return nil
				}
			}
		case TaskCmdTaskRef:
			err = r.runAll(ctx, cmd.Tasks, cmd.Parallel, force, func(err error, name string) error {
				return eris.Wrapf(err, "task %s failed while running %s", task.Short, name)
			})
			if err != nil {
				return err
			}
		case TaskCmdPipeline:
			logger.Info().Bool("command", true).Msg(cmd.Describe())
			if r.opts.DryRun {
				continue
			}

			env := &pipeline.Env{
				Root: r.projectRoot,
				Sass: r.opts.Sass,
				Exec: r.execFunc(task),
			}
			_, err = cmd.Pipeline.Run(ctx, env)
			if err != nil {
				return eris.Wrapf(err, "pipeline %s failed", cmd.Describe())
			}
		case TaskCmdClean:
			logger.Info().Bool("command", true).Msg(cmd.Describe())
			if r.opts.DryRun {
				continue
			}

			err = pipeline.Clean(ctx, r.projectRoot, cmd.Patterns, cmd.Force)
			if err != nil {
				return err
			}
		case TaskCmdWatch:
			watches = append(watches, cmd)
		default:
			return eris.Errorf("unexpected task command %+v", item)
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	if len(watches) > 0 {
		if r.opts.DryRun {
			for _, w := range watches {
				logger.Info().Bool("command", true).Msg(w.Describe())
			}
			return nil
		}

		return r.watch(ctx, watches)
	}

	return nil
}
