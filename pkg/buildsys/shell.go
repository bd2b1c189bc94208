package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/assetsys/pkg/pipeline"
	"github.com/ngld/assetsys/pkg/posix"
)

func getTaskEnv(task *Task) expand.Environ {
	envVars := os.Environ()

	for name, value := range task.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

// execHandler runs cp, mv, rm and mkdir in-process to make sure they behave the same on every
// platform and hands everything else to the default handler
func execHandler(stderr io.Writer) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 && posix.IsCommand(args[0]) {
			return posix.Run(interp.HandlerCtx(ctx).Dir, args, stderr)
		}

		return defaultExecHandler(ctx, args)
	}
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

func newRunner(dir string, env expand.Environ, stdout, stderr io.Writer) (*interp.Runner, error) {
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(env),
		interp.ExecHandler(execHandler(stderr)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize runner")
	}
	return runner, nil
}

// execFunc returns the command runner pipeline steps use to call external tools
func (r *runtimeCtx) execFunc(task *Task) pipeline.ExecFunc {
	return func(ctx context.Context, dir string, args []string) error {
		if len(args) == 0 {
			return eris.New("empty command")
		}

		runner, err := newRunner(dir, getTaskEnv(task), r.opts.Stdout, r.opts.Stderr)
		if err != nil {
			return err
		}

		cmd := &syntax.CallExpr{Args: shellWords(args)}
		err = runner.Run(ctx, cmd)
		if err != nil {
			return eris.Wrapf(err, "command %s failed", args[0])
		}
		return nil
	}
}
