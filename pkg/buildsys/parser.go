package buildsys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/assetsys/pkg/buildlog"
)

type parserCtx struct {
	ctx          context.Context
	options      map[string]ScriptOption
	optionValues map[string]string
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	filepath     string
	projectRoot  string
	tasks        []*Task
	initPhase    bool
}

// * Helpers

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

func processCmdParts(parts starlark.Tuple, parser *syntax.Parser, base string) (*syntax.CallExpr, error) {
	envVars := make([]string, 0, len(parts))
	for _, part := range parts {
		value, ok := part.(starlark.String)
		if !ok || !strings.Contains(value.GoString(), "=") {
			break
		}

		envVars = append(envVars, value.GoString())
	}

	var cmd *syntax.CallExpr
	if len(envVars) > 0 {
		joinedEnvVars := strings.Join(envVars, " ")
		result, err := parser.Parse(strings.NewReader(joinedEnvVars), "env vars")
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse command vars %s", joinedEnvVars)
		}

		if len(result.Stmts) != 1 || result.Stmts[0].Cmd == nil {
			return nil, eris.Errorf("malformed env vars %s", joinedEnvVars)
		}

		var ok bool
		cmd, ok = result.Stmts[0].Cmd.(*syntax.CallExpr)
		if !ok || cmd.Assigns == nil {
			return nil, eris.Errorf("malformed env vars %s", joinedEnvVars)
		}
	} else {
		cmd = new(syntax.CallExpr)
	}

	args := make([]string, 0, len(parts)-len(envVars))
	for _, arg := range parts[len(envVars):] {
		switch value := arg.(type) {
		case starlark.String:
			args = append(args, value.GoString())
		case StarlarkPath:
			encodedValue := string(value)

			if filepath.IsAbs(encodedValue) {
				// absolute paths cause issues on Windows
				relValue, err := filepath.Rel(base, encodedValue)
				if err == nil {
					encodedValue = relValue
				}
			}

			args = append(args, filepath.ToSlash(encodedValue))
		default:
			return nil, eris.Errorf("found argument of type %s but only strings and paths are supported: %s", arg.Type(), arg.String())
		}
	}

	cmd.Args = shellWords(args)
	return cmd, nil
}

// shellWords turns each argument into a single shell word
func shellWords(args []string) []*syntax.Word {
	words := make([]*syntax.Word, len(args))
	for idx, arg := range args {
		var wordPart syntax.WordPart

		if arg == "" || strings.ContainsAny(arg, " \t\n$'\"*?[]{}|&;<>()\\`~#") {
			node := new(syntax.SglQuoted)
			node.Value = arg
			if strings.Contains(arg, "'") {
				node.Dollar = true
				node.Value = strings.ReplaceAll(strings.ReplaceAll(arg, `\`, `\\`), "'", `\'`)
			}

			wordPart = node
		} else {
			node := new(syntax.Lit)
			node.Value = arg

			wordPart = node
		}

		words[idx] = &syntax.Word{Parts: []syntax.WordPart{wordPart}}
	}
	return words
}

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	filepath := simplifyPath(ctx, ctx.filepath)

	buildlog.Log(ctx.ctx).Info().
		Msgf("%s:%d:%d: %s", filepath, pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	filepath := simplifyPath(ctx, ctx.filepath)

	buildlog.Log(ctx.ctx).Warn().
		Msgf("%s:%d:%d: %s", filepath, pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

// * Builtin functions

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue starlark.String
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.New("can only be called during the init phase (in the global scope)")
	}

	ctx.options[name] = ScriptOption{
		DefaultValue: defaultValue,
		Help:         help,
	}

	value, ok := ctx.optionValues[name]
	if ok {
		return starlark.String(value), nil
	}

	return defaultValue, nil
}

func task(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var deps *starlark.List
	var skipIfExists *starlark.List
	var inputs *starlark.List
	var outputs *starlark.List
	var env *starlark.Dict
	var cmds *starlark.List

	task := new(Task)

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "short??", &task.Short, "hidden?", &task.Hidden,
		"desc?", &task.Desc, "deps?", &deps, "base?", &task.Base, "skip_if_exists?", &skipIfExists, "inputs?",
		&inputs, "outputs?", &outputs, "env?", &env, "cmds?", &cmds)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if ctx.initPhase {
		return nil, eris.New("tasks can only be declared inside the configure function")
	}

	if task.Short == "" {
		task.Hidden = true
		task.Short = "auto#" + nanoid.New()
	}

	if task.Short == "configure" {
		return nil, eris.New(`the task name "configure" is reserved, please use a different name`)
	}

	for _, other := range ctx.tasks {
		if other.Short == task.Short {
			return nil, eris.Errorf("task %s was already declared", task.Short)
		}
	}

	task.Env = map[string]string{}

	if task.Base == "" {
		task.Base = "."
	}
	task.Base = normalizePath(ctx, task.Base)

	task.Deps, err = taskNames(iterableValues(deps), "deps")
	if err != nil {
		return nil, err
	}

	task.SkipIfExists, err = starlarkIterable2stringSlice(skipIfExists, "skip_if_exists")
	if err != nil {
		return nil, err
	}

	task.Inputs, err = starlarkIterable2stringSlice(inputs, "inputs")
	if err != nil {
		return nil, err
	}

	task.Outputs, err = starlarkIterable2stringSlice(outputs, "outputs")
	if err != nil {
		return nil, err
	}

	if env != nil {
		for _, rawKey := range env.Keys() {
			var key string

			switch value := rawKey.(type) {
			case starlark.String:
				key = value.GoString()
			default:
				return nil, eris.Errorf("found key type %s in env map but only strings are supported", rawKey.Type())
			}

			rawValue, _, err := env.Get(rawKey)
			if err != nil {
				return nil, err
			}
			switch value := rawValue.(type) {
			case starlark.String:
				task.Env[key] = value.GoString()
			case StarlarkPath:
				task.Env[key] = string(value)
			default:
				return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", rawValue.Type(), key)
			}
		}
	}

	strBuffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	parser := syntax.NewParser()
	task.Cmds = make([]TaskCmd, 0)

	for idx, item := range iterableValues(cmds) {
		var parts starlark.Tuple

		switch value := item.(type) {
		case starlark.String:
			task.Cmds = append(task.Cmds, TaskCmdScript{TaskName: task.Short, Index: idx, Content: value.GoString()})
			continue
		case starlark.Tuple:
			parts = value
		case *starlark.List:
			parts = starlark.Tuple(iterableValues(value))
		case *Task:
			task.Cmds = append(task.Cmds, TaskCmdTaskRef{Tasks: []string{value.Short}})
			continue
		case *StarlarkCmd:
			task.Cmds = append(task.Cmds, value.Cmd)
			continue
		case *StarlarkStep:
			return nil, eris.Errorf("%s: found the step %s in cmds, steps have to be wrapped in pipeline()", fn.Name(), value.Step.Name())
		default:
			return nil, eris.Errorf("%s: unexpected type %s. Only strings, tuples, lists, tasks and cmds are valid", fn.Name(), item.Type())
		}

		cmd, err := processCmdParts(parts, parser, task.Base)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to process command #%d", idx)
		}

		strBuffer.Reset()
		err = printer.Print(&strBuffer, cmd)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to process command #%d", idx)
		}

		task.Cmds = append(task.Cmds, TaskCmdScript{TaskName: task.Short, Index: idx, Content: strBuffer.String()})
	}

	if inputs != nil && inputs.Len() > 0 && (outputs == nil || outputs.Len() == 0) {
		warn(thread, "%s: found inputs but no outputs", fn.Name())
	}

	ctx.tasks = append(ctx.tasks, task)
	return task, nil
}

func scriptBuiltins() starlark.StringDict {
	builtins := starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"info":         starlark.NewBuiltin("info", starInfo),
		"warn":         starlark.NewBuiltin("warn", starWarn),
		"error":        starlark.NewBuiltin("error", starError),
		"resolve_path": starlark.NewBuiltin("resolve_path", resolvePath),
		"option":       starlark.NewBuiltin("option", option),
		"getenv":       starlark.NewBuiltin("getenv", getenv),
		"setenv":       starlark.NewBuiltin("setenv", setenv),
		"prepend_path": starlark.NewBuiltin("prepend_path", prependPathDir),
		"read_yaml":    starlark.NewBuiltin("read_yaml", readYaml),
		"isdir":        starlark.NewBuiltin("isdir", starIsdir),
		"isfile":       starlark.NewBuiltin("isfile", starIsfile),
		"execute":      starlark.NewBuiltin("execute", starExec),
		"task":         starlark.NewBuiltin("task", task),
	}

	for name, fn := range pipelineBuiltins {
		builtins[name] = starlark.NewBuiltin(name, fn)
	}
	return builtins
}

// RunScript executes a starlark script and returns the declared options. If doConfigure is
// true, the script's configure function is called and the declared tasks are collected and
// returned.
func RunScript(ctx context.Context, filename, projectRoot string, options map[string]string, doConfigure bool) (TaskList, map[string]ScriptOption, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, nil, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return nil, nil, err
	}

	if options == nil {
		options = map[string]string{}
	}

	threadCtx := parserCtx{
		ctx:          ctx,
		filepath:     filename,
		projectRoot:  projectRoot,
		options:      make(map[string]ScriptOption),
		optionValues: options,
		envOverrides: make(map[string]string),
		tasks:        make([]*Task, 0),
		yamlCache:    make(map[string]interface{}),
		initPhase:    true,
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			pos := thread.CallFrame(1).Pos
			buildlog.Log(ctx).Info().
				Msgf("%s:%d:%d: %s", simplifyPath(&threadCtx, filename), pos.Line, pos.Col, msg)
		},
	}
	thread.SetLocal("parserCtx", &threadCtx)

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to read file")
	}

	globals, err := starlark.ExecFile(thread, simplifyPath(&threadCtx, filename), script, scriptBuiltins())
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, nil, eris.Errorf("failed to execute %s:\n%s", simplifyPath(&threadCtx, filename), evalError.Backtrace())
		}
		return nil, nil, eris.Wrap(err, "failed to execute")
	}

	for name := range options {
		if _, ok := threadCtx.options[name]; !ok {
			buildlog.Log(ctx).Warn().Msgf("the option %s is not declared by %s", name, simplifyPath(&threadCtx, filename))
		}
	}

	tasks := TaskList{}
	if doConfigure {
		configure, ok := globals["configure"]
		if !ok {
			return nil, nil, eris.Errorf("%s did not declare a configure function", simplifyPath(&threadCtx, filename))
		}

		configureFunc, ok := configure.(starlark.Callable)
		if !ok {
			return nil, nil, eris.Errorf("%s did declare a configure value but it's not a function", simplifyPath(&threadCtx, filename))
		}

		threadCtx.initPhase = false
		_, err = starlark.Call(thread, configureFunc, make(starlark.Tuple, 0), make([]starlark.Tuple, 0))
		if err != nil {
			if evalError, ok := err.(*starlark.EvalError); ok {
				return nil, nil, eris.New(evalError.Backtrace())
			}
			return nil, nil, eris.Wrapf(err, "failed configure call in %s", simplifyPath(&threadCtx, filename))
		}

		for _, task := range threadCtx.tasks {
			tasks[task.Short] = task

			for name, value := range threadCtx.envOverrides {
				_, present := task.Env[name]
				if !present {
					task.Env[name] = value
				}
			}
		}
	}

	return tasks, threadCtx.options, nil
}
