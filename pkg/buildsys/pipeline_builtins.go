package buildsys

import (
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/ngld/assetsys/pkg/pipeline"
)

type builtinFunc func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

var pipelineBuiltins = map[string]builtinFunc{
	"pipeline":         starPipeline,
	"src":              starSrc,
	"dest":             starDest,
	"concat":           starConcat,
	"uglify":           starUglify,
	"cssmin":           starCSSMin,
	"rename":           starRename,
	"sourcemaps_init":  starSourcemapsInit,
	"sourcemaps_write": starSourcemapsWrite,
	"sass":             starSass,
	"less_to_scss":     starLessToScss,
	"eslint":           starLint,
	"modernizr":        starModernizr,
	"precompress":      starPrecompress,
	"clean":            starClean,
	"watch":            starWatch,
	"start":            starStart,
}

func step(s pipeline.Step) (starlark.Value, error) {
	return &StarlarkStep{Step: s}, nil
}

func pathValue(ctx *parserCtx, value starlark.Value, field string) (string, error) {
	switch value := value.(type) {
	case starlark.String:
		return normalizePath(ctx, value.GoString()), nil
	case StarlarkPath:
		return normalizePath(ctx, string(value)), nil
	default:
		return "", eris.Errorf("expected %s to be a string or path but found %s", field, value.Type())
	}
}

func patternValues(ctx *parserCtx, values []starlark.Value, field string) ([]string, error) {
	result := make([]string, 0, len(values))
	for _, item := range values {
		items, err := stringOrList(item, field)
		if err != nil {
			return nil, err
		}

		for _, pattern := range items {
			result = append(result, normalizePattern(ctx, pattern))
		}
	}
	return result, nil
}

func dictToStringMap(dict *starlark.Dict, field string) (map[string]string, error) {
	result := make(map[string]string)
	if dict == nil {
		return result, nil
	}

	for _, item := range dict.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found key type %s in %s but only strings are supported", item[0].Type(), field)
		}

		value, ok := item[1].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found value of type %s for key %s in %s but only strings are supported", item[1].Type(), key.GoString(), field)
		}

		result[key.GoString()] = value.GoString()
	}
	return result, nil
}

func starPipeline(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "name?", &name)
	if err != nil {
		return nil, err
	}

	if len(args) == 0 {
		return nil, eris.New("pipeline() needs at least one step")
	}

	p := &pipeline.Pipeline{Name: name, Steps: make([]pipeline.Step, len(args))}
	for idx, arg := range args {
		value, ok := arg.(*StarlarkStep)
		if !ok {
			return nil, eris.Errorf("argument %d of pipeline() is a %s but only steps are supported", idx+1, arg.Type())
		}
		p.Steps[idx] = value.Step
	}

	return &StarlarkCmd{Cmd: TaskCmdPipeline{Pipeline: p}}, nil
}

func starSrc(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base starlark.Value
	var allowMissing bool
	err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "base?", &base, "allow_missing?", &allowMissing)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	patterns, err := patternValues(ctx, args, "patterns")
	if err != nil {
		return nil, err
	}

	if len(patterns) == 0 {
		return nil, eris.New("src() needs at least one pattern")
	}

	s := &pipeline.Src{Patterns: patterns, AllowMissing: allowMissing}
	if base != nil && base != starlark.None {
		s.Base, err = pathValue(ctx, base, "base")
		if err != nil {
			return nil, err
		}
	}

	return step(s)
}

func starDest(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir starlark.Value
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "dir", &dir)
	if err != nil {
		return nil, err
	}

	path, err := pathValue(getCtx(thread), dir, "dir")
	if err != nil {
		return nil, err
	}

	return step(&pipeline.Dest{Dir: path})
}

func starConcat(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c := &pipeline.Concat{NewLine: "\n"}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &c.File, "newline?", &c.NewLine)
	if err != nil {
		return nil, err
	}

	return step(c)
}

func starUglify(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	u := &pipeline.Uglify{}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "keep_var_names?", &u.KeepVarNames)
	if err != nil {
		return nil, err
	}

	return step(u)
}

func starCSSMin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c := &pipeline.CSSMin{}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "precision?", &c.Precision)
	if err != nil {
		return nil, err
	}

	return step(c)
}

func starRename(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	r := &pipeline.Rename{}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prefix?", &r.Prefix, "suffix?", &r.Suffix,
		"basename?", &r.Basename, "extname?", &r.Extname, "dirname?", &r.Dirname)
	if err != nil {
		return nil, err
	}

	return step(r)
}

func starSourcemapsInit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := &pipeline.SourcemapsInit{}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "load_maps?", &s.LoadMaps)
	if err != nil {
		return nil, err
	}

	return step(s)
}

func starSourcemapsWrite(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := &pipeline.SourcemapsWrite{}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "dir?", &s.Dir)
	if err != nil {
		return nil, err
	}

	return step(s)
}

func starSass(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := &pipeline.Sass{OutputStyle: "expanded", Precision: 10}
	var includePaths *starlark.List

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "output_style?", &s.OutputStyle, "precision?", &s.Precision,
		"include_paths?", &includePaths, "halt_on_error?", &s.HaltOnError)
	if err != nil {
		return nil, err
	}

	if s.OutputStyle != "expanded" && s.OutputStyle != "compressed" {
		return nil, eris.Errorf("unsupported output_style %s, expected expanded or compressed", s.OutputStyle)
	}

	paths, err := starlarkIterable2stringSlice(includePaths, "include_paths")
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	for _, path := range paths {
		s.IncludePaths = append(s.IncludePaths, normalizePath(ctx, path))
	}

	return step(s)
}

func starLessToScss(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	l := &pipeline.LessToScss{}
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "ext?", &l.Ext)
	if err != nil {
		return nil, err
	}

	return step(l)
}

func starLint(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	l := &pipeline.Lint{FailAfterError: true, SharedScope: true}
	var globals, env *starlark.List
	var rules *starlark.Dict

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "globals?", &globals, "env?", &env, "rules?", &rules,
		"fail_after_error?", &l.FailAfterError, "shared_scope?", &l.SharedScope)
	if err != nil {
		return nil, err
	}

	l.Globals, err = starlarkIterable2stringSlice(globals, "globals")
	if err != nil {
		return nil, err
	}

	if env == nil {
		l.Env = []string{"browser"}
	} else {
		l.Env, err = starlarkIterable2stringSlice(env, "env")
		if err != nil {
			return nil, err
		}
	}

	l.Rules, err = dictToStringMap(rules, "rules")
	if err != nil {
		return nil, err
	}

	// catch typos before anything runs
	_, err = l.Check(nil)
	if err != nil {
		return nil, err
	}

	return step(l)
}

func starModernizr(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m := &pipeline.Modernizr{Output: "modernizr-custom.js"}
	var options, command *starlark.List
	var detects *starlark.Dict

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name?", &m.Output, "options?", &options,
		"detects?", &detects, "command?", &command)
	if err != nil {
		return nil, err
	}

	m.Options, err = starlarkIterable2stringSlice(options, "options")
	if err != nil {
		return nil, err
	}

	m.Detects, err = dictToStringMap(detects, "detects")
	if err != nil {
		return nil, err
	}

	m.Command, err = starlarkIterable2stringSlice(command, "command")
	if err != nil {
		return nil, err
	}

	return step(m)
}

func starPrecompress(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	p := &pipeline.Precompress{}
	var formats *starlark.List

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "formats?", &formats, "min_size?", &p.MinSize)
	if err != nil {
		return nil, err
	}

	p.Formats, err = starlarkIterable2stringSlice(formats, "formats")
	if err != nil {
		return nil, err
	}

	return step(p)
}

func starClean(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var force bool
	err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "force?", &force)
	if err != nil {
		return nil, err
	}

	patterns, err := patternValues(getCtx(thread), args, "patterns")
	if err != nil {
		return nil, err
	}

	if len(patterns) == 0 {
		return nil, eris.New("clean() needs at least one pattern")
	}

	return &StarlarkCmd{Cmd: TaskCmdClean{Patterns: patterns, Force: force}}, nil
}

func starWatch(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var patterns, tasks starlark.Value
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "patterns", &patterns, "tasks", &tasks)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	resolved, err := patternValues(ctx, []starlark.Value{patterns}, "patterns")
	if err != nil {
		return nil, err
	}

	var taskValues []starlark.Value
	switch value := tasks.(type) {
	case starlarkIterable:
		taskValues = iterableValues(value)
	default:
		taskValues = []starlark.Value{value}
	}

	names, err := taskNames(taskValues, "tasks")
	if err != nil {
		return nil, err
	}

	if len(resolved) == 0 || len(names) == 0 {
		return nil, eris.New("watch() needs at least one pattern and one task")
	}

	return &StarlarkCmd{Cmd: TaskCmdWatch{Patterns: resolved, Tasks: names}}, nil
}

func starStart(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	parallel := true
	err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "parallel?", &parallel)
	if err != nil {
		return nil, err
	}

	names, err := taskNames(args, "tasks")
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, eris.New("start() needs at least one task")
	}

	return &StarlarkCmd{Cmd: TaskCmdTaskRef{Tasks: names, Parallel: parallel}}, nil
}
