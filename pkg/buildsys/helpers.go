package buildsys

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

// normalizePath resolves each path relative to the previous one, starting at the script's
// directory. "//" prefixes are relative to the project root.
func normalizePath(ctx *parserCtx, pathList ...string) string {
	return resolveFrom(filepath.Dir(ctx.filepath), ctx.projectRoot, pathList...)
}

func resolveFrom(base, projectRoot string, pathList ...string) string {
	result := base

	for _, path := range pathList {
		if strings.HasPrefix(path, "//") {
			result = filepath.Join(projectRoot, path[2:])
		} else if strings.HasPrefix(path, "/") {
			result = filepath.Join(filepath.VolumeName(result), path)
		} else if !filepath.IsAbs(path) {
			result = filepath.Join(result, path)
		} else {
			result = path
		}
	}

	return filepath.Clean(result)
}

// normalizePattern is normalizePath for glob patterns which may start with "!"
func normalizePattern(ctx *parserCtx, pattern string) string {
	if strings.HasPrefix(pattern, "!") {
		return "!" + normalizePath(ctx, pattern[1:])
	}
	return normalizePath(ctx, pattern)
}

func simplifyPath(ctx *parserCtx, path string) string {
	projectRoot := ctx.projectRoot
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	if absPath == projectRoot {
		return "//"
	}

	if strings.HasPrefix(absPath, projectRoot+string(filepath.Separator)) {
		return "//" + filepath.ToSlash(absPath[len(projectRoot)+1:])
	}
	return path
}

func getEnvVars(overrides map[string]string) []string {
	osEnv := os.Environ()
	shellEnv := make([]string, 0, len(osEnv)+len(overrides))
	for _, item := range osEnv {
		parts := strings.SplitN(item, "=", 2)
		if runtime.GOOS == "windows" {
			parts[0] = strings.ToUpper(parts[0])
		}

		// skip overriden entries to avoid conflicts
		if _, present := overrides[parts[0]]; !present {
			shellEnv = append(shellEnv, item)
		}
	}

	for k, v := range overrides {
		shellEnv = append(shellEnv, fmt.Sprintf("%s=%s", k, v))
	}

	return shellEnv
}

type starlarkIterable interface {
	Len() int
	Iterate() starlark.Iterator
}

// starlarkIterable2stringSlice converts a list of strings (or paths) into a Go slice
func starlarkIterable2stringSlice(input starlarkIterable, field string) ([]string, error) {
	if input == nil {
		return []string{}, nil
	}
	if value, ok := input.(*starlark.List); ok && value == nil {
		return []string{}, nil
	}

	result := make([]string, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		switch value := item.(type) {
		case starlark.String:
			result = append(result, value.GoString())
		case StarlarkPath:
			result = append(result, string(value))
		default:
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}
	}
	return result, nil
}

// stringOrList accepts a single string or a list / tuple of strings
func stringOrList(value starlark.Value, field string) ([]string, error) {
	switch value := value.(type) {
	case nil, starlark.NoneType:
		return []string{}, nil
	case starlark.String:
		return []string{value.GoString()}, nil
	case StarlarkPath:
		return []string{string(value)}, nil
	case starlarkIterable:
		return starlarkIterable2stringSlice(value, field)
	default:
		return nil, eris.Errorf("expected %s to be a string or a list of strings but found %s", field, value.Type())
	}
}

// taskNames accepts task names and task values
func taskNames(values []starlark.Value, field string) ([]string, error) {
	result := make([]string, 0, len(values))
	for _, item := range values {
		switch value := item.(type) {
		case starlark.String:
			result = append(result, value.GoString())
		case *Task:
			result = append(result, value.Short)
		default:
			return nil, eris.Errorf("expected all items in %s to be task names or tasks but found %s", field, item.Type())
		}
	}
	return result, nil
}

func iterableValues(input starlarkIterable) []starlark.Value {
	if input == nil {
		return nil
	}
	if value, ok := input.(*starlark.List); ok && value == nil {
		return nil
	}

	result := make([]starlark.Value, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		result = append(result, item)
	}
	return result
}

func interfaceToStarlark(thread *starlark.Thread, value interface{}) (starlark.Value, error) {
	// handle a few simple and common cases first
	switch value := value.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case bool:
		return starlark.Bool(value), nil
	case float32:
		return starlark.Float(value), nil
	case float64:
		return starlark.Float(value), nil
	case []string:
		items := make(starlark.Tuple, len(value))
		for idx, raw := range value {
			items[idx] = starlark.String(raw)
		}

		return items, nil
	case map[string]string:
		dict := starlark.NewDict(len(value))
		for k, v := range value {
			err := dict.SetKey(starlark.String(k), starlark.String(v))
			if err != nil {
				return nil, err
			}
		}

		return dict, nil
	}

	refValue := reflect.ValueOf(value)

	var err error
	switch refValue.Kind() {
	case reflect.Slice, reflect.Array:
		tuple := make(starlark.Tuple, refValue.Len())
		for idx := 0; idx < refValue.Len(); idx++ {
			tuple[idx], err = interfaceToStarlark(thread, refValue.Index(idx).Interface())
			if err != nil {
				return nil, err
			}
		}

		return tuple, nil
	case reflect.Map:
		dict := starlark.NewDict(refValue.Len())
		iter := refValue.MapRange()
		for iter.Next() {
			key, err := interfaceToStarlark(thread, iter.Key().Interface())
			if err != nil {
				return nil, err
			}

			value, err := interfaceToStarlark(thread, iter.Value().Interface())
			if err != nil {
				return nil, err
			}

			err = dict.SetKey(key, value)
			if err != nil {
				return nil, err
			}
		}

		return dict, nil
	}

	return nil, eris.Errorf("encountered unsupported type %v", refValue.Kind())
}
