package buildsys

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/assetsys/pkg/pipeline"
)

// TaskCmd is a single item of a task's cmds list
type TaskCmd interface {
	// Describe returns a one line summary used in logs and dry runs
	Describe() string
}

// TaskCmdScript is a shell script
type TaskCmdScript struct {
	TaskName string
	Content  string
	Index    int
}

func (s TaskCmdScript) Describe() string {
	return s.Content
}

// ToShellStmts parses the script
func (s TaskCmdScript) ToShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	reader := strings.NewReader(s.Content)
	result, err := parser.Parse(reader, fmt.Sprintf("%s:%d", s.TaskName, s.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", s.Content)
	}

	return result.Stmts, nil
}

// TaskCmdTaskRef runs other tasks. Sequential refs run one after the other, parallel refs
// run at the same time.
type TaskCmdTaskRef struct {
	Tasks    []string
	Parallel bool
}

func (t TaskCmdTaskRef) Describe() string {
	if t.Parallel {
		return "start " + strings.Join(t.Tasks, ", ")
	}
	return "run " + strings.Join(t.Tasks, ", ")
}

// TaskCmdPipeline runs a file pipeline
type TaskCmdPipeline struct {
	Pipeline *pipeline.Pipeline
}

func (p TaskCmdPipeline) Describe() string {
	return p.Pipeline.Describe()
}

// TaskCmdClean deletes files and directories
type TaskCmdClean struct {
	Patterns []string
	Force    bool
}

func (c TaskCmdClean) Describe() string {
	return "clean " + strings.Join(c.Patterns, " ")
}

// TaskCmdWatch re-runs Tasks whenever a file matching Patterns changes
type TaskCmdWatch struct {
	Patterns []string
	Tasks    []string
}

func (w TaskCmdWatch) Describe() string {
	return fmt.Sprintf("watch %s -> %s", strings.Join(w.Patterns, " "), strings.Join(w.Tasks, ", "))
}

// Task contains the processed values passed to task() by the task script
type Task struct {
	Env          map[string]string
	Short        string
	Desc         string
	Base         string
	Inputs       []string
	Deps         []string
	SkipIfExists []string
	Outputs      []string
	Cmds         []TaskCmd
	Hidden       bool
}

// TaskList maps short names to each relevant task
type TaskList map[string]*Task

type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Task

// String returns a string representation of the task
func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Short, t.Desc)
}

// Type always returns "task" to indicate this type
func (t *Task) Type() string {
	return "task"
}

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

// Truth always returns true since a task can't be nil or None
func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since task is not hashable
func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}

// StarlarkCmd wraps the values returned by pipeline(), clean(), watch() and start() so they
// can be passed to task()
type StarlarkCmd struct {
	Cmd TaskCmd
}

func (c *StarlarkCmd) String() string {
	return fmt.Sprintf("<cmd %s>", c.Cmd.Describe())
}

func (c *StarlarkCmd) Type() string {
	return "cmd"
}

func (c *StarlarkCmd) Freeze() {}

func (c *StarlarkCmd) Truth() starlark.Bool {
	return starlark.True
}

func (c *StarlarkCmd) Hash() (uint32, error) {
	return 0, eris.New("cmd is not a hashable type")
}

// StarlarkStep wraps a pipeline step until it's passed to pipeline()
type StarlarkStep struct {
	Step pipeline.Step
}

func (s *StarlarkStep) String() string {
	return fmt.Sprintf("<step %s>", s.Step.Name())
}

func (s *StarlarkStep) Type() string {
	return "step"
}

func (s *StarlarkStep) Freeze() {}

func (s *StarlarkStep) Truth() starlark.Bool {
	return starlark.True
}

func (s *StarlarkStep) Hash() (uint32, error) {
	return 0, eris.New("step is not a hashable type")
}

type StarlarkPath string

func (p StarlarkPath) String() string {
	return starlark.String(p).String()
}

func (p StarlarkPath) Type() string {
	return "path"
}

func (p StarlarkPath) Freeze() {}

func (p StarlarkPath) Truth() starlark.Bool {
	return p != ""
}

func (p StarlarkPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p StarlarkPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(StarlarkPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p StarlarkPath) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p StarlarkPath) Len() int {
	return len(p)
}

func (p StarlarkPath) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
