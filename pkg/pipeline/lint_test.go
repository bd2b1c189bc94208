package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsFile(name, content string) *File {
	return &File{Base: "/src/js", Path: "/src/js/" + name, Contents: []byte(content)}
}

func TestLintUndefinedGlobals(t *testing.T) {
	lint := &Lint{Env: []string{"browser"}, Globals: []string{"SmoothScroll"}}
	violations, err := lint.Check([]*File{
		jsFile("main.js", "var scroll = new SmoothScroll('a');\nwindow.x = scroll;\n$(document).ready(init);\n"),
	})
	require.NoError(t, err)

	require.Len(t, violations, 2)
	assert.Equal(t, Violation{
		Path:     "/src/js/main.js",
		Line:     3,
		Column:   1,
		Severity: SeverityError,
		Rule:     "no-undef",
		Message:  "'$' is not defined.",
	}, violations[0])
	assert.Equal(t, 3, violations[1].Line)
	assert.Equal(t, 19, violations[1].Column)
	assert.Equal(t, "'init' is not defined.", violations[1].Message)

	lint.Env = append(lint.Env, "jquery")
	lint.Globals = append(lint.Globals, "init")
	violations, err = lint.Check([]*File{jsFile("main.js", "$(document).ready(init);\n")})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestLintPropertyNamesAreNotReferences(t *testing.T) {
	violations, err := (&Lint{}).Check([]*File{
		jsFile("main.js", "var o = {};\no.foo = 1;\nvar re = /foo/g;\nfoo(o);\n"),
	})
	require.NoError(t, err)

	require.Len(t, violations, 1)
	assert.Equal(t, 4, violations[0].Line)
	assert.Equal(t, 1, violations[0].Column)
}

func TestLintSharedScope(t *testing.T) {
	files := []*File{
		jsFile("helpers.js", "function helper() { return 1; }\n"),
		jsFile("main.js", "helper();\n"),
	}

	violations, err := (&Lint{SharedScope: true}).Check(files)
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = (&Lint{}).Check(files)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "/src/js/main.js", violations[0].Path)
}

func TestLintDebuggerAndRules(t *testing.T) {
	files := []*File{jsFile("main.js", "var a = 1;\ndebugger;\nmissing(a);\n")}

	violations, err := (&Lint{}).Check(files)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, "no-debugger", violations[0].Rule)
	assert.Equal(t, 2, violations[0].Line)
	assert.Equal(t, 1, violations[0].Column)
	assert.Equal(t, "no-undef", violations[1].Rule)

	violations, err = (&Lint{Rules: map[string]string{"no-debugger": "warn", "no-undef": "off"}}).Check(files)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityWarn, violations[0].Severity)

	_, err = (&Lint{Rules: map[string]string{"no-undef": "loud"}}).Check(files)
	assert.Error(t, err)

	_, err = (&Lint{Env: []string{"mars"}}).Check(files)
	assert.Error(t, err)
}

func TestLintSyntaxError(t *testing.T) {
	violations, err := (&Lint{}).Check([]*File{jsFile("broken.js", "var a = 1;\nvar = ;\n")})
	require.NoError(t, err)

	require.Len(t, violations, 1)
	assert.Equal(t, "syntax", violations[0].Rule)
	assert.Equal(t, SeverityError, violations[0].Severity)
	assert.Equal(t, 2, violations[0].Line)
	assert.Contains(t, violations[0].Message, "Parsing error")
}

func TestLintFailAfterError(t *testing.T) {
	files := []*File{jsFile("main.js", "missing();\n")}

	result, err := (&Lint{}).Apply(context.Background(), &Env{}, files)
	require.NoError(t, err)
	assert.Equal(t, files, result)

	_, err = (&Lint{FailAfterError: true}).Apply(context.Background(), &Env{}, files)
	assert.ErrorContains(t, err, "lint failed with 1 errors and 0 warnings")

	warnOnly := &Lint{FailAfterError: true, Rules: map[string]string{"no-undef": "warn"}}
	_, err = warnOnly.Apply(context.Background(), &Env{}, files)
	assert.NoError(t, err)
}

func TestFormatViolations(t *testing.T) {
	report := FormatViolations([]Violation{
		{Path: "a.js", Line: 1, Column: 2, Severity: SeverityError, Rule: "no-undef", Message: "'x' is not defined."},
		{Path: "b.js", Line: 3, Column: 4, Severity: SeverityWarn, Rule: "no-debugger", Message: "Unexpected 'debugger' statement."},
	})

	assert.Contains(t, report, "a.js\n  1:2  error  'x' is not defined.  no-undef\n")
	assert.Contains(t, report, "b.js\n  3:4  warn   Unexpected 'debugger' statement.  no-debugger\n")
	assert.Contains(t, report, "2 problems (1 errors, 1 warnings)")
}
