package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/ngld/assetsys/pkg/buildlog"
)

// Rule severities
const (
	SeverityOff   = "off"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

const (
	ruleSyntax     = "syntax"
	ruleNoUndef    = "no-undef"
	ruleNoDebugger = "no-debugger"
)

var defaultRules = map[string]string{
	ruleNoUndef:    SeverityError,
	ruleNoDebugger: SeverityError,
}

// Violation is a single problem found by Lint
type Violation struct {
	Path     string
	Line     int
	Column   int
	Severity string
	Rule     string
	Message  string
}

// Lint checks JavaScript files for syntax errors, undefined globals and debugger statements.
// Files pass through unchanged.
type Lint struct {
	Globals []string
	// Env selects predefined global sets (browser, jquery, es6)
	Env   []string
	Rules map[string]string
	// FailAfterError makes the step fail if any error was reported
	FailAfterError bool
	// SharedScope treats top-level declarations of every linted file as globals, like scripts
	// that are loaded on the same page.
	SharedScope bool
}

func (l *Lint) Name() string {
	return "eslint"
}

func (l *Lint) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	violations, err := l.Check(files)
	if err != nil {
		return nil, err
	}

	errCount, warnCount := countSeverities(violations)
	if len(violations) > 0 {
		event := buildlog.Log(ctx).Warn()
		if errCount > 0 {
			event = buildlog.Log(ctx).Error()
		}
		event.Int("errors", errCount).Int("warnings", warnCount).Msg(FormatViolations(violations))
	} else {
		buildlog.Log(ctx).Debug().Msgf("linted %d files without problems", len(files))
	}

	if l.FailAfterError && errCount > 0 {
		return nil, eris.Errorf("lint failed with %d errors and %d warnings", errCount, warnCount)
	}

	return files, nil
}

func (l *Lint) severity(rule string) string {
	if l.Rules != nil {
		if value, ok := l.Rules[rule]; ok {
			return value
		}
	}
	return defaultRules[rule]
}

type lintedFile struct {
	file *File
	ast  *js.AST
}

// Check runs all enabled rules and returns the violations sorted by file and position
func (l *Lint) Check(files []*File) ([]Violation, error) {
	for rule, severity := range l.Rules {
		switch severity {
		case SeverityOff, SeverityWarn, SeverityError:
		default:
			return nil, eris.Errorf("invalid severity %q for rule %s", severity, rule)
		}
	}

	known, err := l.knownGlobals()
	if err != nil {
		return nil, err
	}

	violations := make([]Violation, 0)
	parsed := make([]lintedFile, 0, len(files))

	for _, file := range files {
		ast, err := js.Parse(parse.NewInputBytes(file.Contents), js.Options{})
		if err != nil {
			violations = append(violations, syntaxViolation(file.Path, err))
			continue
		}

		parsed = append(parsed, lintedFile{file: file, ast: ast})
	}

	if l.SharedScope {
		for _, item := range parsed {
			for _, v := range item.ast.BlockStmt.Scope.Declared {
				known[string(v.Data)] = true
			}
		}
	}

	for _, item := range parsed {
		tokens := scanTokens(item.file.Contents)

		if severity := l.severity(ruleNoUndef); severity != SeverityOff {
			for _, v := range item.ast.BlockStmt.Scope.Undeclared {
				name := string(v.Data)
				if known[name] {
					continue
				}

				line, col := tokens.firstReference(name)
				violations = append(violations, Violation{
					Path:     item.file.Path,
					Line:     line,
					Column:   col,
					Severity: severity,
					Rule:     ruleNoUndef,
					Message:  fmt.Sprintf("'%s' is not defined.", name),
				})
			}
		}

		if severity := l.severity(ruleNoDebugger); severity != SeverityOff {
			for _, pos := range tokens.debugger {
				violations = append(violations, Violation{
					Path:     item.file.Path,
					Line:     pos.line,
					Column:   pos.column,
					Severity: severity,
					Rule:     ruleNoDebugger,
					Message:  "Unexpected 'debugger' statement.",
				})
			}
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return violations, nil
}

func (l *Lint) knownGlobals() (map[string]bool, error) {
	known := make(map[string]bool)
	for _, name := range builtinGlobals {
		known[name] = true
	}

	for _, envName := range l.Env {
		names, ok := envGlobals[envName]
		if !ok {
			return nil, eris.Errorf("unknown lint env %s", envName)
		}

		for _, name := range names {
			known[name] = true
		}
	}

	for _, name := range l.Globals {
		known[name] = true
	}
	return known, nil
}

func syntaxViolation(path string, err error) Violation {
	v := Violation{
		Path:     path,
		Line:     1,
		Column:   1,
		Severity: SeverityError,
		Rule:     ruleSyntax,
		Message:  err.Error(),
	}

	var perr *parse.Error
	if errors.As(err, &perr) {
		v.Line = perr.Line
		v.Column = perr.Column
		v.Message = "Parsing error: " + perr.Message
	}

	return v
}

func countSeverities(violations []Violation) (int, int) {
	errCount, warnCount := 0, 0
	for _, v := range violations {
		if v.Severity == SeverityError {
			errCount++
		} else {
			warnCount++
		}
	}
	return errCount, warnCount
}

// FormatViolations renders violations grouped by file, similar to ESLint's stylish formatter
func FormatViolations(violations []Violation) string {
	buffer := strings.Builder{}
	lastPath := ""

	for _, v := range violations {
		if v.Path != lastPath {
			if lastPath != "" {
				buffer.WriteString("\n")
			}
			buffer.WriteString(v.Path + "\n")
			lastPath = v.Path
		}

		rule := v.Rule
		if rule == ruleSyntax {
			rule = ""
		}
		buffer.WriteString(fmt.Sprintf("  %d:%d  %-5s  %s  %s\n", v.Line, v.Column, v.Severity, v.Message, rule))
	}

	errCount, warnCount := countSeverities(violations)
	buffer.WriteString(fmt.Sprintf("\n%d problems (%d errors, %d warnings)", errCount+warnCount, errCount, warnCount))
	return buffer.String()
}

type tokenPos struct {
	line   int
	column int
}

type tokenIndex struct {
	identifiers map[string][]tokenPos
	debugger    []tokenPos
}

func (t tokenIndex) firstReference(name string) (int, int) {
	positions := t.identifiers[name]
	if len(positions) == 0 {
		return 1, 1
	}
	return positions[0].line, positions[0].column
}

// scanTokens records the positions (1-based) of identifiers that aren't property names and of
// debugger statements
func scanTokens(content []byte) tokenIndex {
	index := tokenIndex{identifiers: make(map[string][]tokenPos)}
	lexer := js.NewLexer(parse.NewInputBytes(content))

	line, column := 1, 1
	prev := js.ErrorToken
	for {
		tt, text := lexer.Next()
		if tt == js.ErrorToken {
			break
		}

		if (tt == js.DivToken || tt == js.DivEqToken) && !endsExpression(prev) {
			tt, text = lexer.RegExp()
			if tt == js.ErrorToken {
				break
			}
		}

		switch tt {
		case js.IdentifierToken:
			if prev != js.DotToken && prev != js.OptChainToken {
				name := string(text)
				index.identifiers[name] = append(index.identifiers[name], tokenPos{line, column})
			}
		case js.DebuggerToken:
			if prev != js.DotToken && prev != js.OptChainToken {
				index.debugger = append(index.debugger, tokenPos{line, column})
			}
		}

		if tt != js.WhitespaceToken && tt != js.LineTerminatorToken && tt != js.CommentToken && tt != js.CommentLineTerminatorToken {
			prev = tt
		}

		if newlines := strings.Count(string(text), "\n"); newlines > 0 {
			line += newlines
			column = len(text) - strings.LastIndexByte(string(text), '\n')
		} else {
			column += len(text)
		}
	}

	return index
}

// endsExpression reports whether a '/' after tt is a division rather than a regular expression
func endsExpression(tt js.TokenType) bool {
	switch tt {
	case js.IdentifierToken, js.DecimalToken, js.BinaryToken, js.OctalToken, js.HexadecimalToken,
		js.BigIntToken, js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken,
		js.CloseParenToken, js.CloseBracketToken, js.CloseBraceToken,
		js.ThisToken, js.SuperToken, js.TrueToken, js.FalseToken, js.NullToken,
		js.IncrToken, js.DecrToken:
		return true
	}
	return false
}
