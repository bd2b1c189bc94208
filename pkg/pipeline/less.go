package pipeline

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/dlclark/regexp2"
	"github.com/rotisserie/eris"
)

type lessRule struct {
	pattern     *regexp2.Regexp
	replacement string
}

// Interpolations and escapes are rewritten before string literals are set aside since both
// can appear inside strings.
var lessStringRules = []lessRule{
	// @{var} -> #{$var}
	{regexp2.MustCompile(`@\{([\w-]+)\}`, regexp2.None), `#{$$$1}`},
	// ~"foo" / ~'foo' -> unquote("foo")
	{regexp2.MustCompile(`~"([^"]*)"`, regexp2.None), `unquote("$1")`},
	{regexp2.MustCompile(`~'([^']*)'`, regexp2.None), `unquote("$1")`},
}

// The remaining rules never see string literals. Mixin calls have to be rewritten before
// mixin definitions.
var lessRules = []lessRule{
	// @var -> $var, leaving at-rules alone
	{regexp2.MustCompile(`@(?!(?:import|media|keyframes|-webkit-|-moz-|-o-|-ms-|font-face|charset|supports|page|namespace|document|viewport|mixin|include|extend|if|else|each|for|while|function|return|content)\b)([\w-]+)`, regexp2.None), `$$$1`},
	// &:extend(.foo all); -> @extend .foo;
	{regexp2.MustCompile(`&:extend\(\s*([^)]+?)(?:\s+all)?\s*\);?`, regexp2.None), `@extend $1;`},
	// .mixin(args); -> @include mixin(args);
	{regexp2.MustCompile(`(?<=^|[\s{;])\.([\w-]+)\s*\(([^)]*)\)\s*;`, regexp2.Multiline), `@include $1($2);`},
	// .mixin; -> @include mixin;
	{regexp2.MustCompile(`(?<=^|[\s{;])\.([\w-]+)\s*;`, regexp2.Multiline), `@include $1;`},
	// .mixin(args) { -> @mixin mixin(args) {
	{regexp2.MustCompile(`(?m)^(\s*)\.([\w-]+)\s*\(([^)]*)\)\s*\{`, regexp2.None), `$1@mixin $2($3) {`},
	// spin() is called adjust-hue() in Sass
	{regexp2.MustCompile(`\bspin\(`, regexp2.None), `adjust-hue(`},
}

var (
	lessStringLiteral = regexp2.MustCompile(`"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'`, regexp2.None)
	lessPlaceholder   = regexp2.MustCompile(`\x00(\d+)\x00`, regexp2.None)
)

func applyLessRules(input string, rules []lessRule) (string, error) {
	var err error
	for _, rule := range rules {
		input, err = rule.pattern.Replace(input, rule.replacement, -1, -1)
		if err != nil {
			return "", eris.Wrapf(err, "failed to apply %s", rule.pattern.String())
		}
	}
	return input, nil
}

// ConvertLess rewrites the commonly used Less constructs to their SCSS equivalents
func ConvertLess(input string) (string, error) {
	input, err := applyLessRules(input, lessStringRules)
	if err != nil {
		return "", err
	}

	literals := make([]string, 0)
	input, err = lessStringLiteral.ReplaceFunc(input, func(m regexp2.Match) string {
		literals = append(literals, m.String())
		return "\x00" + strconv.Itoa(len(literals)-1) + "\x00"
	}, -1, -1)
	if err != nil {
		return "", eris.Wrap(err, "failed to extract strings")
	}

	input, err = applyLessRules(input, lessRules)
	if err != nil {
		return "", err
	}

	input, err = lessPlaceholder.ReplaceFunc(input, func(m regexp2.Match) string {
		idx, err := strconv.Atoi(m.GroupByNumber(1).String())
		if err != nil || idx >= len(literals) {
			return m.String()
		}
		return literals[idx]
	}, -1, -1)
	if err != nil {
		return "", eris.Wrap(err, "failed to restore strings")
	}

	return input, nil
}

// LessToScss converts .less files to .scss. Other files pass through unchanged.
type LessToScss struct {
	// Ext replaces the .less extension, .scss by default
	Ext string
}

func (l *LessToScss) Name() string {
	return "less_to_scss"
}

func (l *LessToScss) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	for _, file := range files {
		if filepath.Ext(file.Path) != ".less" {
			continue
		}

		converted, err := ConvertLess(string(file.Contents))
		if err != nil {
			return nil, eris.Wrapf(err, "failed to convert %s", file.Path)
		}

		file.Contents = []byte(converted)
		ext := l.Ext
		if ext == "" {
			ext = ".scss"
		}
		file.SetExt(ext)
	}

	return files, nil
}
