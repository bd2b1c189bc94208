package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertLess(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
	}{
		{"variable", "@gutter: 10px;\n.a { margin: @gutter; }", "$gutter: 10px;\n.a { margin: $gutter; }"},
		{"interpolation", ".col-@{size} { width: 1px; }", ".col-#{$size} { width: 1px; }"},
		{"escape", "width: ~\"calc(100% - 10px)\";", "width: unquote(\"calc(100% - 10px)\");"},
		{"media", "@media (min-width: 768px) { a { color: @link; } }", "@media (min-width: 768px) { a { color: $link; } }"},
		{"import", "@import \"variables\";", "@import \"variables\";"},
		{"mixin definition", ".shadow(@x) {\n  box-shadow: @x;\n}", "@mixin shadow($x) {\n  box-shadow: $x;\n}"},
		{"mixin call", ".a {\n  .shadow(none);\n}", ".a {\n  @include shadow(none);\n}"},
		{"mixin call without args", ".a {\n  .clearfix;\n}", ".a {\n  @include clearfix;\n}"},
		{"extend", ".b { &:extend(.a all); }", ".b { @extend .a; }"},
		{"spin", "color: spin(@base, 10);", "color: adjust-hue($base, 10);"},
		{"inline mixin call", ".b { .mixin(); color: red; .clearfix; }", ".b { @include mixin(); color: red; @include clearfix; }"},
		{"strings", "background: url('img@2x.png');\ncontent: \"@brand\";", "background: url('img@2x.png');\ncontent: \"@brand\";"},
		{"interpolated string", "background: url(\"@{path}/bg.png\");", "background: url(\"#{$path}/bg.png\");"},
		{"escaped quotes", "content: 'it\\'s @x'; margin: @x;", "content: 'it\\'s @x'; margin: $x;"},
		{"dotted function", "filter: progid:DXImageTransform.Microsoft.gradient(startColorstr='#80000000');", "filter: progid:DXImageTransform.Microsoft.gradient(startColorstr='#80000000');"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			output, err := ConvertLess(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.output, output)
		})
	}
}

func TestLessToScss(t *testing.T) {
	files := []*File{
		{Base: "/vendor", Path: "/vendor/lightbox.less", Contents: []byte("@bg: #000;")},
		{Base: "/vendor", Path: "/vendor/other.css", Contents: []byte("@bg")},
	}

	result, err := (&LessToScss{}).Apply(context.Background(), &Env{}, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"lightbox.scss", "other.css"}, relPaths(result))
	assert.Equal(t, "$bg: #000;", string(result[0].Contents))
	assert.Equal(t, "@bg", string(result[1].Contents))
}
