package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetsys/pkg/buildlog"
)

var (
	modernizrProp  = regexp.MustCompile(`Modernizr\.([A-Za-z_$][\w$]*)`)
	modernizrIndex = regexp.MustCompile(`Modernizr\[\s*['"]([^'"]+)['"]\s*\]`)
)

// Properties that belong to Modernizr's API and turn into build options instead of detects
var modernizrAPI = map[string]string{
	"addTest":      "addTest",
	"atRule":       "atRule",
	"hasEvent":     "hasEvent",
	"mq":           "mq",
	"prefixed":     "prefixed",
	"prefixedCSS":  "prefixedCSS",
	"testAllProps": "testAllProps",
	"testProp":     "testProp",
	"testStyles":   "testStyles",
	"on":           "",
	"_config":      "",
	"_prefixes":    "",
	"_domPrefixes": "",
}

var modernizrDetects = map[string]string{
	"audio":          "audio",
	"canvas":         "canvas",
	"cssanimations":  "css/animations",
	"cssgrid":        "css/cssgrid",
	"csstransforms":  "css/transforms",
	"csstransitions": "css/transitions",
	"flexbox":        "css/flexbox",
	"history":        "history",
	"inputtypes":     "inputtypes",
	"localstorage":   "storage/localstorage",
	"objectfit":      "css/objectfit",
	"picture":        "elem/picture",
	"placeholder":    "forms/placeholder",
	"sessionstorage": "storage/sessionstorage",
	"sizes":          "img/sizes",
	"srcset":         "img/srcset",
	"svg":            "svg",
	"touchevents":    "touchevents",
	"video":          "video",
	"webp":           "img/webp",
}

// DefaultModernizrCommand builds the detection script with the modernizr CLI
var DefaultModernizrCommand = []string{"modernizr", "-c", "{config}", "-d", "{output}"}

type modernizrConfig struct {
	Minify         bool     `json:"minify"`
	Options        []string `json:"options"`
	FeatureDetects []string `json:"feature-detects"`
}

// Modernizr builds a custom feature detection script containing the detects referenced in the
// stream. The stream is replaced with the generated file.
type Modernizr struct {
	Output  string
	Options []string
	// Detects maps property names to feature detect paths and takes precedence over the
	// built-in table
	Detects map[string]string
	// Command runs in the project root and supports the {config} and {output} placeholders
	Command []string
}

func (m *Modernizr) Name() string {
	return "modernizr"
}

// Scan returns the sorted feature detects and options referenced in the given files
func (m *Modernizr) Scan(ctx context.Context, files []*File) ([]string, []string) {
	detects := make(map[string]bool)
	options := make(map[string]bool)
	for _, opt := range m.Options {
		options[opt] = true
	}

	for _, file := range files {
		names := make([]string, 0)
		for _, match := range modernizrProp.FindAllSubmatch(file.Contents, -1) {
			names = append(names, string(match[1]))
		}
		for _, match := range modernizrIndex.FindAllSubmatch(file.Contents, -1) {
			names = append(names, string(match[1]))
		}

		for _, name := range names {
			if opt, ok := modernizrAPI[name]; ok {
				if opt != "" {
					options[opt] = true
				}
				continue
			}

			detect, ok := m.Detects[name]
			if !ok {
				detect, ok = modernizrDetects[strings.ToLower(name)]
			}
			if !ok {
				buildlog.Log(ctx).Warn().Str("path", file.Path).Msgf("unknown Modernizr feature %s", name)
				detect = strings.ToLower(name)
			}

			detects[detect] = true
		}
	}

	return sortedKeys(detects), sortedKeys(options)
}

func (m *Modernizr) Apply(ctx context.Context, env *Env, files []*File) ([]*File, error) {
	if env.Exec == nil {
		return nil, eris.New("no command runner configured")
	}

	output := m.Output
	if output == "" {
		output = "modernizr-custom.js"
	}

	base := env.Root
	if len(files) > 0 {
		base = files[0].Base
	}

	detects, options := m.Scan(ctx, files)
	buildlog.Log(ctx).Info().Strs("detects", detects).Msgf("building %s with %d detects", output, len(detects))

	tmpDir, err := os.MkdirTemp("", "modernizr")
	if err != nil {
		return nil, eris.Wrap(err, "failed to create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	featureDetects := make([]string, len(detects))
	for idx, detect := range detects {
		featureDetects[idx] = "test/" + detect
	}

	config, err := json.MarshalIndent(modernizrConfig{
		Minify:         false,
		Options:        options,
		FeatureDetects: featureDetects,
	}, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode modernizr config")
	}

	configPath := filepath.Join(tmpDir, "modernizr-config.json")
	outputPath := filepath.Join(tmpDir, "modernizr-output.js")
	err = os.WriteFile(configPath, config, 0o644)
	if err != nil {
		return nil, eris.Wrap(err, "failed to write modernizr config")
	}

	command := m.Command
	if len(command) == 0 {
		command = DefaultModernizrCommand
	}

	args := make([]string, len(command))
	for idx, arg := range command {
		arg = strings.ReplaceAll(arg, "{config}", configPath)
		args[idx] = strings.ReplaceAll(arg, "{output}", outputPath)
	}

	// relative commands like node_modules/.bin/modernizr resolve against the project root
	dir := env.Root
	if dir == "" {
		dir = tmpDir
	}

	err = env.Exec(ctx, dir, args)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to build %s", output)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, eris.Wrapf(err, "%s did not produce %s", args[0], output)
	}

	return []*File{{
		Base:     base,
		Path:     filepath.Join(base, output),
		Contents: content,
	}}, nil
}

func sortedKeys(items map[string]bool) []string {
	result := make([]string, 0, len(items))
	for key := range items {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
