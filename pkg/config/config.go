// Package config loads the buildsys.toml settings shared by all assetsys commands.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// FileName is the name of the optional config file next to tasks.star
const FileName = "buildsys.toml"

// Config describes all configuration options
type Config struct {
	Script string `default:"tasks.star" toml:"script" usage:"Name of the task script to search for"`
	Cache  string `default:".buildsys.cache" toml:"cache" usage:"Task list cache (relative to the script), empty disables it"`
	Log    struct {
		Level string `default:"info" toml:"level"`
		JSON  bool   `default:"false" toml:"json" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log"`
	Sass struct {
		Binary  string        `default:"sass" toml:"binary" usage:"Dart Sass executable"`
		Timeout time.Duration `default:"30s" toml:"timeout" usage:"Maximum time a single stylesheet may take to compile"`
	} `toml:"sass"`
	Watch struct {
		Debounce time.Duration `default:"200ms" toml:"debounce" usage:"Delay between a change and the rebuild"`
	} `toml:"watch"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object. The
// config file in dir is only read if it exists. Command line flags are handled by cobra and
// BUILDSYS_DEBUG belongs to the console writer.
func Loader(dir string) (*Config, *aconfig.Loader) {
	files := []string{}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		files = append(files, path)
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		EnvPrefix:        "BUILDSYS",
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the configuration for the project in dir and validates it
func Load(dir string) (*Config, error) {
	cfg, loader := Loader(dir)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrapf(err, "failed to load %s", filepath.Join(dir, FileName))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.Script == "" {
		return eris.New(`Invalid value for script: must not be empty`)
	}

	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Sass.Timeout < 0 {
		return eris.Errorf(`Invalid value for sass.timeout: %s`, cfg.Sass.Timeout)
	}

	if cfg.Watch.Debounce < 0 {
		return eris.Errorf(`Invalid value for watch.debounce: %s`, cfg.Watch.Debounce)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// CachePath returns the absolute cache location for the script in dir or an empty string if
// caching is disabled
func (cfg *Config) CachePath(dir string) string {
	if cfg.Cache == "" {
		return ""
	}

	if filepath.IsAbs(cfg.Cache) {
		return cfg.Cache
	}

	return filepath.Join(dir, cfg.Cache)
}
