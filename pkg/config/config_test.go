package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "tasks.star", cfg.Script)
	assert.Equal(t, filepath.Join(dir, ".buildsys.cache"), cfg.CachePath(dir))
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, "sass", cfg.Sass.Binary)
	assert.Equal(t, 30*time.Second, cfg.Sass.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)

	cfg.Cache = ""
	assert.Empty(t, cfg.CachePath(dir))
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `cache = "build/tasks.cache"

[log]
level = "debug"
json = true

[watch]
debounce = "1s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	t.Setenv("BUILDSYS_SASS_BINARY", "/opt/dart-sass/sass")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "build", "tasks.cache"), cfg.CachePath(dir))
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "/opt/dart-sass/sass", cfg.Sass.Binary)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
		err    string
	}{
		{"unknown log level", func(cfg *Config) { cfg.Log.Level = "loud" }, "log.level: loud"},
		{"empty script", func(cfg *Config) { cfg.Script = "" }, "script"},
		{"negative debounce", func(cfg *Config) { cfg.Watch.Debounce = -time.Second }, "watch.debounce"},
		{"negative timeout", func(cfg *Config) { cfg.Sass.Timeout = -time.Second }, "sass.timeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, loader := Loader(t.TempDir())
			require.NoError(t, loader.Load())
			require.NoError(t, cfg.Validate())

			tc.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}
