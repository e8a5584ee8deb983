package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	path := FilePath(filepath.Join(t.TempDir(), "nested"))

	missing, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, &File{}, missing)

	require.NoError(t, SaveFile(path, &File{Calendar: "Work", Keyword: "standup"}))
	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, &File{Calendar: "Work", Keyword: "standup"}, got)
}

func TestLoadEnv_Defaults(t *testing.T) {
	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, env.Interval)
	assert.Equal(t, 30*time.Second, env.RequestTimeout)
	assert.Equal(t, "3100", env.HTTPPort)
	assert.Equal(t, "info", env.LogLevel)
	assert.Equal(t, 200, env.LogCapacity)
	assert.False(t, env.FallbackEvents)
	assert.Equal(t, "127.0.0.1:3100", env.Addr())
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("TASKCAL_INTERVAL", "5m")
	t.Setenv("TASKCAL_FALLBACK_EVENTS", "true")
	t.Setenv("TASKCAL_KEYWORD", "standup")

	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, env.Interval)
	assert.True(t, env.FallbackEvents)
	assert.Equal(t, "standup", env.Keyword)
}

func TestLoadEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"TASKCAL_INTERVAL":  "30s",
		"TASKCAL_LOG_LEVEL": "loud",
		"TASKCAL_HTTP_PORT": "http",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadEnv()
			assert.Error(t, err)
		})
	}
}

func TestResolve_Precedence(t *testing.T) {
	env := &Env{SyncEnv: SyncEnv{Keyword: "env-kw"}}
	file := &File{Calendar: "File Cal", Keyword: "file-kw"}

	cfg := Resolve("/tmp/x", env, file)

	assert.Equal(t, "File Cal", cfg.Defaults.Calendar)
	assert.Equal(t, "env-kw", cfg.Defaults.Keyword)
	assert.Equal(t, "", cfg.Defaults.TaskList)

	cfg = Resolve("/tmp/x", &Env{}, &File{})
	assert.Equal(t, DefaultCalendar, cfg.Defaults.Calendar)
	assert.Equal(t, DefaultKeyword, cfg.Defaults.Keyword)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveFile(FilePath(dir), &File{TaskList: "Work"}))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "Work", cfg.Defaults.TaskList)
	assert.Equal(t, dir, cfg.Dir)
}

func TestDir_Override(t *testing.T) {
	t.Setenv("TASKCAL_CONFIG_DIR", "/somewhere")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/somewhere", dir)
}
