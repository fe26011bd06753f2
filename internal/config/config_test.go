package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/circuitflow/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "circuitflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("version: v1\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 16*time.Millisecond, cfg.Engine.TickInterval())
	assert.Equal(t, 20, cfg.Engine.HistoryCapacity)
	assert.Equal(t, 4, cfg.Engine.ScriptWorkers)
	assert.Equal(t, 256, cfg.Engine.ScriptQueueDepth)
	assert.Equal(t, time.Second, cfg.Engine.ScriptTimeout())
	assert.Equal(t, 64, cfg.Engine.MaxSessions)
	assert.Equal(t, config.BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "data/graphs", cfg.Store.Badger.Path)
	assert.Equal(t, "circuitflow:", cfg.Store.Redis.KeyPrefix)
}

func TestParse_RepoConfig(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "circuitflow.yaml"))
	require.NoError(t, err)
	cfg, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "v1", cfg.Version)
	assert.True(t, cfg.Store.Badger.SyncWrites)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{"no version", "engine: {tick_interval_ms: 5}", []string{"version is required"}},
		{"negative tick", "version: v1\nengine: {tick_interval_ms: -1}", []string{"engine.tick_interval_ms"}},
		{"bad level", "version: v1\nlog: {level: loud}", []string{"log.level"}},
		{"unknown backend", "version: v1\nstore: {backend: floppy}", []string{"unknown backend"}},
		{"redis without url", "version: v1\nstore: {backend: redis}", []string{"store.redis: url is required"}},
		{"postgres without dsn", "version: v1\nstore: {backend: postgres}", []string{"store.postgres: dsn is required"}},
		{"bad table", "version: v1\nstore: {backend: postgres, postgres: {dsn: x, table: \"a;b\"}}", []string{"store.postgres.table"}},
		{
			"several problems are joined",
			"version: v1\nengine: {script_workers: -2, max_sessions: -1}",
			[]string{"engine.script_workers", "engine.max_sessions"},
		},
		{"memory backend", "version: v1\nstore: {backend: memory}", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoader_ReloadNotifies(t *testing.T) {
	path := writeConfig(t, "version: v1\nengine: {tick_interval_ms: 10}\n")
	l, err := config.NewLoader(path)
	require.NoError(t, err)
	assert.Equal(t, 10, l.Config().Engine.TickIntervalMs)

	var got []int
	l.OnChange(func(c *config.Config) { got = append(got, c.Engine.TickIntervalMs) })

	require.NoError(t, os.WriteFile(path, []byte("version: v1\nengine: {tick_interval_ms: 33}\n"), 0o600))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, 33, cfg.Engine.TickIntervalMs)
	assert.Equal(t, []int{33}, got)

	require.NoError(t, os.WriteFile(path, []byte("engine: {}\n"), 0o600))
	_, err = l.Reload()
	require.Error(t, err)
	assert.Equal(t, 33, l.Config().Engine.TickIntervalMs, "invalid file keeps previous config")
}

func TestLoader_Watch(t *testing.T) {
	path := writeConfig(t, "version: v1\n")
	l, err := config.NewLoader(path)
	require.NoError(t, err)

	changed := make(chan int, 4)
	l.OnChange(func(c *config.Config) { changed <- c.Engine.HistoryCapacity })
	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("version: v1\nengine: {history_capacity: 7}\n"), 0o600))
	select {
	case n := <-changed:
		assert.Equal(t, 7, n)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestNewLoader_MissingFile(t *testing.T) {
	_, err := config.NewLoader(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "read config"))
}
