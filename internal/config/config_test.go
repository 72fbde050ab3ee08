package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "bleve", cfg.Engine.Backend)
	assert.Equal(t, []string{"openassessment"}, cfg.Indexing.ExcludedCategories)
	assert.Equal(t, "Unnamed", cfg.Indexing.UnnamedPlaceholder)
	assert.Equal(t, 500, cfg.Indexing.PageSize)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, 300*time.Millisecond, cfg.WatchDebounce())
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Metrics.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	// Given: a project file changing the backend and adding a category
	isolate(t)
	dir := t.TempDir()
	content := `
engine:
  backend: sqlite
indexing:
  excluded_categories: [poll]
queue:
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".courseindex.yaml"), []byte(content), 0o644))

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: values are merged, defaults kept where unset
	assert.Equal(t, "sqlite", cfg.Engine.Backend)
	assert.Equal(t, []string{"openassessment", "poll"}, cfg.Indexing.ExcludedCategories)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 2, cfg.Queue.MaxRetries)
}

func TestLoad_UserConfigThenProjectThenEnv(t *testing.T) {
	// Given: user config, project config and env all set the log level
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userDir := filepath.Join(xdg, "courseindex")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("server:\n  log_level: warn\nmetrics:\n  addr: \":9100\"\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".courseindex.yml"),
		[]byte("server:\n  log_level: error\n"), 0o644))

	t.Setenv("COURSEINDEX_LOG_LEVEL", "debug")
	t.Setenv("COURSEINDEX_ENGINE", "none")

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: env wins, user-only values survive
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "none", cfg.Engine.Backend)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_NormalizesEnumeratedValues(t *testing.T) {
	// Given: mixed-case values from the environment
	isolate(t)
	t.Setenv("COURSEINDEX_ENGINE", "SQLite")
	t.Setenv("COURSEINDEX_LOG_LEVEL", "WARN")

	// When: loading
	cfg, err := Load(t.TempDir())

	// Then: readers see the lower-case spelling
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Engine.Backend)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	isolate(t)
	tests := map[string]string{
		"backend":  "engine:\n  backend: elasticsearch\n",
		"delay":    "queue:\n  retry_delay: soon\n",
		"loglevel": "server:\n  log_level: loud\n",
		"yaml":     "engine: [unclosed\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".courseindex.yaml"), []byte(content), 0o644))
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Engine.Backend = "sqlite"
	cfg.Queue.Workers = 3

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".courseindex.yaml")))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", loaded.Engine.Backend)
	assert.Equal(t, 3, loaded.Queue.Workers)
	assert.Equal(t, []string{"openassessment"}, loaded.Indexing.ExcludedCategories)
}
