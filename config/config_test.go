package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, 0, cfg.MaxLimit)
	assert.False(t, cfg.IncludeTotal)
	assert.True(t, cfg.EnableUntypedQueries)
	assert.False(t, cfg.EnableRawSQLFilters)
	assert.True(t, cfg.OrderByPrimaryKey)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingFileIsSkipped(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoquery.yaml")
	content := []byte("database_path: orders.db\nmax_limit: 50\ninclude_total: true\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders.db", cfg.DatabasePath)
	assert.Equal(t, 50, cfg.MaxLimit)
	assert.True(t, cfg.IncludeTotal)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Keys the file does not mention keep their defaults.
	assert.True(t, cfg.EnableUntypedQueries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_limit: 50\n"), 0o644))

	t.Setenv("AUTOQUERY_MAX_LIMIT", "200")
	t.Setenv("AUTOQUERY_CASE_SENSITIVE_LIKE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.MaxLimit)
	assert.True(t, cfg.CaseSensitiveLike)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_limit: [broken\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Options(t *testing.T) {
	cfg := &Config{
		MaxLimit:             100,
		IncludeTotal:         true,
		EnableUntypedQueries: true,
		OrderByPrimaryKey:    true,
		NamedConnection:      "reporting",
	}

	opts := cfg.Options()
	require.NotNil(t, opts.MaxLimit)
	assert.Equal(t, 100, *opts.MaxLimit)
	assert.True(t, opts.IncludeTotal)
	assert.True(t, opts.EnableUntypedQueries)
	assert.True(t, opts.OrderByPrimaryKeyOnPagedQuery)
	assert.Equal(t, "reporting", opts.NamedConnection)
}

func TestConfig_OptionsUnboundedLimit(t *testing.T) {
	opts := (&Config{MaxLimit: 0}).Options()
	assert.Nil(t, opts.MaxLimit)
}
