package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefault_ExcludesEngineDefaults(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, DefaultExclude, cfg.Exclude)
	assert.Contains(t, cfg.Exclude, "vendor")

	cfg.Exclude[0] = "changed"
	assert.NotEqual(t, "changed", DefaultExclude[0], "Default returns a copy")
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
db: graph.db
workers: 4
parallel: false
exclude: [vendor]
log_level: debug
extensions: [.cpp, .hpp]
include_dirs: [include, /opt/sdk/include]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "graph.db", cfg.DB)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, []string{"vendor"}, cfg.Exclude)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{".cpp", ".hpp"}, cfg.Extensions)
	assert.Equal(t, []string{"include", "/opt/sdk/include"}, cfg.IncludeDirs)
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, Default().DB, cfg.DB)
	assert.True(t, cfg.Parallel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "workers: [1"},
		{"negative workers", "workers: -1"},
		{"bad level", "log_level: loud"},
		{"bad extension", "extensions: [cpp]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.Workers = 3
	require.NoError(t, cfg.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	lvl, err := ParseLevel("INFO")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
