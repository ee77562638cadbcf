package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-visualizer/backend/internal/layout"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, 0.1, cfg.Layout.Scale)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.Storage.UploadDir)
	assert.Equal(t, filepath.Join(dir, "data", "export"), cfg.Storage.ExportDir)
	assert.Empty(t, cfg.Rules.UserFile)

	// a second load reads the file it wrote
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `server:
  port: 9000
index:
  viper_fallback: true
  max_sessions: 3
layout:
  scale: 0.2
rules:
  user_file: rules/mine.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.True(t, cfg.Index.ViperFallback)
	assert.Equal(t, 3, cfg.Index.MaxSessions)
	assert.Equal(t, filepath.Join(dir, "rules", "mine.yaml"), cfg.Rules.UserFile)

	lc := cfg.LayoutEngine()
	assert.Equal(t, 0.2, lc.Scale)
	assert.Equal(t, layout.DefaultMaxPasses, lc.MaxPasses)
	assert.Equal(t, layout.DefaultMaxGridTicks, lc.MaxGridTicks)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TRIAGE_SERVER_PORT", "7070")
	t.Setenv("TRIAGE_LOG_LEVEL", "debug")
	t.Setenv("TRIAGE_INDEX_VIPER_FALLBACK", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Index.ViperFallback)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [port\n"), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("layout:\n  scale: 0\n"), 0o644))
	_, err = Load(zero)
	assert.ErrorContains(t, err, "layout.scale")
}

func TestLoad_SearchPathsFallBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.UploadDir = filepath.Join(dir, "u")
	cfg.Storage.TempDir = filepath.Join(dir, "t")
	cfg.Storage.ExportDir = filepath.Join(dir, "e", "x")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.Storage.ExportDir)
	assert.Equal(t, "0.0.0.0:8089", cfg.Addr())
}
