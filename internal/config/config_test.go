package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "appraisal-cache.db", cfg.Cache.Path)
	assert.Equal(t, "sources.yaml", cfg.Roster.Path)
	assert.Equal(t, 0.85, cfg.Dedupe.Threshold)
	assert.Equal(t, 120, cfg.Pipeline.TimeoutSecs)
	assert.False(t, cfg.Pipeline.PartialOnTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NotEmpty(t, cfg.Anthropic.Models)
}

func TestLoad_ConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
cache:
  backend: redis
  redis_addr: redis.internal:6380
dedupe:
  threshold: 0.9
server:
  port: 9090
`), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.RedisAddr)
	assert.Equal(t, 0.9, cfg.Dedupe.Threshold)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APPRAISAL_CACHE_BACKEND", "memory")
	t.Setenv("APPRAISAL_ANTHROPIC_KEY", "sk-test")
	t.Setenv("APPRAISAL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cache: [broken"), 0o644))
	chdir(t, dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "verbose", Format: "json"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
}
