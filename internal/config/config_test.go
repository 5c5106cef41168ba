package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/playbook/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, config.BackendFile, cfg.Store.Backend)
	assert.Equal(t, ".playbook/progress", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
remote:
  base_url: https://ir.example.com
  timeout: 3s
store:
  backend: redis
  mask_patterns: ["\\d{3}-\\d{2}-\\d{4}"]
redis:
  addr: redis:6379
  ttl: 24h
log:
  level: debug
`), 0o600))

	t.Setenv("PLAYBOOK_REDIS_PREFIX", "ir:")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("http.port", "8080", "")
	require.NoError(t, flags.Parse([]string{"--http.port=9090"}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "https://ir.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, []string{`\d{3}-\d{2}-\d{4}`}, cfg.Store.MaskPatterns)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "ir:", cfg.Redis.Prefix)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: postgres\n"), 0o600))

	_, err := config.Load(path, nil)
	assert.ErrorContains(t, err, "unknown backend")

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_FlagAliases(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("fixture", "", "")
	flags.String("store", "file", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--fixture=demo.yaml", "--store=sqlite", "--log-level=warn"}))

	cfg, err := config.Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "demo.yaml", cfg.Remote.Fixture)
	assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
}
