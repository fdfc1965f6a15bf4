package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Address)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "eth", cfg.Chains.DefaultChain)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout())
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryBaseDelay())
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.LLM.Gemini.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Gemini.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.LLM.Gemini.MaxOutputTokens)
	assert.Equal(t, 5, cfg.Agent.DefaultBlockCount)
	assert.Equal(t, 10, cfg.Agent.MaxBlockCount)
	assert.Equal(t, "explorer", cfg.Gas.Source)
	assert.Equal(t, 8*time.Second, cfg.Dashboard.CacheTTL())
	assert.Equal(t, "memory", cfg.TaskQueue.Driver)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "envioscout.json")
	body := `{
		"server": {"address": ":9000"},
		"chains": {"definitions": "chains.yaml", "default_chain": "base"},
		"gas": {"source": "blockstats"},
		"dashboard": {"cache_ttl_ms": 2000, "cache": {"driver": "redis"}},
		"metrics": {"enabled": false}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("GEMINI_API_KEY", " key-123 ")
	t.Setenv("HYPERSYNC_BEARER_TOKEN", "token-abc")
	t.Setenv("PORT", "4000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Server.Address)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, filepath.Join(dir, "chains.yaml"), cfg.Chains.Definitions)
	assert.Equal(t, "base", cfg.Chains.DefaultChain)
	assert.Equal(t, "blockstats", cfg.Gas.Source)
	assert.Equal(t, 2*time.Second, cfg.Dashboard.CacheTTL())
	assert.Equal(t, "redis", cfg.Dashboard.Cache.Driver)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "key-123", cfg.LLM.Gemini.APIKey)
	assert.Equal(t, "token-abc", cfg.Indexer.BearerToken)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultPath, PathFromEnv())
	t.Setenv(EnvConfigPath, "/etc/envioscout.json")
	assert.Equal(t, "/etc/envioscout.json", PathFromEnv())
}
