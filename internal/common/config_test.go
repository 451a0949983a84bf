package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/qabot/constants"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"QABOT_RULES_WORKBOOK", "QABOT_RULES_SHEET_URL", "QABOT_RULES_INCLUDE_SHARED", "QABOT_RULES_CACHE_TTL",
		"QABOT_LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "GEMINI_API_KEY", "GEMINI_MODEL",
		"QABOT_MODE", "QABOT_MAX_BATCH_SIZE", "QABOT_CONCURRENCY", "DB_URL", "GRPC_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfigFile("")
	require.NoError(t, err)

	assert.Equal(t, constants.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, constants.ModeChunked, cfg.Check.Mode)
	assert.Equal(t, constants.DefaultMaxBatchSize, cfg.Check.MaxBatchSize)
	assert.Equal(t, 1, cfg.Check.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Rules.CacheTTL)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadConfigFile_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "qabot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  workbook_path: /data/rules.xlsx
  include_shared: true
llm:
  provider: gemini
  api_key: from-file
  temperature: 0.3
check:
  mode: per-rule
  max_batch_size: 10
database:
  dsn: /var/lib/qabot/runs.db
`), 0o644))

	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("QABOT_MAX_BATCH_SIZE", "5")
	t.Setenv("OPENAI_API_KEY", "ignored-for-gemini")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/rules.xlsx", cfg.Rules.WorkbookPath)
	assert.True(t, cfg.Rules.IncludeShared)
	assert.Equal(t, constants.ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, constants.ModePerRule, cfg.Check.Mode)
	assert.Equal(t, 5, cfg.Check.MaxBatchSize)
	assert.Equal(t, "/var/lib/qabot/runs.db", cfg.Database.DSN)
	assert.Equal(t, 1, cfg.Check.Concurrency, "unset keys keep their defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_Errors(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, IsKind(err, CodeConfig))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules: [unclosed"), 0o644))
	_, err = LoadConfigFile(bad)
	require.Error(t, err)
	assert.True(t, IsKind(err, CodeConfig))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := defaultConfig()
		c.Rules.WorkbookPath = "rules.xlsx"
		c.LLM.APIKey = "k"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no rules location", func(c *Config) { c.Rules.WorkbookPath = "" }, "QABOT_RULES_WORKBOOK"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "claude" }, "unknown LLM provider"},
		{"no api key", func(c *Config) { c.LLM.APIKey = "" }, "API key"},
		{"zero batch size", func(c *Config) { c.Check.MaxBatchSize = 0 }, "max batch size"},
		{"zero concurrency", func(c *Config) { c.Check.Concurrency = 0 }, "concurrency"},
		{"unknown mode", func(c *Config) { c.Check.Mode = "fast" }, "unknown check mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, IsKind(err, CodeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
