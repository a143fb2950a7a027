package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workflow.KeywordCount)
	assert.Equal(t, 6, cfg.Workflow.ResultsPerKeyword)
	assert.Equal(t, 5, cfg.Workflow.MaxReferences)
	assert.Equal(t, 120*time.Second, cfg.Workflow.GateTimeout)
	assert.Equal(t, 3*time.Second, cfg.Lookup.RateInterval)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Empty(t, cfg.Redis.Addr, "cache disabled by default")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paperscout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  url: http://model.internal:9000/complete
  timeout: 30s
workflow:
  gate_timeout: 10s
  results_per_keyword: 2
observability:
  logging:
    level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://model.internal:9000/complete", cfg.LLM.URL)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Workflow.GateTimeout)
	assert.Equal(t, 2, cfg.Workflow.ResultsPerKeyword)
	assert.Equal(t, 3, cfg.Workflow.KeywordCount, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PAPERSCOUT_WORKFLOW_GATE_TIMEOUT", "7s")
	t.Setenv("PAPERSCOUT_LLM_URL", "http://override:1234")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.Workflow.GateTimeout)
	assert.Equal(t, "http://override:1234", cfg.LLM.URL)
}

func TestEnvOverrideForZeroDefaultKeys(t *testing.T) {
	// Keys whose default is the zero value must still accept overrides.
	t.Setenv("PAPERSCOUT_REDIS_ADDR", "cache.internal:6379")
	t.Setenv("PAPERSCOUT_LLM_MODEL", "gpt-test")
	t.Setenv("PAPERSCOUT_OBSERVABILITY_METRICS_ADDR", ":9091")
	t.Setenv("PAPERSCOUT_WORKFLOW_PROMPT_FILE", "/etc/paperscout/prompts.yaml")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
	assert.Equal(t, ":9091", cfg.Observability.MetricsAddr)
	assert.Equal(t, "/etc/paperscout/prompts.yaml", cfg.Workflow.PromptFile)
}
