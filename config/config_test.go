package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-run/orchestra/config"
)

func TestExpandEnvVars_BracedAndDefault(t *testing.T) {
	t.Setenv("ORCH_TEST_KEY", "actual-value")

	out := config.ExpandEnvVars("key: ${ORCH_TEST_KEY}\nfallback: ${MISSING_KEY:-fallback-value}")
	assert.Contains(t, out, "key: actual-value")
	assert.Contains(t, out, "fallback: fallback-value")
}

func TestLoad_AppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	content := "name: test-runtime\nroot_engine: openai\ndelegate_engine: openai\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxDelegationDepth)
	assert.Equal(t, 3, cfg.RequestConcurrency)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 4, cfg.AutoAggregateThreshold)
}

func TestLoad_MissingNameFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("root_engine: openai\ndelegate_engine: openai\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate_DuplicateToolNameFails(t *testing.T) {
	cfg := &config.Config{
		Name: "x", RootEngine: "openai", DelegateEngine: "openai",
		Tools: []config.ToolConfig{{Name: "search"}, {Name: "search"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
}
