package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxPlannerTurns)
	assert.Equal(t, 2, cfg.MaxRCARetries)
	assert.Equal(t, 600, cfg.PipelineTimeoutS)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "max_planner_turns: 5\nlinter_endpoint: http://linter.local\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labforge.yaml"), []byte(yamlContent), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxPlannerTurns)
	assert.Equal(t, "http://linter.local", cfg.LinterEndpoint)
	// Untouched defaults survive the merge.
	assert.Equal(t, 2, cfg.MaxRCARetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labforge.yaml"), []byte("max_planner_turns: 5\n"), 0o600))
	t.Setenv("MAX_PLANNER_TURNS", "7")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxPlannerTurns)
}

func TestLoad_ExpandsEnvInYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labforge.yaml"), []byte("llm_credential: ${TEST_LLM_TOKEN}\n"), 0o600))
	t.Setenv("TEST_LLM_TOKEN", "secret-token")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.LLMCredential)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labforge.yaml"), []byte("max_planner_turns: [unclosed\n"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsZeroPlannerTurns(t *testing.T) {
	cfg := Defaults()
	cfg.MaxPlannerTurns = 0
	err := Validate(cfg)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
