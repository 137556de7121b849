package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "data/labsite.db", cfg.DatabasePath)
	assert.Equal(t, "main", cfg.ContentBaseBranch)
	assert.Equal(t, ".", cfg.RepoRoot)
	assert.Equal(t, "dictator-game-v1", cfg.DictatorExperimentSlug)
	assert.Equal(t, "temporal-discounting-v1", cfg.TemporalExperimentSlug)
	assert.False(t, cfg.ContentPipelineEnabled)
	assert.False(t, cfg.Production())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LABSITE_ADDR", ":9090")
	t.Setenv("LABSITE_ENV", "production")
	t.Setenv("LABSITE_DB_PATH", "/var/lib/labsite/app.db")
	t.Setenv("CONTENT_PIPELINE_ENABLED", "true")
	t.Setenv("CONTENT_PIPELINE_BASE_BRANCH", "release")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("DICTATOR_EXPERIMENT_SLUG", "dictator-game-v2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.Production())
	assert.Equal(t, "/var/lib/labsite/app.db", cfg.DatabasePath)
	assert.True(t, cfg.ContentPipelineEnabled)
	assert.Equal(t, "release", cfg.ContentBaseBranch)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
	assert.Equal(t, "dictator-game-v2", cfg.DictatorExperimentSlug)
	assert.Equal(t, "temporal-discounting-v1", cfg.TemporalExperimentSlug)
}

func TestTemporalExportTokenFallsBackToDictator(t *testing.T) {
	t.Setenv("DICTATOR_EXPORT_TOKEN", "shared-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "shared-secret", cfg.TemporalExportToken)

	t.Setenv("TEMPORAL_DISCOUNTING_EXPORT_TOKEN", "own-secret")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "own-secret", cfg.TemporalExportToken)
	assert.Equal(t, "shared-secret", cfg.DictatorExportToken)
}

func TestBlankBaseBranchFallsBackToMain(t *testing.T) {
	t.Setenv("CONTENT_PIPELINE_BASE_BRANCH", "   ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.ContentBaseBranch)
}
