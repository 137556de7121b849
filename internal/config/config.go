// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete server configuration.
type Config struct {
	Addr         string `koanf:"labsite_addr"`
	Env          string `koanf:"labsite_env"`
	DatabasePath string `koanf:"labsite_db_path"`

	DictatorExportToken    string `koanf:"dictator_export_token"`
	TemporalExportToken    string `koanf:"temporal_discounting_export_token"`
	DictatorExperimentSlug string `koanf:"dictator_experiment_slug"`
	TemporalExperimentSlug string `koanf:"temporal_discounting_experiment_slug"`

	ContentPipelineEnabled bool   `koanf:"content_pipeline_enabled"`
	ContentBaseBranch      string `koanf:"content_pipeline_base_branch"`
	GitHubToken            string `koanf:"github_token"`
	RepoRoot               string `koanf:"labsite_repo_root"`
}

const (
	defaultDictatorSlug = "dictator-game-v1"
	defaultTemporalSlug = "temporal-discounting-v1"
)

// Load reads configuration from the environment.
//
// Environment variables:
//   - LABSITE_ADDR: listen address (default ":8080")
//   - LABSITE_ENV: "production" enables Secure session cookies
//   - LABSITE_DB_PATH: SQLite database path (default "data/labsite.db")
//   - LABSITE_REPO_ROOT: checkout of the site repository (default ".")
//   - DICTATOR_EXPORT_TOKEN / TEMPORAL_DISCOUNTING_EXPORT_TOKEN: CSV export secrets
//   - DICTATOR_EXPERIMENT_SLUG / TEMPORAL_DISCOUNTING_EXPERIMENT_SLUG: slug overrides
//   - CONTENT_PIPELINE_ENABLED: "true" enables the local content intake routes
//   - CONTENT_PIPELINE_BASE_BRANCH: base branch for intake PRs (default "main")
//   - GITHUB_TOKEN: credential for pull request creation
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{
		Addr:              ":8080",
		Env:               "development",
		DatabasePath:      "data/labsite.db",
		ContentBaseBranch: "main",
		RepoRoot:          ".",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.ContentBaseBranch = strings.TrimSpace(cfg.ContentBaseBranch); cfg.ContentBaseBranch == "" {
		cfg.ContentBaseBranch = "main"
	}

	// Deployments that predate the temporal-discounting experiment configure a
	// single shared export secret under the dictator name.
	if cfg.TemporalExportToken == "" {
		cfg.TemporalExportToken = cfg.DictatorExportToken
	}

	if cfg.DictatorExperimentSlug == "" {
		cfg.DictatorExperimentSlug = defaultDictatorSlug
	}
	if cfg.TemporalExperimentSlug == "" {
		cfg.TemporalExperimentSlug = defaultTemporalSlug
	}

	return cfg, nil
}

// Production reports whether the server runs with production hardening.
func (c *Config) Production() bool {
	return c.Env == "production"
}
