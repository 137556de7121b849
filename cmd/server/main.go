package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/api"
	"github.com/ewhitford/labsite/internal/config"
	dbstore "github.com/ewhitford/labsite/internal/db"
	"github.com/ewhitford/labsite/internal/experiments"
	"github.com/ewhitford/labsite/internal/intake"
	"github.com/ewhitford/labsite/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	var zapCfg zap.Config
	if cfg.Production() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logg := logger.Sugar()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(cfg.DatabasePath))
	sqliteDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer sqliteDB.Close()

	if err := dbstore.RunMigrations(sqliteDB, ""); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	store, err := dbstore.NewSQLiteStore(sqliteDB, logg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	dictator := experiments.NewService(store, experiments.DictatorTask(), cfg.DictatorExperimentSlug, logg)
	temporal := experiments.NewService(store, experiments.TemporalTask(), cfg.TemporalExperimentSlug, logg)

	manager := &intake.Manager{RepoRoot: cfg.RepoRoot}
	orchestrator := intake.NewOrchestrator(manager, cfg.ContentBaseBranch, cfg.GitHubToken, logg)
	reader := &intake.Reader{RepoRoot: cfg.RepoRoot}

	mux := http.NewServeMux()
	api.NewRouter(api.RouterConfig{
		Dictator:            dictator,
		Temporal:            temporal,
		DictatorExportToken: cfg.DictatorExportToken,
		TemporalExportToken: cfg.TemporalExportToken,
		SecureCookies:       cfg.Production(),
		ContentEnabled:      cfg.ContentPipelineEnabled,
		Orchestrator:        orchestrator,
		Reader:              reader,
		Log:                 logg,
	}).Register(mux)

	handler := middleware.SecureHeaders(middleware.NoStore(mux))

	logg.Infow("server listening",
		"addr", cfg.Addr,
		"env", cfg.Env,
		"content_pipeline", cfg.ContentPipelineEnabled)
	return http.ListenAndServe(cfg.Addr, handler)
}
