package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"dqsurvey/internal/sections"
	"dqsurvey/internal/services/health"
	"dqsurvey/internal/shared/config"
	"dqsurvey/internal/shared/server"
	"dqsurvey/internal/shared/storage/db"
	"dqsurvey/internal/shared/telemetry"
)

// App holds the section storage service dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	SectionsRepo    sections.Repo
	SectionsService *sections.Service
	SectionsHandler *sections.Handler
	Health          *health.Service
}

// Build connects storage, applies migrations and mounts the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if err := telemetry.SetLevel(cfg.LogLevel); err != nil {
		telemetry.Warn("bootstrap.log_level_invalid", map[string]any{"level": cfg.LogLevel, "error": err})
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	app := &App{Config: cfg, DB: sqlDB}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		SectionsHandler: app.SectionsHandler,
		Health:          app.Health,
	})
	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.SectionsRepo = &sections.PGRepo{DB: app.DB}
	} else {
		app.SectionsRepo = sections.NewMemoryRepo()
	}

	app.SectionsService = sections.NewService(app.SectionsRepo)
	app.SectionsHandler = sections.NewHandler(app.SectionsService)
	app.Health = health.NewService(app.DB)

	if app.SectionsHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
