package main

import (
	"github.com/tasktracker/backend/internal/config"
	"github.com/tasktracker/backend/internal/handlers"
	"github.com/tasktracker/backend/internal/middleware"
	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/internal/utils"
	"github.com/tasktracker/backend/pkg/logger"
)

// appServices holds the handlers and background resources the router needs.
type appServices struct {
	cfg            *config.Config
	authLimiter    *middleware.RateLimiter
	authHandler    *handlers.AuthHandler
	projectHandler *handlers.ProjectHandler
	taskHandler    *handlers.TaskHandler
	tagHandler     *handlers.TagHandler
	userHandler    *handlers.UserHandler
	healthHandler  *handlers.HealthHandler
}

// bootstrap connects the database, migrates the schema and builds handlers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("Database ready")

	db := models.GetDB()
	return &appServices{
		cfg:            cfg,
		authLimiter:    middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),
		authHandler:    handlers.NewAuthHandler(db, cfg),
		projectHandler: handlers.NewProjectHandler(db),
		taskHandler:    handlers.NewTaskHandler(db),
		tagHandler:     handlers.NewTagHandler(db),
		userHandler:    handlers.NewUserHandler(db),
		healthHandler:  handlers.NewHealthHandler(db),
	}
}

// shutdown releases background resources and closes the database pool.
func (s *appServices) shutdown() {
	s.authLimiter.Stop()

	if sqlDB, err := models.GetDB().DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
	logger.Info().Msg("All services stopped")
}
