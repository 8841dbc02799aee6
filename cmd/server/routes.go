package main

import (
	"github.com/gin-gonic/gin"
	"github.com/tasktracker/backend/internal/middleware"
	"github.com/tasktracker/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(middleware.ContextUserID), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))

	r.GET("/health", svc.healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		// Auth routes (public, rate limited per client IP)
		auth := api.Group("/auth", svc.authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.PUT("/auth/password", svc.authHandler.ChangePassword)

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.PUT("/projects/:id", svc.projectHandler.Update)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)
			protected.POST("/projects/:id/members", svc.projectHandler.AddMember)
			protected.DELETE("/projects/:id/members/:userId", svc.projectHandler.RemoveMember)

			// Tasks
			protected.GET("/tasks", svc.taskHandler.List)
			protected.POST("/tasks", svc.taskHandler.Create)
			protected.POST("/tasks/by-projects", svc.taskHandler.ListByProjects)
			protected.GET("/tasks/:id", svc.taskHandler.GetByID)
			protected.PUT("/tasks/:id", svc.taskHandler.Update)
			protected.DELETE("/tasks/:id", svc.taskHandler.Delete)

			// Tags
			protected.GET("/tags", svc.tagHandler.List)
			protected.POST("/tags", svc.tagHandler.Create)
			protected.DELETE("/tags/:id", svc.tagHandler.Delete)

			// Users
			protected.GET("/users", svc.userHandler.List)
			protected.GET("/users/me", svc.userHandler.GetProfile)
			protected.PUT("/users/me", svc.userHandler.UpdateProfile)
			protected.GET("/users/me/tasks", svc.userHandler.AssignedTasks)
		}
	}
}
