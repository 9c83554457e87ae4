package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vid2md/vid2md/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// uploads stream to disk past this threshold
	r.MaxMultipartMemory = 32 << 20

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "vid2md-api-service",
		})
	})

	// Extracted frames are served from the static asset area so the
	// generated Markdown's relative image references resolve.
	r.Static("/static", deps.Config.Media.StaticDir)

	// Initialize project handler
	projectHandler := handler.NewProjectHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		projects := v1.Group("/projects")
		{
			// POST /api/v1/projects - Upload a video and queue conversion
			projects.POST("", projectHandler.CreateProject)

			// GET /api/v1/projects - List projects with pagination
			projects.GET("", projectHandler.ListProjects)

			// GET /api/v1/projects/:project_id - Poll project status and progress
			projects.GET("/:project_id", projectHandler.GetProject)

			// GET /api/v1/projects/:project_id/content - Fetch the generated document
			projects.GET("/:project_id/content", projectHandler.GetContent)

			// PUT /api/v1/projects/:project_id/content - Save document edits
			projects.PUT("/:project_id/content", projectHandler.UpdateContent)

			// GET /api/v1/projects/:project_id/export - Download the zip archive
			projects.GET("/:project_id/export", projectHandler.ExportProject)
		}
	}

	return r
}
