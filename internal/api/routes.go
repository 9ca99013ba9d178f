package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the preview routes. Unmatched paths are served from
// staticDir when it is set.
func SetupRoutes(handler *Handler, staticDir string, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(NoCache())
	router.Use(Logger(logger))

	// Health check
	router.GET("/health", handler.HealthCheck)
	router.GET("/rss.xml", handler.GetFeed)

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/posts", handler.ListPosts)
		v1.GET("/posts/*id", handler.GetPost)
		v1.GET("/authors/:id", handler.GetAuthor)
		v1.GET("/repos", handler.ListRepos)
	}

	if staticDir != "" {
		files := http.FileServer(gin.Dir(staticDir, false))
		router.NoRoute(func(c *gin.Context) {
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return router
}
