package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer builds the HTTP surface: health and metrics in the open, the
// operator API behind the access key when one is configured.
func NewServer(handler *Handler, accessKey string, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if accessKey != "" {
		api.Use(authMiddleware(accessKey))
		logger.Info("api authentication enabled")
	} else {
		logger.Warn("api authentication disabled, no access key configured")
	}
	{
		api.POST("/jobs", handler.StartJob)
		api.GET("/jobs", handler.ListJobs)
		api.GET("/jobs/:id", handler.GetJob)

		api.POST("/harvest/pause", handler.PauseHarvest)
		api.POST("/harvest/resume", handler.ResumeHarvest)
		api.POST("/harvest/stop", handler.StopHarvest)

		api.GET("/sources", handler.ListSources)
		api.PUT("/sources/:id", handler.UpdateSource)
	}

	return r
}

func authMiddleware(accessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-Key") != accessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}
