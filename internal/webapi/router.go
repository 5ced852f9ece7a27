package webapi

import (
	"transcribecore/pkg/logger"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes builds the gin engine implementing spec.md §6's endpoint set.
func SetupRoutes(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(corsMiddleware())

	router.GET("/health", handler.HealthCheck)
	router.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))

	router.POST("/transcribe", handler.SubmitJob)
	router.GET("/jobs/:job_id", handler.GetJob)
	router.GET("/jobs/:job_id/metadata", handler.GetMetadata)
	router.GET("/jobs/:job_id/artifact/:filename", handler.GetArtifact)
	router.GET("/jobs/:job_id/stream", handler.Stream)

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
