package server

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(handler *Handler, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/extract", handler.Extract)
		api.GET("/models", handler.ListModels)
		api.GET("/features", handler.ListFeatures)
		api.POST("/features/:name/default", handler.SetDefaultModel)
	}

	return router
}
