package api

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castworks/processor-api/api/health"
	"github.com/castworks/processor-api/api/masters"
	"github.com/castworks/processor-api/api/playback"
	"github.com/castworks/processor-api/api/transcripts"
	"github.com/castworks/processor-api/api/types"
	"github.com/castworks/processor-api/api/version"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies, rateLimiters *sync.Map, cleanupStop chan struct{}, cleanupInitialized *sync.Once) error {
	// Register public routes (no rate limiting)
	health.RegisterRoutes(engine, deps)
	version.RegisterRoutes(engine, deps)

	// Prometheus scrape endpoint
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup 404 handler
	engine.NoRoute(NotFoundHandler())

	// API v1 routes
	v1 := engine.Group("/api/v1")

	// Master ingest is a write path, keep the limit tight (2 req/s, burst of 5)
	mastersGroup := v1.Group("/masters")
	mastersGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 2, 5))
	masters.RegisterRoutes(mastersGroup, deps)

	// Playback cookie handout is read-heavy (20 req/s, burst of 40)
	playbackGroup := v1.Group("/playback")
	playbackGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 20, 40))
	playback.RegisterRoutes(playbackGroup, deps)

	// Transcript reads with general rate limiting (10 req/s, burst of 20)
	transcriptsGroup := v1.Group("/transcripts")
	transcriptsGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 10, 20))
	transcripts.RegisterRoutes(transcriptsGroup, deps)

	return nil
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(404, gin.H{
			"status":  "error",
			"message": "The requested endpoint was not found",
			"path":    c.Request.URL.Path,
		})
	}
}
