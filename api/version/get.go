package version

import (
	"net/http"

	"github.com/castworks/processor-api/api/types"
	"github.com/gin-gonic/gin"
)

// Version is set at build time via ldflags.
var Version = "dev"

// RegisterRoutes registers version routes
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies) {
	engine.GET("/version", Get())
}

// Get handles version requests
func Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Castworks Processor API",
			"version": Version,
			"status":  "running",
		})
	}
}
