// Package playback hands out the CDN signed cookies a client needs to
// fetch an episode's HLS package, along with the manifest location.
package playback

import (
	"net/http"
	"strconv"

	"github.com/castworks/processor-api/api/types"
	"github.com/castworks/processor-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers playback routes on the given group
func RegisterRoutes(group *gin.RouterGroup, deps *types.Dependencies) {
	group.GET("/:episodeId/cookies", Cookies(deps))
}

// Cookies returns the signed cookies for an episode's package prefix.
// Cookies come from the rotator's cache when fresh, or are minted on demand.
func Cookies(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Rotator == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cdn signing not configured"})
			return
		}

		episodeID, err := strconv.ParseUint(c.Param("episodeId"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid episode id"})
			return
		}

		pkg, err := deps.AudioRepo.GetRendition(c.Request.Context(), uint(episodeID), models.KindPackage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load package"})
			return
		}
		if pkg == nil || pkg.Prefix == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "no package for episode"})
			return
		}

		cookies, err := deps.Rotator.Cookies(c.Request.Context(), pkg.Prefix)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sign cookies"})
			return
		}

		for name, value := range cookies {
			c.SetCookie(name, value, 0, "/"+pkg.Prefix, "", true, true)
		}
		c.JSON(http.StatusOK, gin.H{
			"manifest": pkg.StorageKey,
			"cookies":  cookies,
		})
	}
}
