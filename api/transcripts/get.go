// Package transcripts exposes read endpoints for transcription output:
// the transcript itself, derived chapters, and the episode summary.
package transcripts

import (
	"net/http"
	"strconv"

	"github.com/castworks/processor-api/api/types"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers transcript routes on the given group
func RegisterRoutes(group *gin.RouterGroup, deps *types.Dependencies) {
	group.GET("/:episodeId", Get(deps))
	group.GET("/:episodeId/chapters", GetChapters(deps))
	group.GET("/:episodeId/summary", GetSummary(deps))
}

// Get returns the episode's transcription record.
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		episodeID, ok := parseEpisodeID(c)
		if !ok {
			return
		}

		transcription, err := deps.Transcripts.GetByEpisodeID(c.Request.Context(), episodeID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transcript"})
			return
		}
		if transcription == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no transcript for episode"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"transcription": transcription})
	}
}

// GetChapters returns the episode's chapters in playback order.
func GetChapters(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		episodeID, ok := parseEpisodeID(c)
		if !ok {
			return
		}

		chapters, err := deps.Transcripts.GetChapters(c.Request.Context(), episodeID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chapters"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"chapters": chapters})
	}
}

// GetSummary returns the episode's summary.
func GetSummary(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		episodeID, ok := parseEpisodeID(c)
		if !ok {
			return
		}

		summary, err := deps.Transcripts.GetSummary(c.Request.Context(), episodeID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summary"})
			return
		}
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no summary for episode"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

func parseEpisodeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("episodeId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid episode id"})
		return 0, false
	}
	return uint(id), true
}
