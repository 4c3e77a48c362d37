// Package masters exposes the write path that registers a master audio
// and enqueues its processing job. Enqueueing is explicit here; nothing
// fires implicitly on row creation.
package masters

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/castworks/processor-api/api/types"
	"github.com/castworks/processor-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers master audio routes on the given group
func RegisterRoutes(group *gin.RouterGroup, deps *types.Dependencies) {
	group.POST("", Create(deps))
	group.POST("/:id/process", Reprocess(deps))
	group.GET("/:id", Get(deps))
}

// CreateRequest registers a new master audio file.
type CreateRequest struct {
	EpisodeID  uint   `json:"episode_id" binding:"required"`
	StorageKey string `json:"storage_key" binding:"required"`
	Name       string `json:"name"`
	UserID     uint   `json:"user_id"`
}

// Create registers the master record and enqueues processing.
func Create(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		master := &models.Audio{
			EpisodeID:  req.EpisodeID,
			Name:       req.Name,
			StorageKey: req.StorageKey,
		}
		if err := deps.AudioRepo.CreateMaster(c.Request.Context(), master); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				c.JSON(http.StatusConflict, gin.H{"error": "master already exists for episode"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create master"})
			return
		}

		job, err := enqueue(c, deps, master.ID, req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue processing"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"master": master, "job_id": job.ID})
	}
}

// ReprocessRequest optionally names the charging user for transcription.
type ReprocessRequest struct {
	UserID uint `json:"user_id"`
}

// Reprocess enqueues a new processing job for an existing master.
func Reprocess(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		audioID, ok := parseID(c)
		if !ok {
			return
		}

		master, err := deps.AudioRepo.GetMaster(c.Request.Context(), audioID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load master"})
			return
		}
		if master == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "master not found"})
			return
		}

		var req ReprocessRequest
		_ = c.ShouldBindJSON(&req)

		job, err := enqueue(c, deps, master.ID, req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue processing"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
	}
}

// Get returns the master record with its processing state.
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		audioID, ok := parseID(c)
		if !ok {
			return
		}

		master, err := deps.AudioRepo.GetMaster(c.Request.Context(), audioID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load master"})
			return
		}
		if master == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "master not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"master": master})
	}
}

func enqueue(c *gin.Context, deps *types.Dependencies, audioID, userID uint) (*models.Job, error) {
	payload := models.JobPayload{"audio_id": audioID}
	if userID != 0 {
		payload["user_id"] = userID
	}
	return deps.Jobs.EnqueueUniqueJob(c.Request.Context(), models.JobTypeAudioProcessing, payload, "audio_id")
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid master id"})
		return 0, false
	}
	return uint(id), true
}
