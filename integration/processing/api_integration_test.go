package processing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castworks/processor-api/api"
	"github.com/castworks/processor-api/api/types"
	"github.com/castworks/processor-api/internal/database"
	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/internal/services/jobs"
	"github.com/castworks/processor-api/internal/services/pipeline"
	"github.com/castworks/processor-api/internal/services/workers"
	"github.com/castworks/processor-api/internal/storage"
	"github.com/castworks/processor-api/pkg/config"
	"github.com/castworks/processor-api/pkg/ffmpeg"
)

// stubTranscoder writes placeholder outputs so the pipeline runs without
// real ffmpeg binaries.
type stubTranscoder struct{}

func (stubTranscoder) GetMetadata(ctx context.Context, filePath string) (*ffmpeg.AudioMetadata, error) {
	return &ffmpeg.AudioMetadata{
		Duration:    600,
		SampleRate:  44100,
		Channels:    2,
		BitrateKbps: 320,
		Codec:       "mp3",
		Title:       "Integration Episode",
	}, nil
}

func (stubTranscoder) TranscodeVariant(ctx context.Context, input, output string, preset ffmpeg.VariantPreset) error {
	return os.WriteFile(output, []byte("variant-audio"), 0o644)
}

func (stubTranscoder) SegmentHLS(ctx context.Context, input, outDir string, preset ffmpeg.VariantPreset, segmentSeconds int) error {
	if err := os.WriteFile(filepath.Join(outDir, "index.m3u8"), []byte("#EXTM3U\n"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "segment_00000.ts"), []byte("segment"), 0o644)
}

func (stubTranscoder) ExtractClip(ctx context.Context, input, output string, startSeconds, windowSeconds float64, preset ffmpeg.VariantPreset) error {
	return os.WriteFile(output, []byte("preview-audio"), 0o644)
}

type suite struct {
	router     *gin.Engine
	db         *database.DB
	repo       audio.Repository
	store      storage.ObjectStore
	jobService jobs.Service
	pool       *workers.WorkerPool
}

func setupSuite(t *testing.T) *suite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	repo := audio.NewRepository(db.DB)
	jobService := jobs.NewService(jobs.NewRepository(db.DB), time.Second)

	cfg := config.ProcessingConfig{
		ScratchDir: t.TempDir(),
		Tiers: map[string]config.TierConfig{
			"low":    {BitrateKbps: 64, SampleRate: 22050, Channels: 2},
			"medium": {BitrateKbps: 128, SampleRate: 44100, Channels: 2},
			"high":   {BitrateKbps: 256, SampleRate: 44100, Channels: 2},
		},
		PackageProfile: "medium",
		SegmentSeconds: 10,
		PreviewSeconds: 30,
		PreviewBitrate: 64,
		PreviewRate:    22050,
	}

	orchestrator := pipeline.New(repo, store, stubTranscoder{}, nil, cfg, false)

	pool := workers.NewWorkerPool(jobService, 1, 10*time.Millisecond)
	pool.RegisterProcessor(workers.NewAudioProcessor(orchestrator))

	deps := &types.Dependencies{
		DB:          db,
		Jobs:        jobService,
		AudioRepo:   repo,
		Transcripts: nil,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	rateLimiters := &sync.Map{}
	cleanupStop := make(chan struct{})
	t.Cleanup(func() { close(cleanupStop) })
	require.NoError(t, api.RegisterRoutes(router, deps, rateLimiters, cleanupStop, &sync.Once{}))

	return &suite{
		router:     router,
		db:         db,
		repo:       repo,
		store:      store,
		jobService: jobService,
		pool:       pool,
	}
}

func (s *suite) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *suite) waitProcessed(t *testing.T, masterID uint) *models.Audio {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		master, err := s.repo.GetMaster(context.Background(), masterID)
		require.NoError(t, err)
		if master != nil && master.Processed {
			return master
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("master never reached processed state")
	return nil
}

func TestIngestToProcessedEpisode(t *testing.T) {
	s := setupSuite(t)

	masterKey := "uploads/ep42.mp3"
	require.NoError(t, s.store.Upload(context.Background(), masterKey, bytes.NewReader([]byte("master-audio"))))

	rec := s.post(t, "/api/v1/masters", gin.H{
		"episode_id":  uint(42),
		"storage_key": masterKey,
		"name":        "Episode 42",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Master models.Audio `json:"master"`
		JobID  uint         `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.pool.Start(ctx))
	defer s.pool.Stop()

	master := s.waitProcessed(t, created.Master.ID)
	assert.Equal(t, "Integration Episode", master.Name)
	assert.Equal(t, 320, master.BitrateKbps)

	// The full ladder plus package and preview should exist.
	for _, kind := range []models.RenditionKind{models.KindLow, models.KindMedium, models.KindHigh} {
		variant, err := s.repo.GetRendition(context.Background(), 42, kind)
		require.NoError(t, err)
		require.NotNil(t, variant, "missing %s variant", kind)

		exists, err := s.store.Exists(context.Background(), variant.StorageKey)
		require.NoError(t, err)
		assert.True(t, exists, "missing object for %s variant", kind)
	}

	pkg, err := s.repo.GetRendition(context.Background(), 42, models.KindPackage)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, fmt.Sprintf("episodes/package/%d/medium/index.m3u8", 42), pkg.StorageKey)

	preview, err := s.repo.GetRendition(context.Background(), 42, models.KindPreview)
	require.NoError(t, err)
	require.NotNil(t, preview)

	// The job should have completed.
	job, err := s.jobService.GetJob(context.Background(), created.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestReprocessIsIdempotent(t *testing.T) {
	s := setupSuite(t)

	masterKey := "uploads/ep7.mp3"
	require.NoError(t, s.store.Upload(context.Background(), masterKey, bytes.NewReader([]byte("master-audio"))))

	rec := s.post(t, "/api/v1/masters", gin.H{"episode_id": uint(7), "storage_key": masterKey})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Master models.Audio `json:"master"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.pool.Start(ctx))
	defer s.pool.Stop()

	s.waitProcessed(t, created.Master.ID)

	rec = s.post(t, fmt.Sprintf("/api/v1/masters/%d/process", created.Master.ID), gin.H{})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var rerun struct {
		JobID uint `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rerun))

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := s.jobService.GetJob(context.Background(), rerun.JobID)
		require.NoError(t, err)
		if job.Status == models.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rerun job stuck in status %s", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Renditions stay unique per (episode, kind) across reruns.
	var count int64
	require.NoError(t, s.db.DB.Model(&models.Audio{}).Where("episode_id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(6), count)
}
