// Package pipeline orchestrates the processing of one master audio file
// into its derived renditions: bitrate variants, a segmented streaming
// package, a preview clip, and optionally a transcription.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/castworks/processor-api/internal/metrics"
	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/internal/storage"
	"github.com/castworks/processor-api/pkg/config"
	apperrors "github.com/castworks/processor-api/pkg/errors"
)

// Orchestrator runs the full pipeline for one master audio per call.
type Orchestrator struct {
	repo        audio.Repository
	store       storage.ObjectStore
	transcoder  Transcoder
	transcriber Transcriber
	cfg         config.ProcessingConfig
	transcribe  bool
}

// New creates an Orchestrator. transcriber may be nil to disable the
// transcription stage entirely.
func New(repo audio.Repository, store storage.ObjectStore, transcoder Transcoder, transcriber Transcriber, cfg config.ProcessingConfig, transcribe bool) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		store:       store,
		transcoder:  transcoder,
		transcriber: transcriber,
		cfg:         cfg,
		transcribe:  transcribe && transcriber != nil,
	}
}

// Run processes the master identified by audioID. A missing master is a
// benign outcome, not an error: deletions race with queued jobs. Every
// other stage failure before the terminal processed marker is returned
// to the queue layer for retry; idempotent upserts make re-runs safe.
func (o *Orchestrator) Run(ctx context.Context, audioID uint, userID uint) error {
	start := time.Now()
	err := o.run(ctx, audioID, userID)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.PipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return err
}

func (o *Orchestrator) run(ctx context.Context, audioID uint, userID uint) error {
	master, err := o.repo.GetMaster(ctx, audioID)
	if err != nil {
		return apperrors.DatabaseError("resolving master", err)
	}
	if master == nil {
		log.Printf("[INFO] Master audio %d not found, skipping processing", audioID)
		return nil
	}

	ws, err := newWorkspace(o.cfg.ScratchDir, master.EpisodeID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "creating workspace")
	}
	defer ws.cleanup()

	masterPath := ws.path("master" + masterExt(master.StorageKey))
	if err := o.fetchMaster(ctx, master.StorageKey, masterPath); err != nil {
		return err
	}

	meta, err := o.transcoder.GetMetadata(ctx, masterPath)
	if err != nil {
		return apperrors.ExternalError("ffprobe", err)
	}

	name := meta.Title
	if name == "" {
		name = master.Name
	}
	durationSeconds := int(meta.Duration)
	if err := o.repo.UpdateMasterInfo(ctx, master.ID, name, meta.Codec, meta.BitrateKbps, meta.SampleRate, durationSeconds); err != nil {
		return apperrors.DatabaseError("updating master info", err)
	}

	if err := o.runVariants(ctx, ws, master.EpisodeID, masterPath, meta); err != nil {
		return err
	}
	if err := o.runPackage(ctx, ws, master.EpisodeID, masterPath, meta); err != nil {
		return err
	}
	if err := o.runPreview(ctx, ws, master.EpisodeID, masterPath, meta); err != nil {
		return err
	}

	// Recognition is a value-add: its failure never fails the job.
	if o.transcribe {
		workDir, err := ws.subdir("transcription")
		if err != nil {
			log.Printf("[ERROR] Transcription workspace for episode %d: %v", master.EpisodeID, err)
		} else if err := o.transcriber.Transcribe(ctx, master.EpisodeID, masterPath, workDir, userID); err != nil {
			log.Printf("[ERROR] Transcription for episode %d failed: %v", master.EpisodeID, err)
		}
	}

	if err := o.repo.MarkProcessed(ctx, master.ID); err != nil {
		return apperrors.DatabaseError("marking master processed", err)
	}

	log.Printf("[INFO] Episode %d processed (bitrate %d kbps, duration %ds)",
		master.EpisodeID, meta.BitrateKbps, durationSeconds)

	return nil
}

// fetchMaster streams the master object into the workspace.
func (o *Orchestrator) fetchMaster(ctx context.Context, key, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "creating local master file")
	}
	defer f.Close()

	if err := o.store.Download(ctx, key, f); err != nil {
		return apperrors.ExternalError("storage", fmt.Errorf("downloading master %s: %w", key, err))
	}
	return nil
}

// replaceObject deletes any prior object at key, then uploads the local
// file. Keys are stable across runs, so this keeps re-runs from leaving
// orphaned blobs.
func (o *Orchestrator) replaceObject(ctx context.Context, key, localPath string) error {
	if err := o.store.Delete(ctx, key); err != nil {
		return apperrors.ExternalError("storage", fmt.Errorf("deleting %s: %w", key, err))
	}

	f, err := os.Open(localPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "opening local file for upload")
	}
	defer f.Close()

	if err := o.store.Upload(ctx, key, f); err != nil {
		return apperrors.ExternalError("storage", fmt.Errorf("uploading %s: %w", key, err))
	}
	return nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func masterExt(storageKey string) string {
	ext := filepath.Ext(storageKey)
	if ext == "" {
		return ".mp3"
	}
	return ext
}
