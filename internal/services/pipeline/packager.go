package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/audio"
	apperrors "github.com/castworks/processor-api/pkg/errors"
	"github.com/castworks/processor-api/pkg/ffmpeg"
)

const manifestName = "index.m3u8"

// runPackage produces the segmented streaming package for the configured
// profile and uploads every produced file under a deterministic prefix.
// A package whose manifest cannot be located is useless and fails the
// stage with an integrity error rather than uploading orphan segments.
func (o *Orchestrator) runPackage(ctx context.Context, ws *workspace, episodeID uint, masterPath string, meta *ffmpeg.AudioMetadata) error {
	profile := o.cfg.PackageProfile
	tierCfg, ok := o.cfg.Tiers[profile]
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeConfigInvalid, "package profile %s not configured", profile)
	}

	outDir, err := ws.subdir("package")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "creating package dir")
	}

	preset := ffmpeg.VariantPreset{
		BitrateKbps: tierCfg.BitrateKbps,
		SampleRate:  tierCfg.SampleRate,
		Channels:    tierCfg.Channels,
	}
	if err := o.transcoder.SegmentHLS(ctx, masterPath, outDir, preset, o.cfg.SegmentSeconds); err != nil {
		return apperrors.ExternalError("ffmpeg", fmt.Errorf("segmenting package: %w", err))
	}

	manifestRel, files, err := collectPackageFiles(outDir)
	if err != nil {
		return err
	}
	if manifestRel == "" {
		return apperrors.IntegrityError(fmt.Sprintf("no manifest produced for episode %d package", episodeID))
	}

	prefix := fmt.Sprintf("episodes/package/%d/%s", episodeID, profile)
	var manifestKey string
	for _, rel := range files {
		key := prefix + "/" + filepath.ToSlash(rel)
		if err := o.replaceObject(ctx, key, filepath.Join(outDir, rel)); err != nil {
			return err
		}
		if rel == manifestRel {
			manifestKey = key
		}
	}

	_, err = o.repo.UpsertRendition(ctx, episodeID, models.KindPackage, audio.RenditionFields{
		Name:        fmt.Sprintf("%s package", profile),
		Codec:       "aac",
		SampleRate:  tierCfg.SampleRate,
		BitrateKbps: tierCfg.BitrateKbps,
		Duration:    int(meta.Duration),
		StorageKey:  manifestKey,
		Prefix:      prefix,
	})
	if err != nil {
		return apperrors.DatabaseError("upserting package rendition", err)
	}

	return nil
}

// collectPackageFiles walks the package output directory and returns the
// manifest's relative path plus every produced file. When the expected
// manifest name is absent, any playlist-extension file is accepted as a
// fallback against alternate packager output.
func collectPackageFiles(outDir string) (string, []string, error) {
	var manifestRel string
	var files []string

	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)

		if rel == manifestName {
			manifestRel = rel
		} else if manifestRel == "" && strings.HasSuffix(rel, ".m3u8") {
			manifestRel = rel
		}
		return nil
	})
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "walking package output")
	}

	return manifestRel, files, nil
}
