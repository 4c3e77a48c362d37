package audio

import (
	"context"
	"testing"

	"github.com/castworks/processor-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Audio{})
	require.NoError(t, err)

	return db
}

func createMaster(t *testing.T, repo Repository, episodeID uint) *models.Audio {
	t.Helper()
	master := &models.Audio{
		EpisodeID:  episodeID,
		Name:       "Episode Master",
		StorageKey: "episodes/masters/master.mp3",
	}
	require.NoError(t, repo.CreateMaster(context.Background(), master))
	return master
}

func TestRepository_GetMaster(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	master := createMaster(t, repo, 7)

	got, err := repo.GetMaster(context.Background(), master.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.KindMaster, got.Kind)
	assert.Equal(t, uint(7), got.EpisodeID)
}

func TestRepository_GetMaster_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	got, err := repo.GetMaster(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_GetMaster_IgnoresRenditions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	rendition, err := repo.UpsertRendition(context.Background(), 7, models.KindLow, RenditionFields{StorageKey: "k"})
	require.NoError(t, err)

	got, err := repo.GetMaster(context.Background(), rendition.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_UpdateMasterInfo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	master := createMaster(t, repo, 7)

	err := repo.UpdateMasterInfo(context.Background(), master.ID, "Detected Title", "mp3", 256, 44100, 90)
	require.NoError(t, err)

	got, err := repo.GetMaster(context.Background(), master.ID)
	require.NoError(t, err)
	assert.Equal(t, "Detected Title", got.Name)
	assert.Equal(t, 256, got.BitrateKbps)
	assert.Equal(t, 44100, got.SampleRate)
	assert.Equal(t, 90, got.Duration)
}

func TestRepository_MarkProcessed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	master := createMaster(t, repo, 7)

	require.NoError(t, repo.MarkProcessed(context.Background(), master.ID))

	got, err := repo.GetMaster(context.Background(), master.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
}

func TestRepository_MarkProcessed_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	err := repo.MarkProcessed(context.Background(), 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_UpsertRendition_NoDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first, err := repo.UpsertRendition(ctx, 7, models.KindMedium, RenditionFields{
		Codec:       "mp3",
		BitrateKbps: 128,
		StorageKey:  "episodes/7/variants/medium.mp3",
	})
	require.NoError(t, err)

	second, err := repo.UpsertRendition(ctx, 7, models.KindMedium, RenditionFields{
		Codec:       "mp3",
		BitrateKbps: 128,
		SizeBytes:   2048,
		StorageKey:  "episodes/7/variants/medium.mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2048), second.SizeBytes)

	var count int64
	require.NoError(t, db.Model(&models.Audio{}).
		Where("episode_id = ? AND kind = ?", 7, models.KindMedium).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepository_UpsertRendition_RejectsMasterKind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	_, err := repo.UpsertRendition(context.Background(), 7, models.KindMaster, RenditionFields{})
	assert.Error(t, err)
}

func TestRepository_ListPackages(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertRendition(ctx, 1, models.KindPackage, RenditionFields{
		StorageKey: "episodes/package/1/medium/index.m3u8",
		Prefix:     "episodes/package/1/medium",
	})
	require.NoError(t, err)
	_, err = repo.UpsertRendition(ctx, 2, models.KindPackage, RenditionFields{
		StorageKey: "episodes/package/2/medium/index.m3u8",
		Prefix:     "episodes/package/2/medium",
	})
	require.NoError(t, err)
	_, err = repo.UpsertRendition(ctx, 1, models.KindLow, RenditionFields{StorageKey: "x"})
	require.NoError(t, err)

	packages, err := repo.ListPackages(ctx)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "episodes/package/1/medium", packages[0].Prefix)
	assert.Equal(t, "episodes/package/2/medium", packages[1].Prefix)
}
