package transcripts

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/billing"
	"github.com/castworks/processor-api/internal/storage"
	"github.com/castworks/processor-api/pkg/config"
	apperrors "github.com/castworks/processor-api/pkg/errors"
	"github.com/castworks/processor-api/pkg/ffmpeg"
	"github.com/castworks/processor-api/pkg/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeConverter struct {
	duration float64
}

func (f *fakeConverter) ConvertForRecognition(ctx context.Context, input, output string, sampleRate int) error {
	return os.WriteFile(output, []byte("wav"), 0o644)
}

func (f *fakeConverter) GetMetadata(ctx context.Context, filePath string) (*ffmpeg.AudioMetadata, error) {
	return &ffmpeg.AudioMetadata{Duration: f.duration, SampleRate: 16000, Channels: 1}, nil
}

type fakeProvider struct {
	name   string
	result *RecognitionResult
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Recognize(ctx context.Context, wavPath string) (*RecognitionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// failingStore wraps a real store and fails uploads to one key.
type failingStore struct {
	storage.ObjectStore
	failKey string
}

func (f *failingStore) Upload(ctx context.Context, key string, body io.Reader) error {
	if key == f.failKey {
		return errors.New("upload rejected")
	}
	return f.ObjectStore.Upload(ctx, key, body)
}

type failingRepo struct {
	Repository
}

func (f *failingRepo) SaveWithBilling(ctx context.Context, t *models.Transcription, r *models.BillingRecord) error {
	return errors.New("database unavailable")
}

type fixture struct {
	db       *gorm.DB
	repo     Repository
	store    storage.ObjectStore
	provider *fakeProvider
	cfg      config.TranscriptionConfig
	workDir  string
}

func defaultResult() *RecognitionResult {
	return &RecognitionResult{
		Text:     "Welcome to the show. Today we discuss audio pipelines.",
		Language: "en",
		Segments: []subtitle.Segment{
			{Text: "Welcome to the show.", Start: 0, End: 2.5},
			{Text: "Today we discuss audio pipelines.", Start: 2.5, End: 6.0},
		},
	}
}

func setup(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Transcription{}, &models.BillingRecord{},
		&models.Chapter{}, &models.Summary{},
	))

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	return &fixture{
		db:       db,
		repo:     NewRepository(db),
		store:    store,
		provider: &fakeProvider{name: "openai", result: defaultResult()},
		cfg: config.TranscriptionConfig{
			Enabled:         true,
			Provider:        "openai",
			SampleRate:      16000,
			CostPerMinute:   map[string]float64{"openai": 0.006},
			SummaryMaxChars: 20000,
			Chapters:        true,
			Summary:         true,
		},
		workDir: t.TempDir(),
	}
}

func (fx *fixture) service(t *testing.T, quotaSeconds int) *Service {
	t.Helper()
	billingSvc := billing.New(fx.db, fx.cfg.CostPerMinute, quotaSeconds)
	return NewService(
		&fakeConverter{duration: 90},
		map[string]Provider{fx.provider.name: fx.provider},
		fx.repo, fx.store, billingSvc, LeadSummarizer{}, fx.cfg,
	)
}

func TestTranscribe_Success(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	svc := fx.service(t, 0)
	require.NoError(t, svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 0))

	transcription, err := fx.repo.GetByEpisodeID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, transcription)
	assert.Equal(t, "en", transcription.Language)
	assert.Equal(t, 90, transcription.AudioSeconds)
	assert.Equal(t, "openai", transcription.Provider)
	assert.InDelta(t, 0.009, transcription.CostUSD, 1e-9)
	assert.Equal(t, "transcripts/7/7.srt", transcription.SRTKey)
	assert.Equal(t, "transcripts/7/7.vtt", transcription.VTTKey)
	assert.Len(t, transcription.Segments, 2)

	var billingCount int64
	require.NoError(t, fx.db.Model(&models.BillingRecord{}).Count(&billingCount).Error)
	assert.Equal(t, int64(1), billingCount)

	for _, key := range []string{"transcripts/7/7.srt", "transcripts/7/7.vtt"} {
		exists, err := fx.store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, key)
	}

	var summary models.Summary
	require.NoError(t, fx.db.Where("episode_id = ?", 7).First(&summary).Error)
	assert.NotEmpty(t, summary.Text)
	assert.Equal(t, "lead", summary.Model)
}

func TestTranscribe_QuotaRejection(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// Existing usage leaves no room for another 90 seconds.
	require.NoError(t, fx.db.Create(&models.BillingRecord{
		EpisodeID: 1, Provider: "openai", AudioSeconds: 3550,
	}).Error)

	svc := fx.service(t, 3600)
	err := svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 12)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeQuotaExceeded))

	// No partial artifacts of any kind.
	assert.Zero(t, fx.provider.calls)

	transcription, err := fx.repo.GetByEpisodeID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, transcription)

	var billingCount int64
	require.NoError(t, fx.db.Model(&models.BillingRecord{}).Where("episode_id = ?", 7).Count(&billingCount).Error)
	assert.Zero(t, billingCount)

	for _, key := range []string{"transcripts/7/7.srt", "transcripts/7/7.vtt"} {
		exists, err := fx.store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
}

func TestTranscribe_NoChargingUserSkipsQuota(t *testing.T) {
	fx := setup(t)

	require.NoError(t, fx.db.Create(&models.BillingRecord{
		EpisodeID: 1, Provider: "openai", AudioSeconds: 100000,
	}).Error)

	svc := fx.service(t, 3600)
	assert.NoError(t, svc.Transcribe(context.Background(), 7, "master.mp3", fx.workDir, 0))
}

func TestTranscribe_UnknownProvider(t *testing.T) {
	fx := setup(t)
	fx.cfg.Provider = "nonexistent"

	svc := fx.service(t, 0)
	err := svc.Transcribe(context.Background(), 7, "master.mp3", fx.workDir, 0)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeUnknownProvider))
}

func TestTranscribe_ProviderFailure(t *testing.T) {
	fx := setup(t)
	fx.provider.err = errors.New("service unavailable")

	svc := fx.service(t, 0)
	err := svc.Transcribe(context.Background(), 7, "master.mp3", fx.workDir, 0)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeTransientExternal))

	transcription, getErr := fx.repo.GetByEpisodeID(context.Background(), 7)
	require.NoError(t, getErr)
	assert.Nil(t, transcription)
}

func TestTranscribe_SecondSubtitleUploadFailureLeavesNoKeys(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	inner := fx.store
	fx.store = &failingStore{ObjectStore: inner, failKey: "transcripts/7/7.vtt"}

	svc := fx.service(t, 0)
	err := svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 0)
	require.Error(t, err)

	for _, key := range []string{"transcripts/7/7.srt", "transcripts/7/7.vtt"} {
		exists, err := inner.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
}

func TestTranscribe_PersistFailureRollsBackSubtitles(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	fx.repo = &failingRepo{Repository: fx.repo}

	svc := fx.service(t, 0)
	err := svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 0)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeDatabase))

	for _, key := range []string{"transcripts/7/7.srt", "transcripts/7/7.vtt"} {
		exists, err := fx.store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
}

func TestTranscribe_ReplacesChaptersOnRerun(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	svc := fx.service(t, 0)
	require.NoError(t, svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 0))
	require.NoError(t, svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 0))

	var chapterCount int64
	require.NoError(t, fx.db.Model(&models.Chapter{}).Where("episode_id = ?", 7).Count(&chapterCount).Error)
	assert.Equal(t, int64(1), chapterCount)

	var transcriptionCount int64
	require.NoError(t, fx.db.Model(&models.Transcription{}).Where("episode_id = ?", 7).Count(&transcriptionCount).Error)
	assert.Equal(t, int64(1), transcriptionCount)

	// Billing stays append-only: one record per completed run.
	var billingCount int64
	require.NoError(t, fx.db.Model(&models.BillingRecord{}).Where("episode_id = ?", 7).Count(&billingCount).Error)
	assert.Equal(t, int64(2), billingCount)
}

func TestDeriveChapters(t *testing.T) {
	segments := []subtitle.Segment{
		{Text: "Intro music and welcome", Start: 0, End: 30},
		{Text: "first topic begins here", Start: 31, End: 70},
		// 5s silence after a 75s chapter: boundary
		{Text: "second topic after a pause", Start: 75, End: 140},
	}

	chapters := deriveChapters(segments)
	require.Len(t, chapters, 2)
	assert.Equal(t, 0.0, chapters[0].StartTime)
	assert.Equal(t, 75.0, chapters[1].StartTime)
	assert.Equal(t, "Intro music and welcome first topic begins here", chapters[0].Title)
	assert.Equal(t, "second topic after a pause", chapters[1].Title)
}

func TestDeriveChapters_ShortGapsDoNotSplit(t *testing.T) {
	segments := []subtitle.Segment{
		{Text: "a", Start: 0, End: 61},
		{Text: "b", Start: 62, End: 120}, // 1s gap, below threshold
	}

	chapters := deriveChapters(segments)
	require.Len(t, chapters, 1)
}

func TestDeriveChapters_Empty(t *testing.T) {
	assert.Nil(t, deriveChapters(nil))
}

func TestLeadSummarizer(t *testing.T) {
	summary, model, err := LeadSummarizer{}.Summarize(context.Background(),
		"First. Second! Third? Fourth sentence never appears.")
	require.NoError(t, err)
	assert.Equal(t, "lead", model)
	assert.Equal(t, "First. Second! Third?", summary)
}

func TestRepository_SaveWithBillingAtomicity(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	transcription := &models.Transcription{EpisodeID: 7, Text: "hello", Provider: "openai", AudioSeconds: 90}
	record := &models.BillingRecord{EpisodeID: 7, Provider: "openai", AudioSeconds: 90}
	require.NoError(t, fx.repo.SaveWithBilling(ctx, transcription, record))

	// Replacing the transcription keeps one row and appends a second
	// ledger entry.
	replacement := &models.Transcription{EpisodeID: 7, Text: "hello again", Provider: "openai", AudioSeconds: 90}
	require.NoError(t, fx.repo.SaveWithBilling(ctx, replacement,
		&models.BillingRecord{EpisodeID: 7, Provider: "openai", AudioSeconds: 90}))

	stored, err := fx.repo.GetByEpisodeID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "hello again", stored.Text)

	var transcriptionCount, billingCount int64
	require.NoError(t, fx.db.Model(&models.Transcription{}).Count(&transcriptionCount).Error)
	require.NoError(t, fx.db.Model(&models.BillingRecord{}).Count(&billingCount).Error)
	assert.Equal(t, int64(1), transcriptionCount)
	assert.Equal(t, int64(2), billingCount)
}

func TestChapterTitleFallback(t *testing.T) {
	assert.Equal(t, "Chapter", chapterTitle(nil))
	words := []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	assert.Equal(t, "one two three four five six seven eight", chapterTitle(words))
}

func TestTranscribe_SegmentsRoundTrip(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	svc := fx.service(t, 0)
	require.NoError(t, svc.Transcribe(ctx, 7, "master.mp3", fx.workDir, 0))

	stored, err := fx.repo.GetByEpisodeID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stored.Segments, 2)
	assert.Equal(t, "Welcome to the show.", stored.Segments[0].Text)
	assert.Equal(t, 2.5, stored.Segments[0].End)
}
