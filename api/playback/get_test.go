package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castworks/processor-api/api/types"
	"github.com/castworks/processor-api/internal/database"
	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/internal/services/cache"
	"github.com/castworks/processor-api/internal/services/cdncookies"
	"github.com/castworks/processor-api/pkg/config"
)

type stubSigner struct {
	mints int
	fail  bool
}

func (s *stubSigner) Sign(prefix string, expires time.Time) (map[string]string, error) {
	s.mints++
	if s.fail {
		return nil, fmt.Errorf("signing %s: key unavailable", prefix)
	}
	return map[string]string{
		"CloudFront-Policy":      "policy-" + prefix,
		"CloudFront-Signature":   "sig",
		"CloudFront-Key-Pair-Id": "KTEST",
	}, nil
}

func setupRouter(t *testing.T, signer cdncookies.Signer) (*gin.Engine, audio.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	repo := audio.NewRepository(db.DB)
	store := cache.NewMemoryStore()
	t.Cleanup(store.Stop)

	rotator := cdncookies.NewRotator(repo, signer, store, config.CDNConfig{
		Domain:        "cdn.example.com",
		CookieTTL:     15 * time.Minute,
		RefreshMargin: time.Minute,
	})

	deps := &types.Dependencies{AudioRepo: repo, Rotator: rotator}

	engine := gin.New()
	group := engine.Group("/api/v1/playback")
	RegisterRoutes(group, deps)
	return engine, repo
}

func seedPackage(t *testing.T, repo audio.Repository, episodeID uint) {
	t.Helper()
	prefix := fmt.Sprintf("episodes/package/%d/medium", episodeID)
	_, err := repo.UpsertRendition(context.Background(), episodeID, models.KindPackage, audio.RenditionFields{
		StorageKey: prefix + "/index.m3u8",
		Prefix:     prefix,
		Codec:      "aac",
	})
	require.NoError(t, err)
}

func TestCookies_ReturnsSignedCookiesAndManifest(t *testing.T) {
	signer := &stubSigner{}
	engine, repo := setupRouter(t, signer)
	seedPackage(t, repo, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/playback/42/cookies", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Manifest string            `json:"manifest"`
		Cookies  map[string]string `json:"cookies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "episodes/package/42/medium/index.m3u8", resp.Manifest)
	assert.Equal(t, "policy-episodes/package/42/medium", resp.Cookies["CloudFront-Policy"])

	names := make(map[string]bool)
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
	}
	assert.True(t, names["CloudFront-Policy"])
	assert.True(t, names["CloudFront-Signature"])
	assert.True(t, names["CloudFront-Key-Pair-Id"])
}

func TestCookies_SecondRequestServedFromCache(t *testing.T) {
	signer := &stubSigner{}
	engine, repo := setupRouter(t, signer)
	seedPackage(t, repo, 7)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/playback/7/cookies", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, signer.mints)
}

func TestCookies_NoPackage(t *testing.T) {
	engine, _ := setupRouter(t, &stubSigner{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/playback/99/cookies", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCookies_SignerFailure(t *testing.T) {
	engine, repo := setupRouter(t, &stubSigner{fail: true})
	seedPackage(t, repo, 3)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/playback/3/cookies", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCookies_InvalidEpisodeID(t *testing.T) {
	engine, _ := setupRouter(t, &stubSigner{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/playback/nope/cookies", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
