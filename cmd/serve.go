package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/castworks/processor-api/api"
	"github.com/castworks/processor-api/api/types"
	"github.com/castworks/processor-api/internal/database"
	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/internal/services/billing"
	"github.com/castworks/processor-api/internal/services/cache"
	"github.com/castworks/processor-api/internal/services/cdncookies"
	"github.com/castworks/processor-api/internal/services/jobs"
	"github.com/castworks/processor-api/internal/services/pipeline"
	"github.com/castworks/processor-api/internal/services/transcripts"
	"github.com/castworks/processor-api/internal/services/workers"
	"github.com/castworks/processor-api/internal/storage"
	"github.com/castworks/processor-api/pkg/config"
	"github.com/castworks/processor-api/pkg/ffmpeg"
)

var (
	serverHost string
	serverPort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and processing workers",
	Long: `Start the Processor API server with the configured settings.

The server exposes ingest, playback, and transcript endpoints while a
background worker pool drains the processing queue and a rotator keeps
CDN signed cookies fresh for every packaged episode.

Example:
  processor-api serve
  processor-api serve --port 9090
  processor-api serve --host 0.0.0.0 --port 8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serverHost == "" {
		serverHost = cfg.Server.Host
	}
	if serverPort == 0 {
		serverPort = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	store, err := buildObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initializing object store: %w", err)
	}

	transcoder := ffmpeg.New(cfg.Processing.FFmpegPath, cfg.Processing.FFprobePath, cfg.Processing.FFmpegTimeout)
	if err := transcoder.ValidateBinaries(); err != nil {
		return fmt.Errorf("validating ffmpeg binaries: %w", err)
	}

	audioRepo := audio.NewRepository(db.DB)
	jobService := jobs.NewService(jobs.NewRepository(db.DB), cfg.Processing.RetryDelay)
	transcriptRepo := transcripts.NewRepository(db.DB)

	transcriber, err := buildTranscriber(ctx, db, store, transcoder, transcriptRepo, cfg.Transcription)
	if err != nil {
		return fmt.Errorf("initializing transcription: %w", err)
	}

	orchestrator := pipeline.New(audioRepo, store, transcoder, transcriber, cfg.Processing, cfg.Transcription.Enabled)

	pool := workers.NewWorkerPool(jobService, cfg.Processing.Workers, cfg.Processing.PollInterval)
	pool.RegisterProcessor(workers.NewAudioProcessor(orchestrator))
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("starting worker pool: %w", err)
	}
	defer pool.Stop()

	rotator, cookieStore, err := buildRotator(audioRepo, cfg.CDN)
	if err != nil {
		return fmt.Errorf("initializing cookie rotator: %w", err)
	}
	if rotator != nil {
		rotator.Start(ctx)
		defer rotator.Stop()
		defer cookieStore.Stop()
	}

	server := api.NewServer(fmt.Sprintf("%s:%d", serverHost, serverPort))
	server.SetDependencies(&types.Dependencies{
		DB:          db,
		Jobs:        jobService,
		AudioRepo:   audioRepo,
		Transcripts: transcriptRepo,
		Rotator:     rotator,
	})
	if err := server.Initialize(); err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server error: %w", err)
		}
	}()

	log.Printf("Server is ready to handle requests at %s:%d", serverHost, serverPort)

	select {
	case <-stop:
		log.Println("Shutting down server...")
	case err := <-serverErr:
		log.Printf("%v", err)
		log.Println("Shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server gracefully stopped")
	return nil
}

// buildObjectStore selects the storage backend from config.
func buildObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Store(ctx, cfg.Bucket, cfg.Region)
	case "local":
		return storage.NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// buildTranscriber wires the speech providers and billing. Returns nil when
// transcription is disabled; the pipeline treats that as skip.
func buildTranscriber(ctx context.Context, db *database.DB, store storage.ObjectStore, transcoder *ffmpeg.FFmpeg, repo transcripts.Repository, cfg config.TranscriptionConfig) (pipeline.Transcriber, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	providers := map[string]transcripts.Provider{}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = transcripts.NewOpenAIProvider(cfg)
	}
	if cfg.GoogleBucket != "" {
		google, err := transcripts.NewGoogleProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing google provider: %w", err)
		}
		providers["google"] = google
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("transcription enabled but no provider configured")
	}

	billingSvc := billing.New(db.DB, cfg.CostPerMinute, cfg.MonthlyQuotaSecs)

	var summarizer transcripts.Summarizer
	if cfg.Summary {
		summarizer = transcripts.LeadSummarizer{}
	}

	return transcripts.NewService(transcoder, providers, repo, store, billingSvc, summarizer, cfg), nil
}

// buildRotator wires the CDN cookie rotator. Returns nil rotator when no
// signing key pair is configured.
func buildRotator(repo audio.Repository, cfg config.CDNConfig) (*cdncookies.Rotator, *cache.MemoryStore, error) {
	if cfg.KeyPairID == "" {
		log.Println("CDN signing not configured, playback cookies disabled")
		return nil, nil, nil
	}

	signer, err := cdncookies.NewCloudFrontSigner(cfg.KeyPairID, cfg.PrivateKeyPath, cfg.Domain)
	if err != nil {
		return nil, nil, err
	}

	cookieStore := cache.NewMemoryStore()
	return cdncookies.NewRotator(repo, signer, cookieStore, cfg), cookieStore, nil
}
