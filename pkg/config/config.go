package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once    sync.Once
	initErr error
)

// Init initializes the configuration system.
// This should be called once at application startup.
func Init() error {
	once.Do(func() {
		setDefaults()

		viper.SetEnvPrefix("CASTWORKS")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		configPath := filepath.Clean("./config/settings.yaml")
		viper.SetConfigFile(configPath)

		if err := viper.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults and env vars apply
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
		}

		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
		}
	})

	return initErr
}

// Load returns the current configuration as an immutable struct.
// Init() must be called before using this.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	if viper.GetInt("processing.workers") <= 0 {
		viper.Set("processing.workers", 2)
	}

	if viper.GetInt("processing.segment_seconds") <= 0 {
		viper.Set("processing.segment_seconds", 10)
	}

	profile := viper.GetString("processing.package_profile")
	tiers := viper.GetStringMap("processing.tiers")
	if _, ok := tiers[profile]; !ok {
		return fmt.Errorf("package profile %q is not a configured tier", profile)
	}

	if viper.GetDuration("cdn.refresh_margin") >= viper.GetDuration("cdn.cookie_ttl") {
		return fmt.Errorf("cdn.refresh_margin must be smaller than cdn.cookie_ttl")
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "./data/processor.db")
	viper.SetDefault("database.verbose", false)

	// Processing defaults
	viper.SetDefault("processing.workers", 2)
	viper.SetDefault("processing.poll_interval", 5*time.Second)
	viper.SetDefault("processing.retry_attempts", 5)
	viper.SetDefault("processing.retry_delay", 10*time.Second)
	viper.SetDefault("processing.ffmpeg_path", "ffmpeg")
	viper.SetDefault("processing.ffprobe_path", "ffprobe")
	viper.SetDefault("processing.ffmpeg_timeout", 15*time.Minute)
	viper.SetDefault("processing.scratch_dir", os.TempDir())
	viper.SetDefault("processing.tiers", map[string]any{
		"low":    map[string]any{"bitrate_kbps": 64, "sample_rate": 22050, "channels": 2},
		"medium": map[string]any{"bitrate_kbps": 128, "sample_rate": 44100, "channels": 2},
		"high":   map[string]any{"bitrate_kbps": 256, "sample_rate": 44100, "channels": 2},
	})
	viper.SetDefault("processing.package_profile", "medium")
	viper.SetDefault("processing.segment_seconds", 10)
	viper.SetDefault("processing.preview_seconds", 30.0)
	viper.SetDefault("processing.preview_bitrate_kbps", 64)
	viper.SetDefault("processing.preview_sample_rate", 22050)

	// Storage defaults
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.local_path", "./data/objects")

	// Transcription defaults
	viper.SetDefault("transcription.enabled", true)
	viper.SetDefault("transcription.provider", "openai")
	viper.SetDefault("transcription.sample_rate", 16000)
	viper.SetDefault("transcription.openai_api_url", "https://api.openai.com/v1/audio/transcriptions")
	viper.SetDefault("transcription.openai_model", "whisper-1")
	viper.SetDefault("transcription.openai_timeout", 5*time.Minute)
	viper.SetDefault("transcription.requests_per_minute", 30)
	viper.SetDefault("transcription.google_staging_prefix", "tmp")
	viper.SetDefault("transcription.google_language_code", "en-US")
	viper.SetDefault("transcription.cost_per_minute", map[string]any{
		"openai": 0.006,
		"google": 0.016,
	})
	viper.SetDefault("transcription.monthly_quota_seconds", 36000)
	viper.SetDefault("transcription.summary_max_chars", 20000)
	viper.SetDefault("transcription.chapters", true)
	viper.SetDefault("transcription.summary", true)

	// CDN defaults
	viper.SetDefault("cdn.cookie_ttl", 15*time.Minute)
	viper.SetDefault("cdn.refresh_margin", time.Minute)
	viper.SetDefault("cdn.rotate_interval", 5*time.Minute)
}
