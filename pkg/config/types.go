package config

import "time"

// Config represents the complete application configuration. It is built once
// at startup and passed into components at construction; nothing reads viper
// at request time.
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	CDN           CDNConfig           `mapstructure:"cdn"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Verbose bool   `mapstructure:"verbose"`
}

// TierConfig is one entry of the variant quality ladder
type TierConfig struct {
	BitrateKbps int `mapstructure:"bitrate_kbps"`
	SampleRate  int `mapstructure:"sample_rate"`
	Channels    int `mapstructure:"channels"`
}

// ProcessingConfig holds pipeline and transcoding settings
type ProcessingConfig struct {
	Workers        int                   `mapstructure:"workers"`
	PollInterval   time.Duration         `mapstructure:"poll_interval"`
	RetryAttempts  int                   `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration         `mapstructure:"retry_delay"`
	FFmpegPath     string                `mapstructure:"ffmpeg_path"`
	FFprobePath    string                `mapstructure:"ffprobe_path"`
	FFmpegTimeout  time.Duration         `mapstructure:"ffmpeg_timeout"`
	ScratchDir     string                `mapstructure:"scratch_dir"`
	Tiers          map[string]TierConfig `mapstructure:"tiers"`
	PackageProfile string                `mapstructure:"package_profile"`
	SegmentSeconds int                   `mapstructure:"segment_seconds"`
	PreviewSeconds float64               `mapstructure:"preview_seconds"`
	PreviewBitrate int                   `mapstructure:"preview_bitrate_kbps"`
	PreviewRate    int                   `mapstructure:"preview_sample_rate"`
}

// StorageConfig holds object store settings
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // "s3" or "local"
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	LocalPath string `mapstructure:"local_path"`
}

// TranscriptionConfig holds speech-to-text settings
type TranscriptionConfig struct {
	Enabled          bool               `mapstructure:"enabled"`
	Provider         string             `mapstructure:"provider"`
	SampleRate       int                `mapstructure:"sample_rate"`
	OpenAIAPIURL     string             `mapstructure:"openai_api_url"`
	OpenAIAPIKey     string             `mapstructure:"openai_api_key"`
	OpenAIModel      string             `mapstructure:"openai_model"`
	OpenAITimeout    time.Duration      `mapstructure:"openai_timeout"`
	RequestsPerMin   int                `mapstructure:"requests_per_minute"`
	GoogleBucket     string             `mapstructure:"google_staging_bucket"`
	GooglePrefix     string             `mapstructure:"google_staging_prefix"`
	GoogleLanguage   string             `mapstructure:"google_language_code"`
	CostPerMinute    map[string]float64 `mapstructure:"cost_per_minute"`
	MonthlyQuotaSecs int                `mapstructure:"monthly_quota_seconds"`
	SummaryMaxChars  int                `mapstructure:"summary_max_chars"`
	Chapters         bool               `mapstructure:"chapters"`
	Summary          bool               `mapstructure:"summary"`
}

// CDNConfig holds signed-cookie settings for package playback
type CDNConfig struct {
	Domain         string        `mapstructure:"domain"`
	KeyPairID      string        `mapstructure:"key_pair_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	CookieTTL      time.Duration `mapstructure:"cookie_ttl"`
	RefreshMargin  time.Duration `mapstructure:"refresh_margin"`
	RotateInterval time.Duration `mapstructure:"rotate_interval"`
}
