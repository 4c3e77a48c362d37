package ffmpeg

// AudioMetadata represents metadata extracted from an audio file
type AudioMetadata struct {
	Duration    float64 `json:"duration"`     // Duration in seconds
	SampleRate  int     `json:"sample_rate"`  // Sample rate in Hz
	Channels    int     `json:"channels"`     // Number of audio channels
	BitrateKbps int     `json:"bitrate_kbps"` // Bitrate in kilobits per second
	Format      string  `json:"format"`       // Container format (mp3, m4a, etc.)
	Codec       string  `json:"codec"`        // Audio codec
	Size        int64   `json:"size"`         // File size in bytes
	Title       string  `json:"title"`        // Title metadata
	Artist      string  `json:"artist"`       // Artist metadata
}

// VariantPreset describes one output encoding profile
type VariantPreset struct {
	BitrateKbps int `json:"bitrate_kbps"`
	SampleRate  int `json:"sample_rate"`
	Channels    int `json:"channels"`
}
