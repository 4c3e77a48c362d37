// Package metrics exposes the pipeline's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TranscriptionsTotal counts completed transcription runs per provider.
	TranscriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriptions_total",
		Help: "Completed transcription runs",
	}, []string{"provider"})

	// TranscriptionsFailed counts failed transcription runs by provider and
	// failure reason class.
	TranscriptionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriptions_failed_total",
		Help: "Failed transcription runs",
	}, []string{"provider", "reason"})

	// TranscriptionDuration observes wall-clock transcription latency.
	TranscriptionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcription_duration_seconds",
		Help:    "Time taken to transcribe an episode",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"provider"})

	// AudioDurationSeconds observes the recognized audio duration of each run.
	AudioDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcription_audio_duration_seconds",
		Help:    "Recognized audio duration per transcription run",
		Buckets: prometheus.ExponentialBuckets(15, 2, 10),
	})

	// PipelineDuration observes end-to-end pipeline latency per outcome.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audio_pipeline_duration_seconds",
		Help:    "Time taken to process a master recording",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"outcome"})
)
