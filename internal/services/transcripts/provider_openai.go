package transcripts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castworks/processor-api/pkg/config"
	"github.com/castworks/processor-api/pkg/subtitle"
	"golang.org/x/time/rate"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "whisper-1"
	defaultOpenAITimeout = 10 * time.Minute
	openAITranscribePath = "/v1/audio/transcriptions"
)

// openAIResponse mirrors the subset of the verbose_json transcription
// response this provider consumes.
type openAIResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// OpenAIProvider recognizes speech by uploading the waveform directly to
// the transcription endpoint. Requests share a limiter so concurrent
// pipeline jobs stay inside the account's rate allowance.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewOpenAIProvider builds a provider from configuration.
func NewOpenAIProvider(cfg config.TranscriptionConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.OpenAIAPIURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.OpenAITimeout
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), 1)
	}

	return &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  cfg.OpenAIAPIKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Name returns the provider's registry name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Recognize uploads the waveform and returns the normalized result.
func (p *OpenAIProvider) Recognize(ctx context.Context, wavPath string) (*RecognitionResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openai provider: missing api key")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai provider: rate limit wait: %w", err)
	}

	file, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("openai provider: open waveform: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", p.model); err != nil {
		return nil, fmt.Errorf("openai provider: write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("openai provider: write format field: %w", err)
	}
	if err := writer.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return nil, fmt.Errorf("openai provider: write granularity field: %w", err)
	}

	field, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("openai provider: create file field: %w", err)
	}
	if _, err := io.Copy(field, file); err != nil {
		return nil, fmt.Errorf("openai provider: copy waveform: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("openai provider: close multipart writer: %w", err)
	}

	endpoint := p.baseURL + openAITranscribePath
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("openai provider: build request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("openai provider: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai provider: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai provider: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("openai provider: decode response: %w", err)
	}

	result := &RecognitionResult{
		Text:     strings.TrimSpace(parsed.Text),
		Language: parsed.Language,
		Segments: make([]subtitle.Segment, 0, len(parsed.Segments)),
	}
	for _, seg := range parsed.Segments {
		result.Segments = append(result.Segments, subtitle.Segment{
			Text:  strings.TrimSpace(seg.Text),
			Start: seg.Start,
			End:   seg.End,
		})
	}

	return result, nil
}
