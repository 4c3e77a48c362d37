package transcripts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/castworks/processor-api/pkg/config"
	"github.com/castworks/processor-api/pkg/subtitle"
	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
)

const (
	speechEndpoint    = "https://speech.googleapis.com/v1"
	speechScope       = "https://www.googleapis.com/auth/cloud-platform"
	speechPollDelay   = 5 * time.Second
	speechPollBudget  = 30 * time.Minute
	speechAudioFormat = "LINEAR16"
)

// GoogleProvider recognizes speech through the Cloud Speech-to-Text
// long-running API. The waveform is staged in a provider-side bucket
// first because the API only accepts long audio by reference.
type GoogleProvider struct {
	gcsClient  *gcs.Client
	httpClient *http.Client
	bucket     string
	prefix     string
	language   string
	sampleRate int
}

// NewGoogleProvider builds a provider using application default
// credentials for both the staging bucket and the recognition API.
func NewGoogleProvider(ctx context.Context, cfg config.TranscriptionConfig) (*GoogleProvider, error) {
	if cfg.GoogleBucket == "" {
		return nil, fmt.Errorf("google provider: staging bucket not configured")
	}

	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google provider: creating storage client: %w", err)
	}

	httpClient, err := google.DefaultClient(ctx, speechScope)
	if err != nil {
		return nil, fmt.Errorf("google provider: creating speech client: %w", err)
	}

	language := cfg.GoogleLanguage
	if language == "" {
		language = "en-US"
	}

	return &GoogleProvider{
		gcsClient:  gcsClient,
		httpClient: httpClient,
		bucket:     cfg.GoogleBucket,
		prefix:     strings.Trim(cfg.GooglePrefix, "/"),
		language:   language,
		sampleRate: cfg.SampleRate,
	}, nil
}

// Name returns the provider's registry name.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Recognize stages the waveform, runs long-running recognition against
// the staged object, and removes the staging object afterward.
func (p *GoogleProvider) Recognize(ctx context.Context, wavPath string) (*RecognitionResult, error) {
	objectName := fmt.Sprintf("recognition-%s.wav", uuid.NewString())
	if p.prefix != "" {
		objectName = p.prefix + "/" + objectName
	}

	if err := p.stage(ctx, wavPath, objectName); err != nil {
		return nil, err
	}
	defer func() {
		if err := p.gcsClient.Bucket(p.bucket).Object(objectName).Delete(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[WARN] Failed to delete staged waveform gs://%s/%s: %v", p.bucket, objectName, err)
		}
	}()

	opName, err := p.startRecognition(ctx, fmt.Sprintf("gs://%s/%s", p.bucket, objectName))
	if err != nil {
		return nil, err
	}

	return p.awaitRecognition(ctx, opName)
}

func (p *GoogleProvider) stage(ctx context.Context, wavPath, objectName string) error {
	file, err := os.Open(wavPath)
	if err != nil {
		return fmt.Errorf("google provider: open waveform: %w", err)
	}
	defer file.Close()

	w := p.gcsClient.Bucket(p.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "audio/wav"
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("google provider: staging waveform: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("google provider: finalizing staged waveform: %w", err)
	}

	return nil
}

func (p *GoogleProvider) startRecognition(ctx context.Context, gcsURI string) (string, error) {
	reqBody := map[string]interface{}{
		"config": map[string]interface{}{
			"encoding":              speechAudioFormat,
			"sampleRateHertz":       p.sampleRate,
			"languageCode":          p.language,
			"enableWordTimeOffsets": true,
		},
		"audio": map[string]interface{}{"uri": gcsURI},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("google provider: encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		speechEndpoint+"/speech:longrunningrecognize", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("google provider: build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	var op struct {
		Name string `json:"name"`
	}
	if err := p.doJSON(request, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", fmt.Errorf("google provider: operation name missing from response")
	}

	return op.Name, nil
}

type speechOperation struct {
	Done  bool `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Response struct {
		Results []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					StartTime string `json:"startTime"`
					EndTime   string `json:"endTime"`
					Word      string `json:"word"`
				} `json:"words"`
			} `json:"alternatives"`
			LanguageCode string `json:"languageCode"`
		} `json:"results"`
	} `json:"response"`
}

func (p *GoogleProvider) awaitRecognition(ctx context.Context, opName string) (*RecognitionResult, error) {
	deadline := time.Now().Add(speechPollBudget)

	for {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet,
			speechEndpoint+"/operations/"+opName, nil)
		if err != nil {
			return nil, fmt.Errorf("google provider: build poll request: %w", err)
		}

		var op speechOperation
		if err := p.doJSON(request, &op); err != nil {
			return nil, err
		}

		if op.Done {
			if op.Error != nil {
				return nil, fmt.Errorf("google provider: recognition failed: %s", op.Error.Message)
			}
			return p.parseResult(&op)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("google provider: recognition timed out after %s", speechPollBudget)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(speechPollDelay):
		}
	}
}

func (p *GoogleProvider) parseResult(op *speechOperation) (*RecognitionResult, error) {
	result := &RecognitionResult{Language: p.language}

	var parts []string
	for _, r := range op.Response.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		parts = append(parts, strings.TrimSpace(alt.Transcript))

		if r.LanguageCode != "" {
			result.Language = r.LanguageCode
		}

		for _, w := range alt.Words {
			start, err := parseAPITimestamp(w.StartTime)
			if err != nil {
				return nil, fmt.Errorf("google provider: bad word start time %q: %w", w.StartTime, err)
			}
			end, err := parseAPITimestamp(w.EndTime)
			if err != nil {
				return nil, fmt.Errorf("google provider: bad word end time %q: %w", w.EndTime, err)
			}
			result.Segments = append(result.Segments, subtitle.Segment{
				Text:  w.Word,
				Start: start,
				End:   end,
			})
		}
	}

	result.Text = strings.Join(parts, " ")
	return result, nil
}

func (p *GoogleProvider) doJSON(request *http.Request, out interface{}) error {
	resp, err := p.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("google provider: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("google provider: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("google provider: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return json.Unmarshal(payload, out)
}

// parseAPITimestamp parses the API's duration strings, e.g. "1.500s".
func parseAPITimestamp(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}
