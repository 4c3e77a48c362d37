package transcripts

import (
	"context"
	"strings"
)

const leadSummarySentences = 3

// LeadSummarizer produces an extractive summary from the opening
// sentences of the transcript. It needs no external service and is the
// default when no model-backed summarizer is configured.
type LeadSummarizer struct{}

// Summarize returns the first few sentences of text.
func (LeadSummarizer) Summarize(ctx context.Context, text string) (string, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "lead", nil
	}

	var b strings.Builder
	sentences := 0
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences++
			if sentences >= leadSummarySentences {
				break
			}
		}
	}

	return strings.TrimSpace(b.String()), "lead", nil
}
