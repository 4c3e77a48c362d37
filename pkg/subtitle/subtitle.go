// Package subtitle formats time-aligned transcript segments into SRT and
// WebVTT subtitle documents.
package subtitle

import (
	"fmt"
	"strings"
)

// Segment is a single recognized word or phrase with its time offsets.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// Line is a grouped subtitle cue covering one or more segments.
type Line struct {
	Start float64
	End   float64
	Text  string
}

// GroupOptions controls how segments are folded into cue lines.
type GroupOptions struct {
	MaxWords    int
	MaxDuration float64
}

// DefaultGroupOptions returns the grouping limits used for exported subtitles.
func DefaultGroupOptions() GroupOptions {
	return GroupOptions{
		MaxWords:    10,
		MaxDuration: 5.0,
	}
}

// GroupSegments folds segments into cue lines, closing a line once it reaches
// MaxWords words or spans MaxDuration seconds, whichever comes first. The next
// line starts at the closing segment's end time.
func GroupSegments(segments []Segment, opts GroupOptions) []Line {
	var lines []Line
	if len(segments) == 0 {
		return lines
	}

	var words []string
	start := segments[0].Start
	for _, seg := range segments {
		words = append(words, seg.Text)
		if len(words) >= opts.MaxWords || seg.End-start >= opts.MaxDuration {
			lines = append(lines, Line{Start: start, End: seg.End, Text: strings.Join(words, " ")})
			words = nil
			start = seg.End
		}
	}
	if len(words) > 0 {
		lines = append(lines, Line{Start: start, End: segments[len(segments)-1].End, Text: strings.Join(words, " ")})
	}
	return lines
}

// ExportSRT renders segments as a SubRip document: numbered blocks with
// comma-separated millisecond timestamps.
func ExportSRT(segments []Segment) string {
	lines := GroupSegments(segments, DefaultGroupOptions())
	var parts []string
	for i, l := range lines {
		parts = append(parts,
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s --> %s", formatTimestamp(l.Start, ","), formatTimestamp(l.End, ",")),
			l.Text,
			"")
	}
	return strings.Join(parts, "\n")
}

// ExportVTT renders segments as a WebVTT document: a header token followed by
// unnumbered cues with dot-separated millisecond timestamps.
func ExportVTT(segments []Segment) string {
	lines := GroupSegments(segments, DefaultGroupOptions())
	parts := []string{"WEBVTT", ""}
	for _, l := range lines {
		parts = append(parts,
			fmt.Sprintf("%s --> %s", formatTimestamp(l.Start, "."), formatTimestamp(l.End, ".")),
			l.Text,
			"")
	}
	return strings.Join(parts, "\n")
}

// formatTimestamp renders seconds as HH:MM:SS<sep>mmm.
func formatTimestamp(seconds float64, sep string) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	millis := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis)
}
