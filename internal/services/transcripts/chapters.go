package transcripts

import (
	"strings"

	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/pkg/subtitle"
)

const (
	// chapterGapSeconds is the silence length treated as a topic boundary.
	chapterGapSeconds = 2.5

	// chapterMinSeconds suppresses boundaries that would produce a
	// chapter shorter than this.
	chapterMinSeconds = 60.0

	chapterTitleWords = 8
)

// deriveChapters splits the segment stream into chapters at long pauses.
// Each chapter is titled from its opening words. An empty segment list
// yields no chapters.
func deriveChapters(segments []subtitle.Segment) []models.Chapter {
	if len(segments) == 0 {
		return nil
	}

	var chapters []models.Chapter
	chapterStart := segments[0].Start
	openingWords := []string{}

	flush := func() {
		chapters = append(chapters, models.Chapter{
			Title:     chapterTitle(openingWords),
			StartTime: chapterStart,
		})
	}

	for i, seg := range segments {
		if i > 0 {
			gap := seg.Start - segments[i-1].End
			if gap >= chapterGapSeconds && seg.Start-chapterStart >= chapterMinSeconds {
				flush()
				chapterStart = seg.Start
				openingWords = openingWords[:0]
			}
		}
		if len(openingWords) < chapterTitleWords {
			openingWords = append(openingWords, strings.Fields(seg.Text)...)
		}
	}
	flush()

	return chapters
}

func chapterTitle(words []string) string {
	if len(words) == 0 {
		return "Chapter"
	}
	if len(words) > chapterTitleWords {
		words = words[:chapterTitleWords]
	}
	return strings.Join(words, " ")
}
