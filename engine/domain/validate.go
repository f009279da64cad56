// Package domain defines sentinel errors and validation for the transcript
// ingestion pipeline. It acts as the validation gate at pipeline entry points.
package domain

import (
	"fmt"
	"strings"

	"github.com/TranscriptaAI/transcripta/engine/transcript"
)

// ValidateTranscript checks a transcript before it enters the pipeline:
// stable video id, time-ordered segments, start < end per segment.
// Segments with empty text are tolerated here; the combiner drops them.
func ValidateTranscript(t transcript.Transcript) error {
	if strings.TrimSpace(t.VideoID) == "" {
		return NewValidationError("video_id", "", ErrInvalidTranscript)
	}
	prevEnd := -1.0
	for i, seg := range t.Segments {
		if seg.Start < 0 || seg.End <= seg.Start {
			return NewValidationError(
				fmt.Sprintf("segments[%d]", i),
				fmt.Sprintf("%.3f-%.3f", seg.Start, seg.End),
				ErrInvalidSegment,
			)
		}
		if seg.Start < prevEnd {
			return NewValidationError(
				fmt.Sprintf("segments[%d]", i),
				fmt.Sprintf("start %.3f before previous end %.3f", seg.Start, prevEnd),
				ErrInvalidSegment,
			)
		}
		prevEnd = seg.End
	}
	return nil
}

// ValidateQuery rejects empty search queries.
func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return NewValidationError("query", q, ErrEmptyQuery)
	}
	return nil
}
