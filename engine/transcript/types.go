// Package transcript defines the timestamped segment model produced by the
// external transcription collaborator, plus helpers to combine and clean
// segment text ahead of chunking.
package transcript

import "time"

// Segment is one timestamped span of transcribed speech. Segments are
// produced externally, immutable, and time-ordered within a transcript.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript is a complete transcription result for one video.
type Transcript struct {
	VideoID   string            `json:"video_id"`
	Title     string            `json:"title,omitempty"`
	Language  string            `json:"language,omitempty"`
	Duration  float64           `json:"duration"`
	Segments  []Segment         `json:"segments"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}
