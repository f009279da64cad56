// Package chunk splits combined transcript text into retrieval-sized chunks
// under one of four segmentation policies and reconstructs approximate
// timestamps for each chunk.
package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Chunk is a contiguous span of transcript text sized for retrieval.
// CharCount always equals len(Text); ContentHash is computed at creation
// and never mutated.
type Chunk struct {
	Text        string  `json:"text"`
	Start       float64 `json:"start_timestamp"`
	End         float64 `json:"end_timestamp"`
	Index       int     `json:"chunk_index"`
	VideoID     string  `json:"video_id"`
	WordCount   int     `json:"word_count"`
	CharCount   int     `json:"character_count"`
	ContentHash string  `json:"content_hash"`

	Strategy Strategy `json:"-"`
}

// HashContent fingerprints chunk text for dedup: internal whitespace is
// collapsed and the result lowercased before hashing, so re-chunking runs
// that reproduce identical content under shifted indexes still match.
func HashContent(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func newChunk(text, videoID string, index int, est timeEstimator, strategy Strategy) Chunk {
	start, end := est.span(index, len(text))
	return Chunk{
		Text:        text,
		Start:       start,
		End:         end,
		Index:       index,
		VideoID:     videoID,
		WordCount:   len(strings.Fields(text)),
		CharCount:   len(text),
		ContentHash: HashContent(text),
		Strategy:    strategy,
	}
}

// Stats summarizes one chunking run.
type Stats struct {
	TotalChunks  int
	TotalWords   int
	TotalChars   int
	MinChunkSize int
	MaxChunkSize int
	AvgChunkSize float64
}

// Summarize computes aggregate statistics over chunks.
func Summarize(chunks []Chunk) Stats {
	if len(chunks) == 0 {
		return Stats{}
	}
	s := Stats{TotalChunks: len(chunks), MinChunkSize: chunks[0].CharCount}
	for _, c := range chunks {
		s.TotalWords += c.WordCount
		s.TotalChars += c.CharCount
		if c.CharCount < s.MinChunkSize {
			s.MinChunkSize = c.CharCount
		}
		if c.CharCount > s.MaxChunkSize {
			s.MaxChunkSize = c.CharCount
		}
	}
	s.AvgChunkSize = float64(s.TotalChars) / float64(len(chunks))
	return s
}
