package chunk

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/TranscriptaAI/transcripta/engine/transcript"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Chunker applies one segmentation policy to a transcript.
type Chunker struct {
	cfg Config
	log *slog.Logger
}

// New creates a Chunker, rejecting invalid configurations at construction.
func New(cfg Config, log *slog.Logger) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chunker{cfg: cfg, log: log}, nil
}

// NewNamed builds a Chunker from a strategy name using that strategy's
// default sizes.
func NewNamed(name string, log *slog.Logger) (*Chunker, error) {
	s, err := ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return New(DefaultConfig(s), log)
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() Config { return c.cfg }

// ChunkTranscript splits a transcript's segments into chunks under the
// configured policy. An empty segment list yields zero chunks.
func (c *Chunker) ChunkTranscript(videoID string, segments []transcript.Segment) []Chunk {
	if len(segments) == 0 {
		return nil
	}
	est := newTimeEstimator(segments)
	combined := transcript.Combine(segments)

	var chunks []Chunk
	switch c.cfg.Strategy {
	case StrategySemantic:
		chunks = c.semantic(combined, videoID, est)
	case StrategyRecursive:
		chunks = c.recursive(combined, videoID, est)
	case StrategyVideoOptimized:
		chunks = c.videoOptimized(segments, videoID, est)
	case StrategyFixed:
		chunks = c.fixed(combined, videoID, est)
	}

	c.log.Debug("chunked transcript",
		"video_id", videoID,
		"strategy", c.cfg.Strategy.String(),
		"segments", len(segments),
		"chunks", len(chunks),
	)
	return chunks
}

// semantic greedily accumulates sentences until the next one would exceed
// the max size, then closes the chunk and seeds the next one with trailing
// sentences up to the overlap budget. Chunks below the min size are
// discarded without consuming an index.
func (c *Chunker) semantic(text, videoID string, est timeEstimator) []Chunk {
	sentences := splitSentences(text)

	var chunks []Chunk
	var current []string
	curLen := 0
	index := 0

	for _, sentence := range sentences {
		if curLen+len(sentence) > c.cfg.MaxChunkSize && len(current) > 0 {
			chunkText := strings.Join(current, " ")
			if len(chunkText) >= c.cfg.MinChunkSize {
				chunks = append(chunks, newChunk(chunkText, videoID, index, est, c.cfg.Strategy))
				index++
			}
			if c.cfg.Overlap > 0 {
				if ov := overlapWindow(current, c.cfg.Overlap); ov != "" {
					current = []string{ov}
					curLen = len(ov)
				} else {
					current = nil
					curLen = 0
				}
			} else {
				current = nil
				curLen = 0
			}
		}
		current = append(current, sentence)
		curLen += len(sentence)
	}

	if len(current) > 0 {
		chunkText := strings.Join(current, " ")
		if len(chunkText) >= c.cfg.MinChunkSize {
			chunks = append(chunks, newChunk(chunkText, videoID, index, est, c.cfg.Strategy))
		}
	}
	return chunks
}

// recursive slides a character window of the max size with stride
// max - overlap, keeping only windows that reach the min size.
func (c *Chunker) recursive(text, videoID string, est timeEstimator) []Chunk {
	stride := c.cfg.MaxChunkSize - c.cfg.Overlap

	var chunks []Chunk
	index := 0
	for i := 0; i < len(text); i += stride {
		end := i + c.cfg.MaxChunkSize
		if end > len(text) {
			end = len(text)
		}
		window := text[i:end]
		if len(window) >= c.cfg.MinChunkSize {
			chunks = append(chunks, newChunk(window, videoID, index, est, c.cfg.Strategy))
			index++
		}
	}
	return chunks
}

// videoOptimized is semantic chunking over raw segment texts with a forced
// boundary whenever the speaker changes between consecutive segments. Size
// is enforced on accumulated segment text; speaker boundaries do not carry
// an overlap window.
func (c *Chunker) videoOptimized(segments []transcript.Segment, videoID string, est timeEstimator) []Chunk {
	var chunks []Chunk
	var current []string
	curLen := 0
	index := 0
	speaker := ""

	emit := func() {
		chunkText := strings.Join(current, " ")
		if len(chunkText) >= c.cfg.MinChunkSize {
			chunks = append(chunks, newChunk(chunkText, videoID, index, est, c.cfg.Strategy))
			index++
		}
		current = nil
		curLen = 0
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if speaker != seg.Speaker && len(current) > 0 {
			emit()
		}
		if curLen+len(text) > c.cfg.MaxChunkSize && len(current) > 0 {
			emit()
		}
		current = append(current, text)
		curLen += len(text)
		speaker = seg.Speaker
	}

	if len(current) > 0 {
		chunkText := strings.Join(current, " ")
		if len(chunkText) >= c.cfg.MinChunkSize {
			chunks = append(chunks, newChunk(chunkText, videoID, index, est, c.cfg.Strategy))
		}
	}
	return chunks
}

// fixed cuts non-overlapping windows of exactly the max size. The trailing
// window may be shorter and is always emitted; fixed is exempt from the
// min-size filter.
func (c *Chunker) fixed(text, videoID string, est timeEstimator) []Chunk {
	var chunks []Chunk
	index := 0
	for i := 0; i < len(text); i += c.cfg.MaxChunkSize {
		end := i + c.cfg.MaxChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, newChunk(text[i:end], videoID, index, est, c.cfg.Strategy))
		index++
	}
	return chunks
}

// splitSentences splits text on sentence-ending punctuation, dropping the
// terminators and empty remainders. Intentionally simple: transcripts have
// no abbreviation-heavy prose worth a full tokenizer.
func splitSentences(text string) []string {
	parts := sentenceEnd.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// overlapWindow takes sentences from the tail of a closed chunk, in order,
// until adding another would exceed the overlap budget.
func overlapWindow(sentences []string, overlap int) string {
	out := ""
	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		if len(out)+len(s) <= overlap {
			out = s + " " + out
		} else {
			break
		}
	}
	return strings.TrimSpace(out)
}
