package ingest

import (
	"context"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
)

// Embedder is the embedding collaborator contract. Dimensionality is a
// fixed constant per deployment.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ChunkedVideo is a transcript with its candidate chunks.
type ChunkedVideo struct {
	Transcript transcript.Transcript
	Chunks     []chunk.Chunk
}

// DedupedVideo partitions candidate chunks into new and already-persisted.
type DedupedVideo struct {
	ChunkedVideo
	New        []chunk.Chunk
	Duplicates int
}

// EmbeddedVideo carries one embedding per new chunk, index-aligned.
type EmbeddedVideo struct {
	DedupedVideo
	Embeddings [][]float32
}

// Report is the per-video ingestion outcome. An all-duplicate input is a
// successful no-op: NewRecords 0, no error.
type Report struct {
	VideoID    string `json:"video_id"`
	Chunks     int    `json:"chunks"`
	NewRecords int    `json:"new_records"`
	Duplicates int    `json:"duplicates"`
}
