// Package semantic owns persisted chunk records and the vector store
// backends. Records are append-only: once written they are never mutated.
package semantic

import (
	"context"
	"time"
)

// ChunkRecord is a persisted chunk with its embedding vector. Immutable
// once written.
type ChunkRecord struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"video_id"`
	Text        string    `json:"chunk_text"`
	ChunkIndex  int       `json:"chunk_index"`
	Start       float64   `json:"start_timestamp"`
	End         float64   `json:"end_timestamp"`
	WordCount   int       `json:"word_count"`
	CharCount   int       `json:"character_count"`
	ContentHash string    `json:"content_hash"`
	Strategy    string    `json:"strategy"`
	Embedding   Vector    `json:"embedding"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoredText is the (index, text) pair the dedup index fetches for
// content-hash comparison.
type StoredText struct {
	Index int
	Text  string
}

// Store is the storage collaborator contract. Implementations: VectorStore
// (Qdrant) and BoltStore (embedded bbolt). An empty videoID means
// "all videos" where a scope parameter is accepted.
type Store interface {
	// HasVideo reports whether any record exists for the video.
	HasVideo(ctx context.Context, videoID string) (bool, error)
	// StoredTexts returns all (chunk_index, text) pairs for the video.
	StoredTexts(ctx context.Context, videoID string) ([]StoredText, error)
	// Insert persists a batch of records. Mid-batch failure leaves
	// already-written records in place; callers rely on dedup for safe
	// retry.
	Insert(ctx context.Context, records []ChunkRecord) error
	// Records fetches all records, optionally scoped to one video.
	Records(ctx context.Context, videoID string) ([]ChunkRecord, error)
	// Count returns the number of records in scope.
	Count(ctx context.Context, videoID string) (int, error)
	// DeleteVideo removes every record for the video, so it can be
	// re-ingested from scratch.
	DeleteVideo(ctx context.Context, videoID string) error
}
