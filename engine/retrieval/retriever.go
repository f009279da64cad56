// Package retrieval ranks stored chunk records against a query vector by
// exact cosine similarity. Every record in scope is scored; no ANN index
// is involved, so results are exact.
package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
)

// DefaultLimit is the result count when the caller passes limit <= 0.
const DefaultLimit = 40

// RecordSource fetches persisted records. An empty videoID means all
// videos.
type RecordSource interface {
	Records(ctx context.Context, videoID string) ([]semantic.ChunkRecord, error)
}

// Embedder embeds query text. Dimensionality must match stored vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one scored record.
type Match struct {
	Record semantic.ChunkRecord `json:"record"`
	Score  float64              `json:"score"`
}

// Retriever is read-only over the store.
type Retriever struct {
	source   RecordSource
	embedder Embedder
	log      *slog.Logger
}

// New creates a Retriever.
func New(source RecordSource, embedder Embedder, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{source: source, embedder: embedder, log: log}
}

// Search embeds the query text and ranks records in scope. An empty store
// or scope returns an empty list, never an error.
func (r *Retriever) Search(ctx context.Context, query, videoID string, limit int) ([]Match, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.Upstream("embedding", err)
	}
	return r.SearchVector(ctx, vec, videoID, limit)
}

// SearchVector ranks all records in scope against the query vector by
// cosine similarity, descending, ties kept in fetch order. Records with
// missing or mismatched vectors are logged and skipped rather than
// failing the query.
func (r *Retriever) SearchVector(ctx context.Context, query []float32, videoID string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := r.source.Records(ctx, videoID)
	if err != nil {
		return nil, domain.Upstream("storage", err)
	}

	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			r.log.Warn("skipping record without vector", "id", rec.ID, "video_id", rec.VideoID)
			continue
		}
		if len(rec.Embedding) != len(query) {
			r.log.Warn("skipping record with mismatched vector",
				"id", rec.ID,
				"got", len(rec.Embedding),
				"want", len(query),
			)
			continue
		}
		matches = append(matches, Match{Record: rec, Score: Cosine(query, rec.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Cosine is dot(a,b) / (|a|·|b|), defined as 0 when either magnitude is 0.
func Cosine(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
