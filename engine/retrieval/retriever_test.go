package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
)

type staticSource struct {
	records []semantic.ChunkRecord
	err     error
}

func (s *staticSource) Records(_ context.Context, videoID string) ([]semantic.ChunkRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if videoID == "" {
		return s.records, nil
	}
	var out []semantic.ChunkRecord
	for _, r := range s.records {
		if r.VideoID == videoID {
			out = append(out, r)
		}
	}
	return out, nil
}

type staticEmbedder struct {
	vec []float32
	err error
}

func (e *staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

func rec(id, videoID string, vec ...float32) semantic.ChunkRecord {
	return semantic.ChunkRecord{ID: id, VideoID: videoID, Embedding: vec}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSearchEmptyStoreReturnsEmptyList(t *testing.T) {
	r := New(&staticSource{}, &staticEmbedder{vec: []float32{1, 0}}, discard())
	matches, err := r.Search(context.Background(), "anything", "", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("got %d matches from empty store", len(matches))
	}
}

func TestIdenticalVectorScoresOneAndRanksFirst(t *testing.T) {
	src := &staticSource{records: []semantic.ChunkRecord{
		rec("a", "v1", 0, 1, 0),
		rec("b", "v1", 1, 0, 0), // identical to query
		rec("c", "v1", 0.9, 0.1, 0),
	}}
	r := New(src, nil, discard())

	matches, err := r.SearchVector(context.Background(), []float32{1, 0, 0}, "", 10)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if matches[0].Record.ID != "b" {
		t.Fatalf("top match = %s, want b", matches[0].Record.ID)
	}
	if math.Abs(matches[0].Score-1.0) > 1e-6 {
		t.Errorf("identical vector score = %f, want 1.0", matches[0].Score)
	}
	if matches[1].Score >= matches[0].Score || matches[2].Score >= matches[1].Score {
		t.Error("matches not sorted descending")
	}
}

func TestTiesKeepFetchOrder(t *testing.T) {
	src := &staticSource{records: []semantic.ChunkRecord{
		rec("first", "v1", 1, 0),
		rec("second", "v1", 2, 0), // same direction, same cosine
	}}
	r := New(src, nil, discard())

	matches, err := r.SearchVector(context.Background(), []float32{3, 0}, "", 10)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if matches[0].Record.ID != "first" || matches[1].Record.ID != "second" {
		t.Errorf("tie order broken: %s, %s", matches[0].Record.ID, matches[1].Record.ID)
	}
}

func TestMalformedVectorsSkipped(t *testing.T) {
	src := &staticSource{records: []semantic.ChunkRecord{
		rec("empty", "v1"),
		rec("short", "v1", 1),
		rec("good", "v1", 1, 0),
	}}
	r := New(src, nil, discard())

	matches, err := r.SearchVector(context.Background(), []float32{1, 0}, "", 10)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.ID != "good" {
		t.Fatalf("got %d matches, want only the well-formed record", len(matches))
	}
}

func TestVideoScopeFilters(t *testing.T) {
	src := &staticSource{records: []semantic.ChunkRecord{
		rec("a", "v1", 1, 0),
		rec("b", "v2", 1, 0),
	}}
	r := New(src, nil, discard())

	matches, err := r.SearchVector(context.Background(), []float32{1, 0}, "v2", 10)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.VideoID != "v2" {
		t.Fatalf("scope not applied: %+v", matches)
	}
}

func TestLimitAndDefault(t *testing.T) {
	var records []semantic.ChunkRecord
	for i := 0; i < 50; i++ {
		records = append(records, rec(string(rune('a'+i)), "v1", 1, float32(i)))
	}
	r := New(&staticSource{records: records}, nil, discard())

	matches, _ := r.SearchVector(context.Background(), []float32{1, 0}, "", 3)
	if len(matches) != 3 {
		t.Errorf("limit 3 returned %d", len(matches))
	}
	matches, _ = r.SearchVector(context.Background(), []float32{1, 0}, "", 0)
	if len(matches) != DefaultLimit {
		t.Errorf("default limit returned %d, want %d", len(matches), DefaultLimit)
	}
}

func TestZeroMagnitudeScoresZero(t *testing.T) {
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero magnitude cosine = %f, want 0", got)
	}
	if got := Cosine([]float32{1, 1}, []float32{0, 0}); got != 0 {
		t.Errorf("zero magnitude cosine = %f, want 0", got)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	r := New(&staticSource{}, &staticEmbedder{vec: []float32{1}}, discard())
	_, err := r.Search(context.Background(), "   ", "", 5)
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("got %v, want ErrEmptyQuery", err)
	}
}

func TestSearchEmbedFailureSurfaced(t *testing.T) {
	r := New(&staticSource{}, &staticEmbedder{err: errors.New("down")}, discard())
	_, err := r.Search(context.Background(), "query", "", 5)
	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) || uerr.System != "embedding" {
		t.Fatalf("want embedding UpstreamError, got %v", err)
	}
}

func TestSourceFailureSurfaced(t *testing.T) {
	r := New(&staticSource{err: errors.New("down")}, nil, discard())
	_, err := r.SearchVector(context.Background(), []float32{1}, "", 5)
	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) || uerr.System != "storage" {
		t.Fatalf("want storage UpstreamError, got %v", err)
	}
}
