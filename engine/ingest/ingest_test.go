package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
)

// fakeStore is an in-memory semantic.Store keyed by record ID.
type fakeStore struct {
	records map[string]semantic.ChunkRecord
	order   []string
	inserts int
	failOn  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]semantic.ChunkRecord)}
}

func (s *fakeStore) HasVideo(_ context.Context, videoID string) (bool, error) {
	for _, r := range s.records {
		if r.VideoID == videoID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) StoredTexts(_ context.Context, videoID string) ([]semantic.StoredText, error) {
	var out []semantic.StoredText
	for _, id := range s.order {
		r := s.records[id]
		if r.VideoID == videoID {
			out = append(out, semantic.StoredText{Index: r.ChunkIndex, Text: r.Text})
		}
	}
	return out, nil
}

func (s *fakeStore) Insert(_ context.Context, records []semantic.ChunkRecord) error {
	if s.failOn != nil {
		return s.failOn
	}
	s.inserts++
	for _, r := range records {
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *fakeStore) Records(_ context.Context, videoID string) ([]semantic.ChunkRecord, error) {
	var out []semantic.ChunkRecord
	for _, id := range s.order {
		r := s.records[id]
		if videoID == "" || r.VideoID == videoID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) Count(_ context.Context, videoID string) (int, error) {
	recs, _ := s.Records(context.Background(), videoID)
	return len(recs), nil
}

func (s *fakeStore) DeleteVideo(_ context.Context, videoID string) error {
	kept := s.order[:0]
	for _, id := range s.order {
		if s.records[id].VideoID == videoID {
			delete(s.records, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

// fakeEmbedder returns a deterministic 4-dim vector per text.
type fakeEmbedder struct {
	calls int
	fail  error
}

func (e *fakeEmbedder) Dimensions() int { return 4 }

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0, 0}
	}
	return out, nil
}

func testTranscript(videoID string) transcript.Transcript {
	return transcript.Transcript{
		VideoID:  videoID,
		Duration: 60,
		Segments: []transcript.Segment{
			{Start: 0, End: 20, Text: "The first part of the talk covers introductions."},
			{Start: 20, End: 40, Text: "The second part digs into the actual subject matter."},
			{Start: 40, End: 60, Text: "The final part wraps up with questions from the audience."},
		},
	}
}

func testIngestor(t *testing.T, store semantic.Store, embedder Embedder) *Ingestor {
	t.Helper()
	chunker, err := chunk.New(chunk.Config{Strategy: chunk.StrategyFixed, MaxChunkSize: 50}, nil)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	return New(Deps{Embedder: embedder, Store: store, Chunker: chunker})
}

func TestIngestWritesRecords(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(t, store, &fakeEmbedder{})

	report, err := ing.Ingest(context.Background(), testTranscript("v1"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.NewRecords == 0 {
		t.Fatal("no records written")
	}
	if report.NewRecords != len(store.records) {
		t.Errorf("report says %d, store has %d", report.NewRecords, len(store.records))
	}
	for _, r := range store.records {
		if len(r.Embedding) != 4 {
			t.Errorf("record %s has %d-dim embedding", r.ID, len(r.Embedding))
		}
		if r.ContentHash == "" || r.CreatedAt.IsZero() {
			t.Errorf("record %s missing hash or timestamp", r.ID)
		}
	}
}

func TestReingestIsIdempotent(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(t, store, &fakeEmbedder{})
	ctx := context.Background()

	first, err := ing.Ingest(ctx, testTranscript("v1"))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	countAfterFirst := len(store.records)

	second, err := ing.Ingest(ctx, testTranscript("v1"))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.NewRecords != 0 {
		t.Errorf("second ingest wrote %d new records, want 0", second.NewRecords)
	}
	if second.Duplicates != first.NewRecords {
		t.Errorf("second ingest found %d duplicates, want %d", second.Duplicates, first.NewRecords)
	}
	if len(store.records) != countAfterFirst {
		t.Errorf("record count changed: %d -> %d", countAfterFirst, len(store.records))
	}
}

func TestSameTextDifferentVideosBothPersist(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(t, store, &fakeEmbedder{})
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, testTranscript("v1")); err != nil {
		t.Fatalf("v1: %v", err)
	}
	countV1 := len(store.records)

	report, err := ing.Ingest(ctx, testTranscript("v2"))
	if err != nil {
		t.Fatalf("v2: %v", err)
	}
	if report.NewRecords == 0 {
		t.Fatal("identical text under a new video_id must persist")
	}
	if len(store.records) != 2*countV1 {
		t.Errorf("store has %d records, want %d", len(store.records), 2*countV1)
	}
}

func TestEmbedFailureAbortsVideo(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("provider down")
	ing := testIngestor(t, store, &fakeEmbedder{fail: boom})

	_, err := ing.Ingest(context.Background(), testTranscript("v1"))
	if err == nil {
		t.Fatal("expected error")
	}
	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) || uerr.System != "embedding" {
		t.Fatalf("want embedding UpstreamError, got %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("records persisted despite embed failure: %d", len(store.records))
	}
}

func TestStorageFailureSurfaced(t *testing.T) {
	store := newFakeStore()
	store.failOn = errors.New("disk full")
	ing := testIngestor(t, store, &fakeEmbedder{})

	_, err := ing.Ingest(context.Background(), testTranscript("v1"))
	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) || uerr.System != "storage" {
		t.Fatalf("want storage UpstreamError, got %v", err)
	}
}

func TestInvalidTranscriptRejected(t *testing.T) {
	ing := testIngestor(t, newFakeStore(), &fakeEmbedder{})

	_, err := ing.Ingest(context.Background(), transcript.Transcript{VideoID: "  "})
	if !errors.Is(err, domain.ErrInvalidTranscript) {
		t.Fatalf("got %v, want ErrInvalidTranscript", err)
	}
}

func TestEmptyTranscriptIsNoOp(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(t, store, &fakeEmbedder{})

	report, err := ing.Ingest(context.Background(), transcript.Transcript{VideoID: "v1"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Chunks != 0 || report.NewRecords != 0 {
		t.Errorf("empty transcript produced chunks: %+v", report)
	}
}

func TestEmbedBatchingHonorsLimit(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	chunker, err := chunk.New(chunk.Config{Strategy: chunk.StrategyFixed, MaxChunkSize: 5}, nil)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	ing := New(Deps{Embedder: embedder, Store: store, Chunker: chunker})

	// Enough text for well over EmbedBatchSize five-char chunks.
	var segs []transcript.Segment
	for i := 0; i < 30; i++ {
		segs = append(segs, transcript.Segment{
			Start: float64(i * 10), End: float64(i*10 + 10),
			Text: fmt.Sprintf("segment number %d with some padding text here", i),
		})
	}
	report, err := ing.Ingest(context.Background(), transcript.Transcript{VideoID: "big", Segments: segs, Duration: 300})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.NewRecords <= EmbedBatchSize {
		t.Fatalf("test needs more than %d chunks, got %d", EmbedBatchSize, report.NewRecords)
	}
	wantCalls := (report.NewRecords + EmbedBatchSize - 1) / EmbedBatchSize
	if embedder.calls != wantCalls {
		t.Errorf("embedder called %d times, want %d", embedder.calls, wantCalls)
	}
	if store.inserts != wantCalls {
		t.Errorf("store insert batches = %d, want %d", store.inserts, wantCalls)
	}
}

func TestRecordIDDeterministic(t *testing.T) {
	a := RecordID("v1", "abc")
	if a != RecordID("v1", "abc") {
		t.Error("same inputs must produce the same ID")
	}
	if a == RecordID("v2", "abc") || a == RecordID("v1", "abd") {
		t.Error("different inputs must produce different IDs")
	}
}

func TestIngestAllReportsPerVideoStatus(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(t, store, &fakeEmbedder{})
	ctx := context.Background()

	// Pre-ingest v1 so the batch sees it as all-duplicate.
	if _, err := ing.Ingest(ctx, testTranscript("v1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	batch := []transcript.Transcript{
		testTranscript("v1"),
		testTranscript("v2"),
		{VideoID: ""}, // invalid
	}
	res, err := ing.IngestAll(ctx, batch)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if res.Statuses["v1"] != StatusSkipped {
		t.Errorf("v1 status = %s, want skipped", res.Statuses["v1"])
	}
	if res.Statuses["v2"] != StatusProcessed {
		t.Errorf("v2 status = %s, want processed", res.Statuses["v2"])
	}
	if res.Failed != 1 {
		t.Errorf("failed = %d, want 1", res.Failed)
	}
	if res.Processed != 1 || res.Skipped != 1 {
		t.Errorf("processed=%d skipped=%d, want 1 and 1", res.Processed, res.Skipped)
	}
}
