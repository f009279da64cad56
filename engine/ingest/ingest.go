// Package ingest runs transcripts through validation, chunking, dedup,
// embedding, and storage stages.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
	"github.com/TranscriptaAI/transcripta/pkg/fn"
	"github.com/TranscriptaAI/transcripta/pkg/metrics"
	"github.com/TranscriptaAI/transcripta/pkg/resilience"
)

const (
	// IngestSubject is the NATS subject for incoming transcripts.
	IngestSubject = "transcripts.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "transcripts.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max texts per embedding provider call.
	EmbedBatchSize = 100
	// InsertBatchSize is the max records per storage write.
	InsertBatchSize = 100
)

// Deps holds the external collaborators for the ingestion pipeline.
type Deps struct {
	Embedder Embedder
	Store    semantic.Store
	Chunker  *chunk.Chunker
	// Breaker guards embedding provider calls. Optional.
	Breaker *resilience.Breaker
	// Limiter paces multi-video runs. Optional.
	Limiter *resilience.Limiter
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Validate checks transcript shape before any work is done.
var Validate fn.Stage[transcript.Transcript, transcript.Transcript] = func(_ context.Context, t transcript.Transcript) fn.Result[transcript.Transcript] {
	if err := domain.ValidateTranscript(t); err != nil {
		return fn.Err[transcript.Transcript](err)
	}
	return fn.Ok(t)
}

// NewChunk creates the chunking stage. A transcript with no segments
// produces zero chunks, which downstream stages treat as a no-op.
func NewChunk(chunker *chunk.Chunker) fn.Stage[transcript.Transcript, ChunkedVideo] {
	return func(_ context.Context, t transcript.Transcript) fn.Result[ChunkedVideo] {
		chunks := chunker.ChunkTranscript(t.VideoID, t.Segments)
		return fn.Ok(ChunkedVideo{Transcript: t, Chunks: chunks})
	}
}

// NewDedup creates the dedup stage.
func NewDedup(index *DedupIndex) fn.Stage[ChunkedVideo, DedupedVideo] {
	return func(ctx context.Context, cv ChunkedVideo) fn.Result[DedupedVideo] {
		fresh, dups, err := index.Partition(ctx, cv.Transcript.VideoID, cv.Chunks)
		if err != nil {
			return fn.Err[DedupedVideo](err)
		}
		return fn.Ok(DedupedVideo{ChunkedVideo: cv, New: fresh, Duplicates: dups})
	}
}

// NewEmbed creates the embedding stage. Texts go to the provider in
// batches of EmbedBatchSize; a provider failure aborts the whole call so
// vectors are never misattributed to chunks.
func NewEmbed(embedder Embedder, breaker *resilience.Breaker) fn.Stage[DedupedVideo, EmbeddedVideo] {
	return func(ctx context.Context, dv DedupedVideo) fn.Result[EmbeddedVideo] {
		embeddings := make([][]float32, 0, len(dv.New))
		for _, batch := range fn.Chunk(dv.New, EmbedBatchSize) {
			texts := fn.Map(batch, func(c chunk.Chunk) string { return c.Text })

			var vecs [][]float32
			call := func(ctx context.Context) error {
				var err error
				vecs, err = embedder.EmbedBatch(ctx, texts)
				return err
			}
			var err error
			if breaker != nil {
				err = breaker.Call(ctx, call)
			} else {
				err = call(ctx)
			}
			if err != nil {
				return fn.Err[EmbeddedVideo](domain.Upstream("embedding", err))
			}
			if len(vecs) != len(texts) {
				return fn.Errf[EmbeddedVideo]("embed: got %d vectors for %d texts", len(vecs), len(texts))
			}
			embeddings = append(embeddings, vecs...)
		}
		return fn.Ok(EmbeddedVideo{DedupedVideo: dv, Embeddings: embeddings})
	}
}

// RecordID derives a deterministic record ID from the dedup key. Two
// writers racing on the same (video_id, content_hash) converge on the same
// ID, closing the check-then-insert race at the storage layer.
func RecordID(videoID, contentHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(videoID+"/"+contentHash)).String()
}

// NewStore creates the storage stage, writing records in bounded batches.
func NewStore(store semantic.Store) fn.Stage[EmbeddedVideo, Report] {
	return func(ctx context.Context, ev EmbeddedVideo) fn.Result[Report] {
		now := time.Now().UTC()
		records := make([]semantic.ChunkRecord, len(ev.New))
		for i, c := range ev.New {
			records[i] = semantic.ChunkRecord{
				ID:          RecordID(c.VideoID, c.ContentHash),
				VideoID:     c.VideoID,
				Text:        c.Text,
				ChunkIndex:  c.Index,
				Start:       c.Start,
				End:         c.End,
				WordCount:   c.WordCount,
				CharCount:   c.CharCount,
				ContentHash: c.ContentHash,
				Strategy:    c.Strategy.String(),
				Embedding:   ev.Embeddings[i],
				CreatedAt:   now,
			}
		}

		for _, batch := range fn.Chunk(records, InsertBatchSize) {
			if err := store.Insert(ctx, batch); err != nil {
				return fn.Err[Report](domain.Upstream("storage", err))
			}
		}

		return fn.Ok(Report{
			VideoID:    ev.Transcript.VideoID,
			Chunks:     len(ev.Chunks),
			NewRecords: len(records),
			Duplicates: ev.Duplicates,
		})
	}
}

// NewPipeline wires the full ingestion pipeline with tracing per stage.
func NewPipeline(deps Deps) fn.Stage[transcript.Transcript, Report] {
	validated := fn.TracedStage("ingest.validate", Validate)
	chunked := fn.Then(validated, fn.TracedStage("ingest.chunk", NewChunk(deps.Chunker)))
	deduped := fn.Then(chunked, fn.TracedStage("ingest.dedup", NewDedup(NewDedupIndex(deps.Store))))
	embedded := fn.Then(deduped, fn.TracedStage("ingest.embed", NewEmbed(deps.Embedder, deps.Breaker)))
	return fn.Then(embedded, fn.TracedStage("ingest.store", NewStore(deps.Store)))
}

// Ingestor runs transcripts through the pipeline.
type Ingestor struct {
	deps     Deps
	pipeline fn.Stage[transcript.Transcript, Report]
}

// New creates an Ingestor.
func New(deps Deps) *Ingestor {
	return &Ingestor{deps: deps, pipeline: NewPipeline(deps)}
}

// Ingest processes one transcript: chunk, dedup, embed new chunks,
// persist. Re-ingesting an already-stored video succeeds with zero new
// records.
func (ing *Ingestor) Ingest(ctx context.Context, t transcript.Transcript) (Report, error) {
	report, err := ing.pipeline(ctx, t).Unwrap()
	if err != nil {
		return Report{VideoID: t.VideoID}, err
	}

	log := ing.deps.logger()
	log.Info("ingested video",
		"video_id", report.VideoID,
		"chunks", report.Chunks,
		"new_records", report.NewRecords,
		"duplicates", report.Duplicates,
	)
	if m := ing.deps.Metrics; m != nil {
		m.Counter("transcripta_videos_ingested_total", "Videos ingested").Inc()
		m.Counter("transcripta_records_written_total", "Chunk records written").Add(int64(report.NewRecords))
		m.Counter("transcripta_duplicates_skipped_total", "Duplicate chunks skipped").Add(int64(report.Duplicates))
	}
	return report, nil
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Transcript transcript.Transcript `json:"transcript"`
	Error      string                `json:"error"`
	Retries    int                   `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs each transcript
// through the pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	ing := New(deps)
	log := deps.logger()

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var t transcript.Transcript
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		_, err := ing.Ingest(ctx, t)
		if err != nil {
			retries++
			log.Error("ingest: pipeline failed",
				"error", err,
				"video_id", t.VideoID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Transcript: t, Error: err.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
