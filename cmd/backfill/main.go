// Command backfill ingests a corpus of transcript files in one run. Files
// are matched by glob (doublestar patterns, e.g. "data/**/*.json"), paced
// by a rate limit, and either ingested directly or published to NATS for
// the ingest consumer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nats-io/nats.go"
	"github.com/schollz/progressbar/v3"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/ingest"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
	"github.com/TranscriptaAI/transcripta/pkg/config"
	"github.com/TranscriptaAI/transcripta/pkg/natsutil"
	"github.com/TranscriptaAI/transcripta/pkg/ollama"
	"github.com/TranscriptaAI/transcripta/pkg/openai"
	"github.com/TranscriptaAI/transcripta/pkg/resilience"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML config file")
		pattern = flag.String("glob", "data/**/*.json", "doublestar glob for transcript files")
		publish = flag.Bool("publish", false, "publish to NATS instead of ingesting directly")
		rateArg = flag.Float64("rate", 2, "videos per second")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *pattern, *publish, *rateArg, logger); err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, pattern string, publish bool, rateArg float64, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		log.Info("no files matched", "glob", pattern)
		return nil
	}
	log.Info("backfill starting", "files", len(paths), "publish", publish)

	transcripts := make([]transcript.Transcript, 0, len(paths))
	bar := progressbar.Default(int64(len(paths)), "loading")
	for _, p := range paths {
		bar.Add(1)
		t, err := loadTranscript(p)
		if err != nil {
			log.Warn("skipping unreadable transcript", "file", p, "error", err)
			continue
		}
		transcripts = append(transcripts, t)
	}

	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: rateArg, Burst: 1})

	if publish {
		return publishAll(ctx, cfg, transcripts, limiter, log)
	}
	return ingestAll(ctx, cfg, transcripts, limiter, log)
}

func publishAll(ctx context.Context, cfg config.Config, transcripts []transcript.Transcript, limiter *resilience.Limiter, log *slog.Logger) error {
	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	bar := progressbar.Default(int64(len(transcripts)), "publishing")
	for _, t := range transcripts {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, t); err != nil {
			log.Error("publish failed", "video_id", t.VideoID, "error", err)
		}
		bar.Add(1)
	}
	return nc.Flush()
}

func ingestAll(ctx context.Context, cfg config.Config, transcripts []transcript.Transcript, limiter *resilience.Limiter, log *slog.Logger) error {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	store, cleanup, err := buildStore(ctx, cfg, embedder.Dimensions(), log)
	if err != nil {
		return err
	}
	defer cleanup()

	chunker, err := chunk.NewNamed(cfg.Chunking.Strategy, log)
	if err != nil {
		return err
	}

	ing := ingest.New(ingest.Deps{
		Embedder: embedder,
		Store:    store,
		Chunker:  chunker,
		Breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		Logger:   log,
	})

	bar := progressbar.Default(int64(len(transcripts)), "ingesting")
	var processed, skipped, failed int
	for _, t := range transcripts {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		report, err := ing.Ingest(ctx, t)
		bar.Add(1)
		if err != nil {
			log.Error("video failed", "video_id", t.VideoID, "error", err)
			failed++
			continue
		}
		if report.NewRecords == 0 && report.Chunks > 0 {
			skipped++
		} else {
			processed++
		}
	}
	log.Info("backfill done",
		"processed", processed,
		"skipped", skipped,
		"failed", failed,
	)
	if failed > 0 {
		return fmt.Errorf("%d videos failed", failed)
	}
	return nil
}

func loadTranscript(path string) (transcript.Transcript, error) {
	if strings.HasSuffix(path, ".srt") {
		f, err := os.Open(path)
		if err != nil {
			return transcript.Transcript{}, err
		}
		defer f.Close()
		segs, err := transcript.ParseSRT(f)
		if err != nil {
			return transcript.Transcript{}, err
		}
		t := transcript.Transcript{
			VideoID:  strings.TrimSuffix(filepath.Base(path), ".srt"),
			Segments: segs,
		}
		if len(segs) > 0 {
			t.Duration = segs[len(segs)-1].End
		}
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return transcript.Transcript{}, err
	}
	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return transcript.Transcript{}, err
	}
	return t, nil
}

func buildEmbedder(cfg config.Config) (ingest.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return openai.New(openai.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.APIKey(),
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
	case "ollama", "":
		dims := cfg.Embedding.Dimensions
		if dims == 0 {
			dims = 768
		}
		return ollama.New(cfg.Embedding.BaseURL, cfg.Embedding.Model, dims), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildStore(ctx context.Context, cfg config.Config, dims int, log *slog.Logger) (semantic.Store, func(), error) {
	switch cfg.Store.Backend {
	case "bolt":
		bs, err := semantic.OpenBolt(cfg.Store.BoltPath, log)
		if err != nil {
			return nil, nil, err
		}
		return bs, func() { bs.Close() }, nil
	case "qdrant", "":
		vs, err := semantic.New(cfg.Store.QdrantAddr, cfg.Store.Collection)
		if err != nil {
			return nil, nil, err
		}
		if err := vs.EnsureCollection(ctx, dims); err != nil {
			vs.Close()
			return nil, nil, err
		}
		return vs, func() { vs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
