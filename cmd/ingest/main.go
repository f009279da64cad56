// Command ingest watches a directory for transcript files (JSON or SRT)
// and runs them through the ingestion pipeline into the record store. It
// can also consume transcripts from NATS.
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
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/ingest"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
	"github.com/TranscriptaAI/transcripta/pkg/config"
	"github.com/TranscriptaAI/transcripta/pkg/metrics"
	"github.com/TranscriptaAI/transcripta/pkg/ollama"
	"github.com/TranscriptaAI/transcripta/pkg/openai"
	"github.com/TranscriptaAI/transcripta/pkg/resilience"
)

var met = metrics.New()

var (
	mFilesProcessed = met.Counter("transcripta_ingest_files_processed_total", "Transcript files processed")
	mErrorsTotal    = func(stage string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("transcripta_ingest_errors_total", "stage", stage), "Ingestion errors")
	}
	mLastScan    = met.Gauge("transcripta_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mPipelineDur = met.Histogram("transcripta_ingest_pipeline_duration_seconds", "Per-video pipeline time", nil)
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "YAML config file")
		dataDir   = flag.String("dir", "/tmp/transcripta-data", "directory to watch for transcript files")
		interval  = flag.Duration("interval", 30*time.Second, "scan interval")
		stateFile = flag.String("state", "", "processed files state (default <dir>/.ingest-state.json)")
		useNATS   = flag.Bool("nats", false, "also consume transcripts from NATS")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *stateFile == "" {
		*stateFile = filepath.Join(*dataDir, ".ingest-state.json")
	}

	if err := run(cfg, *dataDir, *interval, *stateFile, *useNATS, logger); err != nil {
		logger.Error("ingest exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, dataDir string, interval time.Duration, stateFile string, useNATS bool, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	met.ServeAsync(cfg.MetricsPort)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	store, cleanup, err := buildStore(ctx, cfg, embedder.Dimensions(), log)
	if err != nil {
		return err
	}
	defer cleanup()

	chunker, err := buildChunker(cfg, log)
	if err != nil {
		return err
	}

	deps := ingest.Deps{
		Embedder: embedder,
		Store:    store,
		Chunker:  chunker,
		Breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		Metrics:  met,
		Logger:   log,
	}
	ing := ingest.New(deps)

	if useNATS {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		sub, err := ingest.StartConsumer(nc, deps)
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
		log.Info("consuming transcripts", "subject", ingest.IngestSubject)
	}

	os.MkdirAll(dataDir, 0o755)
	processed := loadState(stateFile)
	log.Info("watching for transcripts", "dir", dataDir, "interval", interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(dataDir)
		if err != nil {
			mErrorsTotal("scan").Inc()
			log.Error("readdir failed", "error", err)
			return
		}

		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || name[0] == '.' || !isTranscriptFile(name) {
				continue
			}
			info, _ := e.Info()
			key := fmt.Sprintf("%s:%d", name, info.Size())
			if processed[key] {
				continue
			}

			path := filepath.Join(dataDir, name)
			t, err := loadTranscript(path)
			if err != nil {
				mErrorsTotal("parse").Inc()
				log.Error("transcript load failed", "file", name, "error", err)
				continue
			}

			start := time.Now()
			_, err = ing.Ingest(ctx, t)
			mPipelineDur.Since(start)
			mFilesProcessed.Inc()
			if err != nil {
				mErrorsTotal("pipeline").Inc()
				log.Error("ingest failed, will retry on next scan", "file", name, "error", err)
				continue
			}
			processed[key] = true
			saveState(stateFile, processed)
		}
	}

	scan()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

func isTranscriptFile(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".srt")
}

// loadTranscript reads a transcript from JSON or SRT. For SRT the video ID
// is the file name without extension.
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
			dims = 768 // nomic-embed-text
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

func buildChunker(cfg config.Config, log *slog.Logger) (*chunk.Chunker, error) {
	strategy, err := chunk.ParseStrategy(cfg.Chunking.Strategy)
	if err != nil {
		return nil, err
	}
	cc := chunk.DefaultConfig(strategy)
	if cfg.Chunking.MaxChunkSize > 0 {
		cc.MaxChunkSize = cfg.Chunking.MaxChunkSize
	}
	if cfg.Chunking.MinChunkSize > 0 {
		cc.MinChunkSize = cfg.Chunking.MinChunkSize
	}
	if cfg.Chunking.Overlap > 0 {
		cc.Overlap = cfg.Chunking.Overlap
	}
	return chunk.New(cc, log)
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}
