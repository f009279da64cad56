// Command tsctl is the operator CLI: chunk transcripts locally, ingest
// them, inspect store contents, and run ad-hoc searches.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/ingest"
	"github.com/TranscriptaAI/transcripta/engine/retrieval"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
	"github.com/TranscriptaAI/transcripta/pkg/config"
	"github.com/TranscriptaAI/transcripta/pkg/ollama"
	"github.com/TranscriptaAI/transcripta/pkg/openai"
	"github.com/TranscriptaAI/transcripta/pkg/resilience"
)

var (
	cfgPath  string
	strategy string
	cfg      config.Config
	logger   *slog.Logger
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	root := &cobra.Command{
		Use:           "tsctl",
		Short:         "Transcript chunking and retrieval toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&strategy, "strategy", "", "chunking strategy override")

	root.AddCommand(chunkCmd(), ingestCmd(), searchCmd(), statsCmd(), deleteCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func chunkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chunk <transcript-file>",
		Short: "Chunk a transcript locally and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTranscript(args[0])
			if err != nil {
				return err
			}
			chunker, err := buildChunker()
			if err != nil {
				return err
			}
			chunks := chunker.ChunkTranscript(t.VideoID, t.Segments)
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(chunks)
			}
			for _, c := range chunks {
				fmt.Printf("[%d] %.1fs-%.1fs (%d chars, %d words)\n    %s\n",
					c.Index, c.Start, c.End, c.CharCount, c.WordCount, preview(c.Text))
			}
			st := chunk.Summarize(chunks)
			fmt.Printf("\n%d chunks, avg %.0f chars, %d words total\n",
				st.TotalChunks, st.AvgChunkSize, st.TotalWords)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print chunks as JSON")
	return cmd
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <transcript-file>...",
		Short: "Ingest transcript files into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var transcripts []transcript.Transcript
			for _, path := range args {
				t, err := loadTranscript(path)
				if err != nil {
					return err
				}
				transcripts = append(transcripts, t)
			}

			embedder, err := buildEmbedder()
			if err != nil {
				return err
			}
			store, cleanup, err := buildStore(ctx, embedder.Dimensions())
			if err != nil {
				return err
			}
			defer cleanup()
			chunker, err := buildChunker()
			if err != nil {
				return err
			}

			ing := ingest.New(ingest.Deps{
				Embedder: embedder,
				Store:    store,
				Chunker:  chunker,
				Breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
				Logger:   logger,
			})
			res, err := ing.IngestAll(ctx, transcripts)
			if err != nil {
				return err
			}
			for id, status := range res.Statuses {
				fmt.Printf("%s\t%s\n", id, status)
			}
			fmt.Printf("processed=%d skipped=%d failed=%d\n", res.Processed, res.Skipped, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d videos failed", res.Failed)
			}
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var videoID string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored chunks by text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			embedder, err := buildEmbedder()
			if err != nil {
				return err
			}
			store, cleanup, err := buildStore(ctx, embedder.Dimensions())
			if err != nil {
				return err
			}
			defer cleanup()

			retriever := retrieval.New(store, embedder, logger)
			matches, err := retriever.Search(ctx, args[0], videoID, limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for i, m := range matches {
				fmt.Printf("%2d. %.4f  %s [%d] %.1fs-%.1fs\n    %s\n",
					i+1, m.Score, m.Record.VideoID, m.Record.ChunkIndex,
					m.Record.Start, m.Record.End, preview(m.Record.Text))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&videoID, "video", "", "limit search to one video")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	return cmd
}

func statsCmd() *cobra.Command {
	var videoID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, cleanup, err := buildStore(ctx, 0)
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := store.Count(ctx, videoID)
			if err != nil {
				return err
			}
			if videoID != "" {
				fmt.Printf("%s: %d records\n", videoID, count)
			} else {
				fmt.Printf("%d records\n", count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&videoID, "video", "", "count records for one video")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <video-id>",
		Short: "Delete every record for a video so it can be re-ingested",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := buildStore(ctx, 0)
			if err != nil {
				return err
			}
			defer cleanup()

			videoID := args[0]
			count, err := store.Count(ctx, videoID)
			if err != nil {
				return err
			}
			if err := store.DeleteVideo(ctx, videoID); err != nil {
				return err
			}
			fmt.Printf("%s: deleted %d records\n", videoID, count)
			return nil
		},
	}
}

func preview(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
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

func buildChunker() (*chunk.Chunker, error) {
	name := cfg.Chunking.Strategy
	if strategy != "" {
		name = strategy
	}
	s, err := chunk.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	cc := chunk.DefaultConfig(s)
	if cfg.Chunking.MaxChunkSize > 0 {
		cc.MaxChunkSize = cfg.Chunking.MaxChunkSize
	}
	if cfg.Chunking.MinChunkSize > 0 {
		cc.MinChunkSize = cfg.Chunking.MinChunkSize
	}
	if cfg.Chunking.Overlap > 0 {
		cc.Overlap = cfg.Chunking.Overlap
	}
	return chunk.New(cc, logger)
}

func buildEmbedder() (ingest.Embedder, error) {
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

func buildStore(ctx context.Context, dims int) (semantic.Store, func(), error) {
	switch cfg.Store.Backend {
	case "bolt":
		bs, err := semantic.OpenBolt(cfg.Store.BoltPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return bs, func() { bs.Close() }, nil
	case "qdrant", "":
		vs, err := semantic.New(cfg.Store.QdrantAddr, cfg.Store.Collection)
		if err != nil {
			return nil, nil, err
		}
		if dims > 0 {
			if err := vs.EnsureCollection(ctx, dims); err != nil {
				vs.Close()
				return nil, nil, err
			}
		}
		return vs, func() { vs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
