// Command api serves chunk search over HTTP for the downstream QA layer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/retrieval"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
	"github.com/TranscriptaAI/transcripta/pkg/config"
	"github.com/TranscriptaAI/transcripta/pkg/mid"
	"github.com/TranscriptaAI/transcripta/pkg/ollama"
	"github.com/TranscriptaAI/transcripta/pkg/openai"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	store, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	retriever := retrieval.New(store, embedder, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/stats", handleStats(store, logger))
	mux.HandleFunc("POST /api/search", handleSearch(retriever, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("transcripta-api"),
		mid.CORS(cfg.API.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.API.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query   string `json:"query"`
	VideoID string `json:"video_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []retrieval.Match `json:"results"`
	Count   int               `json:"count"`
}

func handleSearch(retriever *retrieval.Retriever, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		matches, err := retriever.Search(r.Context(), req.Query, req.VideoID, req.Limit)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) || errors.Is(err, domain.ErrEmptyQuery) {
				http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
				return
			}
			logger.Error("search failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if matches == nil {
			matches = []retrieval.Match{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{Results: matches, Count: len(matches)})
	}
}

// StatsResponse is the JSON response for GET /api/stats.
type StatsResponse struct {
	Records int    `json:"records"`
	VideoID string `json:"video_id,omitempty"`
}

func handleStats(store semantic.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("video_id")
		count, err := store.Count(r.Context(), videoID)
		if err != nil {
			logger.Error("stats failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatsResponse{Records: count, VideoID: videoID})
	}
}

func buildEmbedder(cfg config.Config) (retrieval.Embedder, error) {
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

func buildStore(cfg config.Config, logger *slog.Logger) (semantic.Store, func(), error) {
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
		return vs, func() { vs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
