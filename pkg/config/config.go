// Package config loads service configuration from a YAML file with
// environment overrides. A .env file in the working directory is loaded
// first so local development does not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Chunking selects the segmentation strategy and its sizes. Zero-valued
// size fields fall back to the strategy's defaults.
type Chunking struct {
	Strategy     string `yaml:"strategy"`
	MaxChunkSize int    `yaml:"max_chunk_size"`
	MinChunkSize int    `yaml:"min_chunk_size"`
	Overlap      int    `yaml:"overlap"`
}

// Embedding selects the embedding provider.
type Embedding struct {
	Provider   string        `yaml:"provider"` // "openai" or "ollama"
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Store selects the record store backend.
type Store struct {
	Backend    string `yaml:"backend"` // "qdrant" or "bolt"
	QdrantAddr string `yaml:"qdrant_addr"`
	Collection string `yaml:"collection"`
	BoltPath   string `yaml:"bolt_path"`
}

// NATS configures the optional ingest consumer.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// API configures the search HTTP server.
type API struct {
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Config is the root configuration shared by all commands.
type Config struct {
	Chunking    Chunking  `yaml:"chunking"`
	Embedding   Embedding `yaml:"embedding"`
	Store       Store     `yaml:"store"`
	NATS        NATS      `yaml:"nats"`
	API         API       `yaml:"api"`
	MetricsPort int       `yaml:"metrics_port"`
}

// Default returns a configuration that works against local services.
func Default() Config {
	return Config{
		Chunking: Chunking{Strategy: "semantic"},
		Embedding: Embedding{
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Store: Store{
			Backend:    "qdrant",
			QdrantAddr: "localhost:6334",
			Collection: "video_chunks",
			BoltPath:   "transcripta.db",
		},
		NATS: NATS{
			URL:     "nats://localhost:4222",
			Subject: "transcripts.ingest",
		},
		API:         API{Port: 8080, CORSOrigin: "*"},
		MetricsPort: 9091,
	}
}

// Load reads configuration from path (optional) and applies environment
// overrides. An empty path returns defaults plus overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// APIKey resolves the embedding provider API key from the environment.
func (c Config) APIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

func (c *Config) applyEnv() {
	envStr("QDRANT_ADDR", &c.Store.QdrantAddr)
	envStr("QDRANT_COLLECTION", &c.Store.Collection)
	envStr("STORE_BACKEND", &c.Store.Backend)
	envStr("BOLT_PATH", &c.Store.BoltPath)
	envStr("NATS_URL", &c.NATS.URL)
	envStr("EMBED_PROVIDER", &c.Embedding.Provider)
	envStr("EMBED_BASE_URL", &c.Embedding.BaseURL)
	envStr("EMBED_MODEL", &c.Embedding.Model)
	envStr("CHUNK_STRATEGY", &c.Chunking.Strategy)
	envInt("API_PORT", &c.API.Port)
	envInt("METRICS_PORT", &c.MetricsPort)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
