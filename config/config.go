// Package config holds the TOML configuration for the whole tool:
// wiki credentials, storage locations, destination services and
// chunking parameters.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/quarry-ai/quarry/core"
)

// Config is the root of the TOML file.
type Config struct {
	Confluence Confluence `toml:"confluence"`
	Storage    Storage    `toml:"storage"`
	Embedding  Embedding  `toml:"embedding"`
	Qdrant     Qdrant     `toml:"qdrant"`
	Catalog    Catalog    `toml:"catalog"`
	Ingest     Ingest     `toml:"ingest"`
}

// Confluence configures the wiki fetcher.
type Confluence struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	// Throttle is requests per second against the wiki API.
	Throttle float64 `toml:"throttle"`
}

// Storage configures local state locations.
type Storage struct {
	CacheDir       string `toml:"cache_dir"`
	CheckpointFile string `toml:"checkpoint_file"`
	// EmbeddingCacheDir enables the persistent embedding cache when set.
	EmbeddingCacheDir string `toml:"embedding_cache_dir"`
}

// Embedding engine names.
const (
	EngineOllama = "ollama"
	EngineOpenAI = "openai"
)

// Embedding configures the embedding service. Engine selects the client:
// "ollama" talks to Ollama's native API, "openai" to any OpenAI-compatible
// /v1 surface.
type Embedding struct {
	Engine  string   `toml:"engine"`
	Host    string   `toml:"host"`
	Model   string   `toml:"model"`
	Timeout duration `toml:"timeout"`
}

// Qdrant configures the vector store.
type Qdrant struct {
	URL                 string `toml:"url"`
	APIKey              string `toml:"api_key"`
	FilesCollection     string `toml:"files_collection"`
	KnowledgeCollection string `toml:"knowledge_collection"`
	BatchSize           int    `toml:"batch_size"`
}

// Catalog configures the relational catalog.
type Catalog struct {
	DSN         string `toml:"dsn"`
	KnowledgeID string `toml:"knowledge_id"`
	UserID      string `toml:"user_id"`
}

// Ingest configures the pipeline itself.
type Ingest struct {
	ChunkSize     int `toml:"chunk_size"`
	ChunkOverlap  int `toml:"chunk_overlap"`
	Workers       int `toml:"workers"`
	FlushInterval int `toml:"flush_interval"`
}

// duration adds TOML string parsing ("60s", "2m") to time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns a configuration with every optional setting filled in.
func Default() Config {
	return Config{
		Confluence: Confluence{Throttle: 5},
		Storage: Storage{
			CacheDir:       "confluence_cache",
			CheckpointFile: "upload_checkpoint.json",
		},
		Embedding: Embedding{
			Engine:  EngineOllama,
			Host:    "http://localhost:11434",
			Model:   "nomic-embed-text:v1.5",
			Timeout: duration{60 * time.Second},
		},
		Qdrant: Qdrant{
			URL:       "http://localhost:6333",
			BatchSize: 30,
		},
		Ingest: Ingest{
			ChunkSize:     500,
			ChunkOverlap:  50,
			Workers:       1,
			FlushInterval: 100,
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings that have no workable default.
func (c *Config) Validate() error {
	if c.Confluence.BaseURL == "" {
		return fmt.Errorf("%w: confluence.base_url", ErrMissingSetting)
	}
	if c.Catalog.KnowledgeID == "" {
		return fmt.Errorf("%w: catalog.knowledge_id", ErrMissingSetting)
	}
	if c.Catalog.UserID == "" {
		return fmt.Errorf("%w: catalog.user_id", ErrMissingSetting)
	}
	if c.Embedding.Engine != EngineOllama && c.Embedding.Engine != EngineOpenAI {
		return fmt.Errorf("%w: embedding.engine must be %q or %q",
			ErrInvalidSetting, EngineOllama, EngineOpenAI)
	}
	if err := core.ValidateChunking(c.Ingest.ChunkSize, c.Ingest.ChunkOverlap); err != nil {
		return err
	}
	return nil
}
