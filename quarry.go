// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package quarry wires configuration into the assembled fetch and
// ingestion stacks. The subpackages do the work; this package only
// builds and tears them down.
package quarry

import (
	"log/slog"
	"os"

	"github.com/quarry-ai/quarry/ai"
	"github.com/quarry-ai/quarry/ai/ollama"
	"github.com/quarry-ai/quarry/ai/openai"
	"github.com/quarry-ai/quarry/cache"
	"github.com/quarry-ai/quarry/catalog"
	"github.com/quarry-ai/quarry/checkpoint"
	"github.com/quarry-ai/quarry/chunk"
	"github.com/quarry-ai/quarry/config"
	"github.com/quarry-ai/quarry/confluence"
	"github.com/quarry-ai/quarry/embcache"
	"github.com/quarry-ai/quarry/ingest"
	"github.com/quarry-ai/quarry/vector"
)

// Fetcher bundles the wiki client and cache store for the fetch command.
type Fetcher struct {
	Client *confluence.Client
	Store  *cache.Store
}

// NewFetcher builds the fetch stack from configuration.
func NewFetcher(cfg config.Config) (*Fetcher, error) {
	var opts []confluence.Option
	if cfg.Confluence.Username != "" {
		opts = append(opts, confluence.WithBasicAuth(cfg.Confluence.Username, cfg.Confluence.Password))
	}
	if cfg.Confluence.Throttle > 0 {
		opts = append(opts, confluence.WithThrottle(cfg.Confluence.Throttle))
	}
	client, err := confluence.NewClient(cfg.Confluence.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewStore(cfg.Storage.CacheDir)
	if err != nil {
		return nil, err
	}
	return &Fetcher{Client: client, Store: store}, nil
}

// Ingestor bundles everything the upload command needs, tracking the
// resources that must be released afterwards.
type Ingestor struct {
	Pipeline    *ingest.Pipeline
	Checkpoints *checkpoint.Store
	Vectors     *vector.Upserter

	registrar *catalog.PostgresRegistrar
	embCache  *embcache.Cache
	logger    *slog.Logger
}

// NewIngestor builds the full ingestion stack from configuration.
func NewIngestor(cfg config.Config) (*Ingestor, error) {
	store, err := cache.NewStore(cfg.Storage.CacheDir)
	if err != nil {
		return nil, err
	}
	checkpoints, err := checkpoint.NewStore(cfg.Storage.CheckpointFile)
	if err != nil {
		return nil, err
	}

	aiCfg := ai.NewConfig(
		ai.WithHost(cfg.Embedding.Host),
		ai.WithModel(cfg.Embedding.Model),
		ai.WithTimeout(cfg.Embedding.Timeout.Duration),
	)
	if err := aiCfg.Validate(); err != nil {
		return nil, err
	}
	var embedder ai.Embedder
	switch cfg.Embedding.Engine {
	case config.EngineOpenAI:
		embedder, err = openai.NewEmbedder(aiCfg)
	default:
		embedder, err = ollama.NewEmbedder(aiCfg)
	}
	if err != nil {
		return nil, err
	}

	ing := &Ingestor{
		Checkpoints: checkpoints,
		logger:      slog.Default().With("component", "quarry"),
	}

	if cfg.Storage.EmbeddingCacheDir != "" {
		embCache, err := embcache.Open(cfg.Storage.EmbeddingCacheDir, cfg.Embedding.Model, false)
		if err != nil {
			return nil, err
		}
		ing.embCache = embCache
		embedder = embcache.NewEmbedder(embedder, embCache)
	}

	qdrant, err := vector.NewClient(cfg.Qdrant.URL, vector.WithAPIKey(cfg.Qdrant.APIKey))
	if err != nil {
		ing.Close()
		return nil, err
	}
	var upserterOpts []vector.UpserterOption
	if cfg.Qdrant.FilesCollection != "" && cfg.Qdrant.KnowledgeCollection != "" {
		upserterOpts = append(upserterOpts,
			vector.WithCollections(cfg.Qdrant.FilesCollection, cfg.Qdrant.KnowledgeCollection))
	}
	if cfg.Qdrant.BatchSize > 0 {
		upserterOpts = append(upserterOpts, vector.WithBatchSize(cfg.Qdrant.BatchSize))
	}
	upserter := vector.NewUpserter(qdrant, cfg.Catalog.KnowledgeID, upserterOpts...)
	ing.Vectors = upserter

	registrar, err := catalog.NewPostgresRegistrar(cfg.Catalog.DSN, cfg.Catalog.KnowledgeID)
	if err != nil {
		ing.Close()
		return nil, err
	}
	ing.registrar = registrar

	splitter, err := chunk.New(
		chunk.WithSize(cfg.Ingest.ChunkSize),
		chunk.WithOverlap(cfg.Ingest.ChunkOverlap),
	)
	if err != nil {
		ing.Close()
		return nil, err
	}

	pipeline, err := ingest.NewPipeline(store, checkpoints, embedder, upserter, registrar,
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithFlushInterval(cfg.Ingest.FlushInterval),
		ingest.WithUserID(cfg.Catalog.UserID),
		ingest.WithBaseURL(cfg.Confluence.BaseURL),
		ingest.WithEmbedModel(cfg.Embedding.Model),
		ingest.WithSplitter(splitter),
		ingest.WithProgressWriter(os.Stderr),
	)
	if err != nil {
		ing.Close()
		return nil, err
	}
	ing.Pipeline = pipeline
	return ing, nil
}

// Close releases the ingestor's resources.
func (i *Ingestor) Close() error {
	if i.Pipeline != nil {
		i.Pipeline.Release()
	}
	var firstErr error
	if i.registrar != nil {
		if err := i.registrar.Close(); err != nil {
			i.logger.Error("error closing catalog", "err", err)
			firstErr = err
		}
	}
	if i.embCache != nil {
		if err := i.embCache.Close(); err != nil {
			i.logger.Error("error closing embedding cache", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
