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

// Package ingest orchestrates the full pipeline: cached space content in,
// chunked and embedded vectors plus catalog rows out, with a checkpoint
// written after every page so interrupted runs resume cleanly.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/quarry-ai/quarry/ai"
	"github.com/quarry-ai/quarry/catalog"
	"github.com/quarry-ai/quarry/chunk"
	"github.com/quarry-ai/quarry/core"
	"github.com/quarry-ai/quarry/extract"
	"github.com/quarry-ai/quarry/vector"
)

// DefaultFlushInterval is how many newly registered files accumulate
// before the knowledge manifest is rewritten mid-run. The manifest is
// always rewritten once more at the end of the run.
const DefaultFlushInterval = 100

const contentType = "text/markdown"

// fileNamespace seeds deterministic file IDs so a page always maps to
// the same catalog row and vector tenant across runs.
var fileNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("quarry://files"))

// SpaceSource yields cached space content. *cache.Store satisfies it.
type SpaceSource interface {
	Load(key string) (*core.Space, error)
	Keys() ([]string, error)
}

// CheckpointStore persists run progress. *checkpoint.Store satisfies it.
type CheckpointStore interface {
	Load() *core.Checkpoint
	Save(cp *core.Checkpoint) error
	Clear() error
}

// VectorSink receives embedded documents. *vector.Upserter satisfies it.
type VectorSink interface {
	EnsureCollections(ctx context.Context, dimensions int) error
	UpsertDocument(ctx context.Context, doc *vector.Document) error
}

// Summary is the outcome of one ingestion run.
type Summary struct {
	Spaces     int
	Ingested   int
	Skipped    int
	Failed     int
	Registered int
	Elapsed    time.Duration
}

// Pipeline drives ingestion across spaces.
type Pipeline struct {
	source      SpaceSource
	checkpoints CheckpointStore
	embedder    ai.Embedder
	sink        VectorSink
	registrar   catalog.Registrar
	splitter    *chunk.Splitter

	pool           *ants.Pool
	flushInterval  int
	userID         string
	baseURL        string
	embedModel     string
	progressWriter io.Writer
	logger         *slog.Logger

	// mu guards the checkpoint and manifest bookkeeping when pool
	// workers finish pages concurrently.
	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithWorkers sets the number of concurrent page workers. Default is 1;
// pages within a space are then processed strictly in order.
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithFlushInterval sets how many new registrations accumulate before a
// mid-run manifest flush.
func WithFlushInterval(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.flushInterval = n
		return nil
	}
}

// WithUserID sets the catalog owner of ingested files.
func WithUserID(id string) Option {
	return func(p *Pipeline) error {
		p.userID = id
		return nil
	}
}

// WithBaseURL sets the wiki base URL used for provenance links.
func WithBaseURL(u string) Option {
	return func(p *Pipeline) error {
		p.baseURL = u
		return nil
	}
}

// WithEmbedModel records the embedding model name in provenance payloads.
func WithEmbedModel(model string) Option {
	return func(p *Pipeline) error {
		p.embedModel = model
		return nil
	}
}

// WithSplitter overrides the default chunker.
func WithSplitter(s *chunk.Splitter) Option {
	return func(p *Pipeline) error {
		p.splitter = s
		return nil
	}
}

// WithProgressWriter sets where per-page progress lines go.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progressWriter = w
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline assembles a pipeline from its collaborators.
func NewPipeline(
	source SpaceSource,
	checkpoints CheckpointStore,
	embedder ai.Embedder,
	sink VectorSink,
	registrar catalog.Registrar,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointsRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if sink == nil {
		return nil, ErrUpserterRequired
	}
	if registrar == nil {
		return nil, ErrRegistrarRequired
	}

	splitter, err := chunk.New()
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:         source,
		checkpoints:    checkpoints,
		embedder:       embedder,
		sink:           sink,
		registrar:      registrar,
		splitter:       splitter,
		pool:           pool,
		flushInterval:  DefaultFlushInterval,
		progressWriter: io.Discard,
		logger:         slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Run ingests the given space keys. A nil or empty keys slice means
// every space the source knows about. Page-level failures are recorded
// and skipped over; Run only errors when the run as a whole cannot
// proceed, such as the embedding service being unreachable.
func (p *Pipeline) Run(ctx context.Context, keys []string) (*Summary, error) {
	start := time.Now()

	if len(keys) == 0 {
		var err error
		keys, err = p.source.Keys()
		if err != nil {
			return nil, fmt.Errorf("listing spaces: %w", err)
		}
	}

	// One probe up front learns the vector width and fails fast when the
	// embedding service is down.
	dims, err := ai.ProbeDimensions(ctx, p.embedder)
	if err != nil {
		return nil, err
	}
	if err := p.sink.EnsureCollections(ctx, dims); err != nil {
		return nil, fmt.Errorf("preparing collections: %w", err)
	}

	cp := p.checkpoints.Load()
	summary := &Summary{}
	uncached := 0

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if cp.Space(key).Completed {
			p.logger.Info("space already completed", "space", key)
			continue
		}

		space, err := p.source.Load(key)
		if err != nil {
			return summary, fmt.Errorf("loading space %s: %w", key, err)
		}
		if space == nil {
			p.logger.Warn("space not cached, skipping; run fetch first", "space", key)
			uncached++
			continue
		}

		summary.Spaces++
		p.runSpace(ctx, cp, space, summary)
	}

	if err := p.flushManifest(ctx, cp); err != nil {
		p.logger.Warn("final manifest flush failed", "err", err)
	}

	// A run that carried every requested space to completion leaves no
	// progress worth keeping. Clearing the checkpoint here means the next
	// invocation starts clean, so pages added to a space later are picked
	// up instead of being shadowed by a stale completed flag.
	if summary.Failed == 0 && uncached == 0 && allCompleted(cp, keys) {
		if err := p.checkpoints.Clear(); err != nil {
			p.logger.Warn("checkpoint clear failed", "err", err)
		} else {
			p.logger.Info("run fully successful, checkpoint cleared")
		}
	} else if err := p.checkpoints.Save(cp); err != nil {
		p.logger.Warn("final checkpoint save failed", "err", err)
	}

	summary.Elapsed = time.Since(start)
	p.logger.Info("ingestion run finished",
		"spaces", summary.Spaces,
		"ingested", summary.Ingested,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// runSpace processes every pending page of one space and, when nothing
// is left pending or failed, marks the space completed.
func (p *Pipeline) runSpace(ctx context.Context, cp *core.Checkpoint, space *core.Space, summary *Summary) {
	lookup := make(map[string]*core.Page, len(space.Pages))
	for i := range space.Pages {
		lookup[space.Pages[i].ID] = &space.Pages[i]
	}

	progress := cp.Space(space.Key)
	tracker := NewTracker(p.progressWriter, len(space.Pages), 10)
	tracker.Start()

	var (
		wg      sync.WaitGroup
		spaceMu sync.Mutex
		failed  int
		empty   int
	)

	for i := range space.Pages {
		page := &space.Pages[i]

		p.mu.Lock()
		done := progress.IsDone(page.ID)
		p.mu.Unlock()
		if done {
			spaceMu.Lock()
			summary.Skipped++
			spaceMu.Unlock()
			tracker.PageDone()
			continue
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			status := p.ingestPage(ctx, cp, space, page, lookup)

			spaceMu.Lock()
			switch status {
			case pageIngested:
				summary.Ingested++
			case pageEmpty:
				summary.Skipped++
				empty++
			case pageFailed:
				summary.Failed++
				failed++
			}
			spaceMu.Unlock()

			if status == pageFailed {
				tracker.PageFailed()
			} else {
				tracker.PageDone()
			}
		})
		if submitErr != nil {
			wg.Done()
			p.logger.Error("submitting page to pool", "page", page.ID, "err", submitErr)
			spaceMu.Lock()
			summary.Failed++
			failed++
			spaceMu.Unlock()
		}
	}
	wg.Wait()
	tracker.Finish()

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() == nil && failed == 0 && len(progress.Failed) == 0 &&
		len(progress.Done)+empty >= len(space.Pages) {
		progress.Completed = true
	}
	if err := p.checkpoints.Save(cp); err != nil {
		p.logger.Warn("checkpoint save failed", "space", space.Key, "err", err)
	}
}

type pageStatus int

const (
	pageIngested pageStatus = iota
	pageEmpty
	pageFailed
)

// ingestPage carries one page end to end: extract, chunk, embed, upsert,
// register, checkpoint. Pages with no extractable text are skipped
// without touching the checkpoint; they are not failures, and a later
// edit that adds content makes them eligible again.
func (p *Pipeline) ingestPage(ctx context.Context, cp *core.Checkpoint, space *core.Space, page *core.Page, lookup map[string]*core.Page) pageStatus {
	text := extract.Text(page.Body)
	if text == "" {
		p.logger.Debug("page has no content, skipping", "space", space.Key, "page", page.ID)
		return pageEmpty
	}

	pageURL := extract.PageURL(p.baseURL, page.ID)
	path := extract.AncestorPath(page, lookup)
	content := extract.Header(page, space.Name, path, pageURL) + text

	chunks := p.splitter.Split(page.ID, content)
	if len(chunks) == 0 {
		return pageEmpty
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.fail(cp, space.Key, page.ID, "embedding", err)
		return pageFailed
	}

	fileID := fileIDFor(space.Key, page.ID)
	filename := core.PageFilename(space.Key, page.Title, page.ID)
	prov := core.Provenance{
		SpaceKey:    space.Key,
		SpaceName:   space.Name,
		PageID:      page.ID,
		PageTitle:   page.Title,
		LastUpdated: page.Updated,
		URL:         pageURL,
		EmbedModel:  p.embedModel,
	}

	doc := &vector.Document{
		FileID:     fileID,
		Filename:   filename,
		UserID:     p.userID,
		Chunks:     chunks,
		Vectors:    vectors,
		Provenance: prov,
	}
	if err := p.sink.UpsertDocument(ctx, doc); err != nil {
		p.fail(cp, space.Key, page.ID, "upserting vectors", err)
		return pageFailed
	}

	if _, err := p.registrar.Register(ctx, &catalog.Entry{
		FileID:      fileID,
		Filename:    filename,
		Content:     content,
		UserID:      p.userID,
		ContentType: contentType,
		Provenance:  prov,
	}); err != nil {
		p.fail(cp, space.Key, page.ID, "registering file", err)
		return pageFailed
	}

	p.complete(ctx, cp, space.Key, page.ID, fileID, filename)
	return pageIngested
}

// fail records a page failure in the checkpoint and logs it.
func (p *Pipeline) fail(cp *core.Checkpoint, spaceKey, pageID, stage string, err error) {
	p.logger.Error("page ingestion failed",
		"space", spaceKey, "page", pageID, "stage", stage, "err", err)
	p.mu.Lock()
	defer p.mu.Unlock()
	cp.Space(spaceKey).MarkFailed(pageID)
	if saveErr := p.checkpoints.Save(cp); saveErr != nil {
		p.logger.Warn("checkpoint save failed", "err", saveErr)
	}
}

// complete marks a page done, records its file, and persists the
// checkpoint. Every flushInterval new files the manifest is rewritten so
// long runs surface results before they finish.
func (p *Pipeline) complete(ctx context.Context, cp *core.Checkpoint, spaceKey, pageID, fileID, filename string) {
	p.mu.Lock()
	cp.Space(spaceKey).MarkDone(pageID)

	known := false
	for _, f := range cp.Files {
		if f.ID == fileID {
			known = true
			break
		}
	}
	if !known {
		cp.Files = append(cp.Files, core.FileRecord{
			ID:        fileID,
			Filename:  filename,
			Name:      filename,
			CreatedAt: time.Now().UnixMilli(),
		})
	}
	needFlush := !known && len(cp.Files)%p.flushInterval == 0

	if err := p.checkpoints.Save(cp); err != nil {
		p.logger.Warn("checkpoint save failed", "err", err)
	}
	p.mu.Unlock()

	if needFlush {
		if err := p.flushManifest(ctx, cp); err != nil {
			p.logger.Warn("manifest flush failed", "err", err)
		}
	}
}

// flushManifest rewrites the knowledge manifest from the checkpoint's
// accumulated file list.
func (p *Pipeline) flushManifest(ctx context.Context, cp *core.Checkpoint) error {
	p.mu.Lock()
	files := append([]core.FileRecord(nil), cp.Files...)
	p.mu.Unlock()
	if len(files) == 0 {
		return nil
	}
	return p.registrar.FlushManifest(ctx, files)
}

// allCompleted reports whether every requested space finished. Spaces the
// checkpoint never saw count as unfinished.
func allCompleted(cp *core.Checkpoint, keys []string) bool {
	for _, key := range keys {
		progress, ok := cp.Spaces[key]
		if !ok || !progress.Completed {
			return false
		}
	}
	return true
}

// fileIDFor derives the stable catalog file id for a page.
func fileIDFor(spaceKey, pageID string) string {
	return uuid.NewSHA1(fileNamespace, []byte(spaceKey+"/"+pageID)).String()
}
