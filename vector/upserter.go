package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quarry-ai/quarry/core"
)

// Collection names used by the OpenWebUI retrieval layer. Every document
// is written to both: the files collection scopes points to a single
// uploaded file, the knowledge collection scopes them to the shared
// knowledge base.
const (
	DefaultFilesCollection     = "open-webui_files"
	DefaultKnowledgeCollection = "open-webui_knowledge"
)

const (
	// DefaultBatchSize caps points per upsert request.
	DefaultBatchSize = 30
	// DefaultBatchDelay is the pause between consecutive batches.
	DefaultBatchDelay = 100 * time.Millisecond
)

// pointNamespace seeds deterministic point IDs. The same (file, sink,
// chunk) triple always maps to the same UUID, so a retried document
// overwrites its earlier points instead of duplicating them.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("quarry://points"))

// Document is one page's worth of chunk vectors ready for upsert.
type Document struct {
	FileID     string
	Filename   string
	UserID     string
	Chunks     []core.Chunk
	Vectors    [][]float32
	Provenance core.Provenance
}

// Upserter writes documents into the two Qdrant collections.
type Upserter struct {
	client              *Client
	filesCollection     string
	knowledgeCollection string
	knowledgeID         string
	batchSize           int
	batchDelay          time.Duration
	logger              *slog.Logger
}

// UpserterOption configures an Upserter.
type UpserterOption func(*Upserter)

// WithCollections overrides the destination collection names.
func WithCollections(files, knowledge string) UpserterOption {
	return func(u *Upserter) {
		u.filesCollection = files
		u.knowledgeCollection = knowledge
	}
}

// WithBatchSize caps points per upsert request.
func WithBatchSize(n int) UpserterOption {
	return func(u *Upserter) { u.batchSize = n }
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(d time.Duration) UpserterOption {
	return func(u *Upserter) { u.batchDelay = d }
}

// NewUpserter creates an Upserter targeting the given knowledge base id.
func NewUpserter(client *Client, knowledgeID string, opts ...UpserterOption) *Upserter {
	u := &Upserter{
		client:              client,
		filesCollection:     DefaultFilesCollection,
		knowledgeCollection: DefaultKnowledgeCollection,
		knowledgeID:         knowledgeID,
		batchSize:           DefaultBatchSize,
		batchDelay:          DefaultBatchDelay,
		logger:              slog.Default().With("component", "upserter"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// EnsureCollections creates both destination collections when absent.
func (u *Upserter) EnsureCollections(ctx context.Context, dimensions int) error {
	if err := u.client.EnsureCollection(ctx, u.filesCollection, dimensions); err != nil {
		return err
	}
	return u.client.EnsureCollection(ctx, u.knowledgeCollection, dimensions)
}

// CollectionSizes reports the exact point count of both destination
// collections, for end-of-run reporting.
func (u *Upserter) CollectionSizes(ctx context.Context) (map[string]int, error) {
	sizes := make(map[string]int, 2)
	for _, name := range []string{u.filesCollection, u.knowledgeCollection} {
		count, err := u.client.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		sizes[name] = count
	}
	return sizes, nil
}

// UpsertDocument writes one document's chunks to both collections.
// An error on any batch aborts the whole document; because point IDs are
// deterministic, the retry simply overwrites whatever landed.
func (u *Upserter) UpsertDocument(ctx context.Context, doc *Document) error {
	if len(doc.Chunks) != len(doc.Vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors",
			ErrVectorCountMismatch, len(doc.Chunks), len(doc.Vectors))
	}

	filesPoints := make([]Point, 0, len(doc.Chunks))
	knowledgePoints := make([]Point, 0, len(doc.Chunks))

	for i, chunk := range doc.Chunks {
		metadata := u.chunkMetadata(doc, chunk)
		filesPoints = append(filesPoints, Point{
			ID:     pointID(doc.FileID, u.filesCollection, chunk.Index),
			Vector: doc.Vectors[i],
			Payload: map[string]any{
				"text":      chunk.Text,
				"metadata":  metadata,
				"tenant_id": "file-" + doc.FileID,
			},
		})
		knowledgePoints = append(knowledgePoints, Point{
			ID:     pointID(doc.FileID, u.knowledgeCollection, chunk.Index),
			Vector: doc.Vectors[i],
			Payload: map[string]any{
				"text":      chunk.Text,
				"metadata":  metadata,
				"tenant_id": u.knowledgeID,
			},
		})
	}

	for start := 0; start < len(filesPoints); start += u.batchSize {
		end := start + u.batchSize
		if end > len(filesPoints) {
			end = len(filesPoints)
		}
		if err := u.client.Upsert(ctx, u.filesCollection, filesPoints[start:end]); err != nil {
			return fmt.Errorf("upserting files batch: %w", err)
		}
		if err := u.client.Upsert(ctx, u.knowledgeCollection, knowledgePoints[start:end]); err != nil {
			return fmt.Errorf("upserting knowledge batch: %w", err)
		}
		if end < len(filesPoints) && u.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(u.batchDelay):
			}
		}
	}

	u.logger.Debug("upserted document",
		"file_id", doc.FileID, "chunks", len(doc.Chunks))
	return nil
}

func (u *Upserter) chunkMetadata(doc *Document, chunk core.Chunk) map[string]any {
	engineConfig, _ := json.Marshal(map[string]string{
		"engine": "ollama",
		"model":  doc.Provenance.EmbedModel,
	})
	return map[string]any{
		"source":            doc.Filename,
		"name":              doc.Filename,
		"created_by":        doc.UserID,
		"file_id":           doc.FileID,
		"start_index":       chunk.Start,
		"hash":              chunk.Hash,
		"embedding_config":  string(engineConfig),
		"space_key":         doc.Provenance.SpaceKey,
		"page_id":           doc.Provenance.PageID,
		"page_title":        doc.Provenance.PageTitle,
		"confluence_source": true,
	}
}

// pointID derives the stable UUID for a chunk's point in a collection.
func pointID(fileID, collection string, chunkIndex int) string {
	name := fmt.Sprintf("%s/%s/%d", fileID, collection, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}
