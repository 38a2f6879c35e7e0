package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-ai/quarry/ai/mock"
	"github.com/quarry-ai/quarry/catalog"
	"github.com/quarry-ai/quarry/checkpoint"
	"github.com/quarry-ai/quarry/core"
	"github.com/quarry-ai/quarry/vector"
)

// mapSource serves spaces from memory.
type mapSource struct {
	spaces map[string]*core.Space
}

func (m *mapSource) Load(key string) (*core.Space, error) {
	return m.spaces[key], nil
}

func (m *mapSource) Keys() ([]string, error) {
	var keys []string
	for k := range m.spaces {
		keys = append(keys, k)
	}
	return keys, nil
}

// recordingSink collects upserted documents in memory.
type recordingSink struct {
	mu      sync.Mutex
	docs    map[string]*vector.Document // by file id
	ensured int
	// failIDs lists page document ids whose upsert should fail.
	failIDs map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		docs:    make(map[string]*vector.Document),
		failIDs: make(map[string]bool),
	}
}

func (s *recordingSink) EnsureCollections(_ context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = dims
	return nil
}

func (s *recordingSink) UpsertDocument(_ context.Context, doc *vector.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(doc.Chunks) > 0 && s.failIDs[doc.Chunks[0].DocumentID] {
		return errors.New("upsert rejected")
	}
	s.docs[doc.FileID] = doc
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type fixture struct {
	source    *mapSource
	store     *checkpoint.Store
	embedder  *mock.Embedder
	sink      *recordingSink
	registrar *catalog.MemoryRegistrar
}

func newFixture(t *testing.T, spaces ...*core.Space) *fixture {
	t.Helper()
	store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "cp.json"))
	require.NoError(t, err)

	f := &fixture{
		source:    &mapSource{spaces: make(map[string]*core.Space)},
		store:     store,
		embedder:  mock.NewEmbedder(),
		sink:      newRecordingSink(),
		registrar: catalog.NewMemoryRegistrar(),
	}
	for _, s := range spaces {
		f.source.spaces[s.Key] = s
	}
	return f
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	base := []Option{
		WithUserID("user-1"),
		WithBaseURL("https://wiki.example.com"),
		WithEmbedModel("nomic-embed-text:v1.5"),
	}
	p, err := NewPipeline(f.source, f.store, f.embedder, f.sink, f.registrar, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func demoSpace() *core.Space {
	return &core.Space{
		Key:  "DEMO",
		Name: "Demo Space",
		Pages: []core.Page{
			{ID: "1", Title: "Alpha", Body: "<p>hello world</p>", Updated: "2026-08-01", SpaceKey: "DEMO"},
			{ID: "2", Title: "Beta", Body: "", Updated: "2026-08-02", SpaceKey: "DEMO"},
		},
		TotalPages: 2,
	}
}

func TestPipeline_IngestsContentSkipsEmptyPages(t *testing.T) {
	f := newFixture(t, demoSpace())
	p := f.pipeline(t)

	summary, err := p.Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	// One document reached the sink and the catalog.
	assert.Equal(t, 1, f.sink.count())
	assert.Equal(t, 1, f.registrar.Registered())
	assert.Equal(t, mock.DefaultDimensions, f.sink.ensured)

	// A fully successful run leaves no checkpoint behind.
	assert.Empty(t, f.store.Load().Spaces)

	// The upserted document carries the provenance header.
	entry := f.registrar.Entry(fileIDFor("DEMO", "1"))
	require.NotNil(t, entry)
	assert.Contains(t, entry.Content, "Source: Confluence - Demo Space (DEMO)")
	assert.Contains(t, entry.Content, "Title: Alpha")
	assert.Contains(t, entry.Content, "hello world")
}

func TestPipeline_CheckpointClearedAfterFullSuccess(t *testing.T) {
	f := newFixture(t, demoSpace())

	_, err := f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err)
	assert.Empty(t, f.store.Load().Spaces, "successful run clears the checkpoint")

	// A page added to the space after the run must not be shadowed by a
	// stale completed flag.
	f.source.spaces["DEMO"].Pages = append(f.source.spaces["DEMO"].Pages, core.Page{
		ID: "3", Title: "Gamma", Body: "<p>fresh content</p>", SpaceKey: "DEMO",
	})
	f.source.spaces["DEMO"].TotalPages = 3

	summary, err := f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Spaces, "space is reopened after the clear")
	assert.Equal(t, 2, summary.Ingested)
	// The re-run overwrites Alpha in place and adds Gamma.
	assert.Equal(t, 2, f.sink.count())
	assert.Contains(t, f.sink.docs, fileIDFor("DEMO", "3"))
}

func TestPipeline_ResumeSkipsDonePages(t *testing.T) {
	space := &core.Space{Key: "DEMO", Name: "Demo Space"}
	for _, id := range []string{"1", "2", "3"} {
		space.Pages = append(space.Pages, core.Page{
			ID: id, Title: "Page " + id, Body: "<p>content " + id + "</p>", SpaceKey: "DEMO",
		})
	}
	space.TotalPages = 3

	f := newFixture(t, space)
	f.sink.failIDs["3"] = true

	summary, err := f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Ingested)
	assert.Equal(t, 1, summary.Failed)

	// The incomplete run keeps its checkpoint, so the resume only touches
	// the failed page.
	f.sink.failIDs = map[string]bool{}
	summary, err = f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, f.store.Load().Spaces, "finished resume clears the checkpoint")
}

func TestPipeline_FailedPageRecordedAndRetried(t *testing.T) {
	f := newFixture(t, demoSpace())
	f.sink.failIDs["1"] = true

	summary, err := f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err, "page failures do not abort the run")
	assert.Equal(t, 1, summary.Failed)

	cp := f.store.Load()
	assert.False(t, cp.Space("DEMO").IsDone("1"))
	assert.Contains(t, cp.Space("DEMO").Failed, "1")
	assert.False(t, cp.Space("DEMO").Completed)
	assert.False(t, cp.Space("DEMO").IsDone("2"), "empty page never enters the done set")

	// Clearing the fault lets the next run pick the page back up; the now
	// fully successful run discards the checkpoint.
	f.sink.failIDs = map[string]bool{}
	summary, err = f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ingested)
	assert.Empty(t, f.store.Load().Spaces)
}

func TestPipeline_ProbeFailureAbortsRun(t *testing.T) {
	f := newFixture(t, demoSpace())
	boom := errors.New("embedding service down")
	f.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, boom
	}

	_, err := f.pipeline(t).Run(context.Background(), []string{"DEMO"})
	assert.Error(t, err)
	assert.Equal(t, 0, f.sink.count())
}

func TestPipeline_UncachedSpaceSkippedWithWarning(t *testing.T) {
	f := newFixture(t, demoSpace())

	summary, err := f.pipeline(t).Run(context.Background(), []string{"MISSING", "DEMO"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Spaces)
	assert.Equal(t, 1, summary.Ingested)

	// The run did not cover MISSING, so the checkpoint survives.
	cp := f.store.Load()
	assert.True(t, cp.Space("DEMO").Completed)
}

func TestPipeline_ManifestFlushedAtIntervalAndAtEnd(t *testing.T) {
	space := &core.Space{Key: "BIG", Name: "Big"}
	for i := 0; i < 5; i++ {
		space.Pages = append(space.Pages, core.Page{
			ID:       string(rune('1' + i)),
			Title:    "Page",
			Body:     "<p>content</p>",
			SpaceKey: "BIG",
		})
	}
	space.TotalPages = len(space.Pages)

	f := newFixture(t, space)
	p := f.pipeline(t, WithFlushInterval(2))

	_, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	// Two interval flushes (after files 2 and 4) plus the final one.
	assert.Equal(t, 3, f.registrar.Flushes())
	assert.Len(t, f.registrar.Manifest(), 5)
}

func TestPipeline_StableFileIDsAcrossRuns(t *testing.T) {
	a := fileIDFor("DEMO", "1")
	b := fileIDFor("DEMO", "1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, fileIDFor("DEMO", "2"))
	assert.NotEqual(t, a, fileIDFor("OTHER", "1"))
}

func TestPipeline_ConcurrentWorkers(t *testing.T) {
	space := &core.Space{Key: "PAR", Name: "Parallel"}
	for i := 0; i < 20; i++ {
		space.Pages = append(space.Pages, core.Page{
			ID:       string(rune('a' + i)),
			Title:    "Page",
			Body:     "<p>parallel content</p>",
			SpaceKey: "PAR",
		})
	}
	space.TotalPages = len(space.Pages)

	f := newFixture(t, space)
	p := f.pipeline(t, WithWorkers(4))

	summary, err := p.Run(context.Background(), []string{"PAR"})
	require.NoError(t, err)

	assert.Equal(t, 20, summary.Ingested)
	assert.Equal(t, 20, f.sink.count())
	assert.Empty(t, f.store.Load().Spaces)
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	f := newFixture(t)

	_, err := NewPipeline(nil, f.store, f.embedder, f.sink, f.registrar)
	assert.ErrorIs(t, err, ErrSourceRequired)
	_, err = NewPipeline(f.source, nil, f.embedder, f.sink, f.registrar)
	assert.ErrorIs(t, err, ErrCheckpointsRequired)
	_, err = NewPipeline(f.source, f.store, nil, f.sink, f.registrar)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewPipeline(f.source, f.store, f.embedder, nil, f.registrar)
	assert.ErrorIs(t, err, ErrUpserterRequired)
	_, err = NewPipeline(f.source, f.store, f.embedder, f.sink, nil)
	assert.ErrorIs(t, err, ErrRegistrarRequired)
}
