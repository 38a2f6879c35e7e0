package catalog

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"log/slog"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-ai/quarry/core"
)

func newMockRegistrar(t *testing.T) (*PostgresRegistrar, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := &PostgresRegistrar{
		db:          sqlx.NewDb(db, "sqlmock"),
		knowledgeID: "kb-1",
		logger:      slog.Default().With("component", "catalog"),
	}
	return r, mock
}

// jsonArg matches a JSON-encoded query argument against a predicate.
type jsonArg func(map[string]any) bool

func (f jsonArg) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		s, ok := v.(string)
		if !ok {
			return false
		}
		raw = []byte(s)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return false
	}
	return f(decoded)
}

func testEntry() *Entry {
	return &Entry{
		FileID:      "file-uuid-1",
		Filename:    "ENG_Page_1.md",
		Content:     "Title: Page\n\nhello world",
		UserID:      "user-1",
		ContentType: "text/markdown",
		Provenance: core.Provenance{
			SpaceKey:    "ENG",
			SpaceName:   "Engineering",
			PageID:      "1",
			PageTitle:   "Page",
			LastUpdated: "2026-08-01",
			URL:         "https://wiki.example.com/pages/viewpage.action?pageId=1",
		},
	}
}

func TestPostgresRegister_InsertsWhenAbsent(t *testing.T) {
	r, mock := newMockRegistrar(t)
	entry := testEntry()

	mock.ExpectQuery("SELECT 1 FROM file WHERE id = $1").
		WithArgs(entry.FileID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec("INSERT INTO file (id,user_id,filename,meta,created_at,updated_at,hash,data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)").
		WithArgs(
			entry.FileID,
			entry.UserID,
			entry.Filename,
			jsonArg(func(meta map[string]any) bool {
				return meta["name"] == entry.Filename &&
					meta["knowledge_id"] == "kb-1" &&
					meta["source"] == "confluence" &&
					meta["space_key"] == "ENG" &&
					meta["page_id"] == "1"
			}),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			core.HashContent(entry.Content),
			"{}",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := r.Register(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegister_ShortCircuitsWhenPresent(t *testing.T) {
	r, mock := newMockRegistrar(t)
	entry := testEntry()

	mock.ExpectQuery("SELECT 1 FROM file WHERE id = $1").
		WithArgs(entry.FileID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	created, err := r.Register(context.Background(), entry)
	require.NoError(t, err)
	assert.False(t, created)
	// No insert was expected; a second statement would fail this.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFlushManifest_RewritesWholesale(t *testing.T) {
	r, mock := newMockRegistrar(t)
	files := []core.FileRecord{
		{ID: "f1", Filename: "a.md", Name: "a.md", CreatedAt: 1},
		{ID: "f2", Filename: "b.md", Name: "b.md", CreatedAt: 2},
	}

	existing := `{"description":"corpus","files":[{"id":"stale"}],"file_ids":["stale"]}`
	mock.ExpectQuery("SELECT data FROM knowledge WHERE id = $1").
		WithArgs("kb-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(existing)))
	mock.ExpectExec("UPDATE knowledge SET data = $1, meta = $2, updated_at = $3 WHERE id = $4").
		WithArgs(
			jsonArg(func(data map[string]any) bool {
				ids, ok := data["file_ids"].([]any)
				if !ok || len(ids) != 2 || ids[0] != "f1" || ids[1] != "f2" {
					return false
				}
				recs, ok := data["files"].([]any)
				// Unrelated keys survive; the stale file list does not.
				return ok && len(recs) == 2 && data["description"] == "corpus"
			}),
			jsonArg(func(meta map[string]any) bool {
				return meta["file_count"] == float64(2)
			}),
			sqlmock.AnyArg(),
			"kb-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.FlushManifest(context.Background(), files))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFlushManifest_UnknownKnowledge(t *testing.T) {
	r, mock := newMockRegistrar(t)

	mock.ExpectQuery("SELECT data FROM knowledge WHERE id = $1").
		WithArgs("kb-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	err := r.FlushManifest(context.Background(), []core.FileRecord{{ID: "f1"}})
	assert.ErrorIs(t, err, ErrKnowledgeNotFound)
}
