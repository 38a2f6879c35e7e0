package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quarry-ai/quarry/core"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

const (
	fileTable      = "file"
	knowledgeTable = "knowledge"
)

// PostgresRegistrar writes catalog rows into the OpenWebUI Postgres schema.
type PostgresRegistrar struct {
	db          *sqlx.DB
	knowledgeID string
	logger      *slog.Logger
}

var _ Registrar = (*PostgresRegistrar)(nil)

// NewPostgresRegistrar connects to the catalog database. dsn is a
// lib/pq connection string.
func NewPostgresRegistrar(dsn, knowledgeID string) (*PostgresRegistrar, error) {
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	if knowledgeID == "" {
		return nil, ErrKnowledgeIDRequired
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to catalog database: %w", err)
	}
	return &PostgresRegistrar{
		db:          db,
		knowledgeID: knowledgeID,
		logger:      slog.Default().With("component", "catalog"),
	}, nil
}

// Close releases the database connection pool.
func (r *PostgresRegistrar) Close() error {
	return r.db.Close()
}

// fileMeta is the JSON blob stored in file.meta.
type fileMeta struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	KnowledgeID string `json:"knowledge_id"`
	Source      string `json:"source"`
	SpaceKey    string `json:"space_key"`
	PageID      string `json:"page_id"`
	PageTitle   string `json:"page_title"`
	URL         string `json:"confluence_url"`
	LastUpdated string `json:"last_updated"`
}

// Register implements Registrar. The existence check plus insert is not a
// single statement because the row may have been written by an earlier
// partially-completed run; re-registration must stay silent either way.
func (r *PostgresRegistrar) Register(ctx context.Context, entry *Entry) (bool, error) {
	query, args, err := sq.Select("1").From(fileTable).Where(sq.Eq{"id": entry.FileID}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building existence query: %w", err)
	}
	var exists int
	err = r.db.GetContext(ctx, &exists, query, args...)
	switch {
	case err == nil:
		r.logger.Debug("file already registered", "file_id", entry.FileID)
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("checking file registration: %w", err)
	}

	meta, err := json.Marshal(fileMeta{
		Name:        entry.Filename,
		ContentType: entry.ContentType,
		Size:        len(entry.Content),
		KnowledgeID: r.knowledgeID,
		Source:      "confluence",
		SpaceKey:    entry.Provenance.SpaceKey,
		PageID:      entry.Provenance.PageID,
		PageTitle:   entry.Provenance.PageTitle,
		URL:         entry.Provenance.URL,
		LastUpdated: entry.Provenance.LastUpdated,
	})
	if err != nil {
		return false, fmt.Errorf("encoding file meta: %w", err)
	}

	now := time.Now().UnixMilli()
	query, args, err = sq.Insert(fileTable).
		Columns("id", "user_id", "filename", "meta", "created_at", "updated_at", "hash", "data").
		Values(entry.FileID, entry.UserID, entry.Filename, meta, now, now,
			core.HashContent(entry.Content), "{}").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building file insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("inserting file row: %w", err)
	}
	return true, nil
}

// FlushManifest implements Registrar. The manifest write replaces
// knowledge.data's files and file_ids wholesale with the accumulated
// list, so repeated flushes converge rather than append.
func (r *PostgresRegistrar) FlushManifest(ctx context.Context, files []core.FileRecord) error {
	query, args, err := sq.Select("data").From(knowledgeTable).Where(sq.Eq{"id": r.knowledgeID}).ToSql()
	if err != nil {
		return fmt.Errorf("building manifest query: %w", err)
	}

	var raw []byte
	if err := r.db.GetContext(ctx, &raw, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrKnowledgeNotFound, r.knowledgeID)
		}
		return fmt.Errorf("reading knowledge data: %w", err)
	}

	data := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decoding knowledge data: %w", err)
		}
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	data["files"] = files
	data["file_ids"] = ids

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding knowledge data: %w", err)
	}
	meta, err := json.Marshal(map[string]int{"file_count": len(files)})
	if err != nil {
		return fmt.Errorf("encoding knowledge meta: %w", err)
	}

	query, args, err = sq.Update(knowledgeTable).
		Set("data", encoded).
		Set("meta", meta).
		Set("updated_at", time.Now().UnixMilli()).
		Where(sq.Eq{"id": r.knowledgeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building manifest update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating knowledge data: %w", err)
	}

	r.logger.Info("flushed knowledge manifest", "files", len(files))
	return nil
}
