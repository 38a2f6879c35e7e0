package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Space is one fetchable unit of the remote wiki: a keyed group of pages.
// TotalPages is the upstream count, which may exceed what was sampled locally.
type Space struct {
	Key        string `json:"space_key"`
	Name       string `json:"name"`
	Pages      []Page `json:"sampled_pages"`
	TotalPages int    `json:"total_pages_in_space"`
}

// Page is a single ingestible wiki page. Body holds the raw storage-format
// HTML as fetched; extraction to plain text happens at ingest time.
// ParentID allows ancestor-path reconstruction and is empty for root pages.
type Page struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Updated     string `json:"updated"`
	UpdateCount int    `json:"update_count"`
	ParentID    string `json:"parent_id,omitempty"`
	Level       int    `json:"level"`
	SpaceKey    string `json:"space_key"`
}

// Chunk is a fixed-size window over a page's extracted text.
// Chunks are computed on demand and never persisted standalone.
type Chunk struct {
	DocumentID string
	Index      int
	Start      int
	Text       string
	Hash       string // SHA-256 hex of Text
}

// FileRecord is the catalog's unit of visibility: one row per ingested page.
// ID is a generated UUID, distinct from the page's natural key.
type FileRecord struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // Unix milliseconds
}

// Provenance carries source-system metadata attached to vector payloads and
// catalog rows.
type Provenance struct {
	SpaceKey    string `json:"space_key"`
	SpaceName   string `json:"space_name"`
	PageID      string `json:"page_id"`
	PageTitle   string `json:"page_title"`
	LastUpdated string `json:"last_updated"`
	URL         string `json:"url"`
	EmbedModel  string `json:"embed_model"`
}

// SpaceProgress records per-space ingestion state inside a checkpoint.
// A page id appears in Done only after its vector upsert and catalog insert
// both durably succeeded. Failed tracks pages that errored this run so they
// are retried later; Completed is set only when Failed is empty and every
// page reached Done.
type SpaceProgress struct {
	Done      []string `json:"items"`
	Failed    []string `json:"failed,omitempty"`
	Completed bool     `json:"completed"`
}

// Checkpoint is the durable resumption point for an ingestion run.
type Checkpoint struct {
	Spaces    map[string]*SpaceProgress `json:"processed_units"`
	Files     []FileRecord              `json:"ingested_records"`
	UpdatedAt time.Time                 `json:"timestamp"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Spaces: make(map[string]*SpaceProgress),
	}
}

// Space returns the progress entry for a space key, creating it if absent.
func (c *Checkpoint) Space(key string) *SpaceProgress {
	if c.Spaces == nil {
		c.Spaces = make(map[string]*SpaceProgress)
	}
	p, ok := c.Spaces[key]
	if !ok {
		p = &SpaceProgress{}
		c.Spaces[key] = p
	}
	return p
}

// IsDone reports whether a page id was already fully ingested.
func (p *SpaceProgress) IsDone(pageID string) bool {
	for _, id := range p.Done {
		if id == pageID {
			return true
		}
	}
	return false
}

// MarkDone records a page as fully ingested, removing any stale failure mark.
func (p *SpaceProgress) MarkDone(pageID string) {
	if p.IsDone(pageID) {
		return
	}
	p.Done = append(p.Done, pageID)
	for i, id := range p.Failed {
		if id == pageID {
			p.Failed = append(p.Failed[:i], p.Failed[i+1:]...)
			break
		}
	}
}

// MarkFailed records a page failure for this run.
func (p *SpaceProgress) MarkFailed(pageID string) {
	for _, id := range p.Failed {
		if id == pageID {
			return
		}
	}
	p.Failed = append(p.Failed, pageID)
}

// HashContent returns the SHA-256 hex digest of text content.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// maxFilenameTitleRunes caps the sanitized title portion of a filename.
const maxFilenameTitleRunes = 100

// PageFilename derives the deterministic catalog filename for a page:
// SPACEKEY_Title_pageID.md with the title sanitized to alphanumerics,
// spaces, dashes and underscores, capped at 100 runes.
func PageFilename(spaceKey, title, pageID string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	safe := strings.TrimSpace(b.String())
	runes := []rune(safe)
	if len(runes) > maxFilenameTitleRunes {
		safe = string(runes[:maxFilenameTitleRunes])
	}
	return spaceKey + "_" + safe + "_" + pageID + ".md"
}
