package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-ai/quarry/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quarry.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
[confluence]
base_url = "https://wiki.example.com"
username = "svc-quarry"
password = "secret"

[embedding]
host = "http://embed.internal:11434"
timeout = "90s"

[catalog]
dsn = "postgres://webui@localhost/webui"
knowledge_id = "kb-1"
user_id = "user-1"

[ingest]
chunk_size = 400
chunk_overlap = 40
workers = 4
`

func TestLoad_OverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://wiki.example.com", cfg.Confluence.BaseURL)
	assert.Equal(t, "http://embed.internal:11434", cfg.Embedding.Host)
	assert.Equal(t, 90*time.Second, cfg.Embedding.Timeout.Duration)
	assert.Equal(t, 400, cfg.Ingest.ChunkSize)
	assert.Equal(t, 4, cfg.Ingest.Workers)

	// Untouched settings keep their defaults.
	assert.Equal(t, EngineOllama, cfg.Embedding.Engine)
	assert.Equal(t, "nomic-embed-text:v1.5", cfg.Embedding.Model)
	assert.Equal(t, "http://localhost:6333", cfg.Qdrant.URL)
	assert.Equal(t, 30, cfg.Qdrant.BatchSize)
	assert.Equal(t, 100, cfg.Ingest.FlushInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate_RequiredSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no base url", func(c *Config) { c.Confluence.BaseURL = "" }},
		{"no knowledge id", func(c *Config) { c.Catalog.KnowledgeID = "" }},
		{"no user id", func(c *Config) { c.Catalog.UserID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Confluence.BaseURL = "https://wiki.example.com"
			cfg.Catalog.KnowledgeID = "kb-1"
			cfg.Catalog.UserID = "user-1"
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrMissingSetting)
		})
	}
}

func TestValidate_RejectsUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.Confluence.BaseURL = "https://wiki.example.com"
	cfg.Catalog.KnowledgeID = "kb-1"
	cfg.Catalog.UserID = "user-1"
	cfg.Embedding.Engine = "azure"

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidSetting)
}

func TestValidate_RejectsOverlapNotBelowSize(t *testing.T) {
	cfg := Default()
	cfg.Confluence.BaseURL = "https://wiki.example.com"
	cfg.Catalog.KnowledgeID = "kb-1"
	cfg.Catalog.UserID = "user-1"
	cfg.Ingest.ChunkSize = 50
	cfg.Ingest.ChunkOverlap = 50

	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidChunking)
}
