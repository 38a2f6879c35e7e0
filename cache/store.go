// Package cache is the durable on-disk store of previously fetched spaces.
// Each space is one JSON blob named by its key; a present entry
// short-circuits the network fetch on later runs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarry-ai/quarry/core"
)

// ext is the cache file extension.
const ext = ".json"

// fullSuffix marks the legacy "all documents" naming convention.
// Reconcile folds these into the canonical name.
const fullSuffix = "_full"

// Store reads and writes per-space cache files under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, ErrDirRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "cache"),
	}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the canonical cache file path for a space key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+ext)
}

// Load reads a space's cache entry. A missing file is a miss (nil, nil).
// A corrupt or truncated file is also a miss: the file is deleted so
// future runs don't keep failing on it identically, and the caller falls
// through to a re-fetch.
func (s *Store) Load(key string) (*core.Space, error) {
	path := s.Path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry %s: %w", key, err)
	}

	var space core.Space
	if err := json.Unmarshal(raw, &space); err != nil {
		s.logger.Warn("corrupt cache entry, removing", "key", key, "err", err)
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, fmt.Errorf("removing corrupt cache entry %s: %w", key, rmErr)
		}
		return nil, nil
	}
	return &space, nil
}

// Save writes a space's full document list, unconditionally overwriting any
// existing entry. The write is atomic (temp file + rename) so a crash never
// leaves a truncated blob under the canonical name.
func (s *Store) Save(key string, space *core.Space) error {
	if err := core.ValidateSpace(space); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(space, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming cache entry %s: %w", key, err)
	}
	return nil
}

// Keys lists the space keys with canonical cache entries, sorted.
// Legacy *_full entries are excluded; run Reconcile to fold them in.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key := strings.TrimSuffix(name, ext)
		if strings.HasSuffix(key, fullSuffix) || strings.HasPrefix(key, "~") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
