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

// Package checkpoint persists ingestion progress so interrupted runs
// resume where they stopped instead of starting over.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/quarry-ai/quarry/core"
)

// Store reads and writes a single checkpoint file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a Store persisting to path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	return &Store{
		path:   path,
		logger: slog.Default().With("component", "checkpoint"),
	}, nil
}

// Path returns the checkpoint file location.
func (s *Store) Path() string { return s.path }

// Load reads the checkpoint. A missing or unreadable file yields a fresh
// empty checkpoint: resuming conservatively from nothing is always safe
// because every upstream write is idempotent.
func (s *Store) Load() *core.Checkpoint {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("unreadable checkpoint, starting fresh", "path", s.path, "err", err)
		}
		return core.NewCheckpoint()
	}

	var cp core.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		s.logger.Warn("corrupt checkpoint, starting fresh", "path", s.path, "err", err)
		return core.NewCheckpoint()
	}
	if cp.Spaces == nil {
		cp.Spaces = make(map[string]*core.SpaceProgress)
	}
	return &cp
}

// Save stamps the checkpoint with the current time and writes it
// atomically (temp file + rename).
func (s *Store) Save(cp *core.Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file. Missing files are not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}
	return nil
}
