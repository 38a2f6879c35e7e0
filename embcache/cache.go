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

// Package embcache caches chunk embeddings in BadgerDB, keyed by the
// SHA-256 of the chunk text plus the model name. Re-running ingestion
// over unchanged content then skips the embedding service entirely.
package embcache

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Cache wraps a BadgerDB instance storing content-hash keyed vectors.
type Cache struct {
	db     *badger.DB
	model  string
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens (or creates) an embedding cache at filePath. With inMemory
// true nothing is persisted, which suits tests. Vectors are scoped to
// model so switching models never serves stale dimensions.
func Open(filePath, model string, inMemory bool) (*Cache, error) {
	if model == "" {
		return nil, ErrModelRequired
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if filePath == "" {
			return nil, ErrPathRequired
		}
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0o755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Cache{
		db:     db,
		model:  model,
		logger: slog.Default().With("component", "embcache"),
	}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// withTx executes fn within a BadgerDB transaction. The transaction is
// discarded automatically when fn returns an error.
func (c *Cache) withTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := c.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// Get looks up the cached vector for a content hash. A miss returns
// (nil, nil). An undecodable entry is treated as a miss.
func (c *Cache) Get(hash string) ([]float32, error) {
	var vector []float32
	err := c.withTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorKey(c.model, hash))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := unmarshalVector(val)
			if err != nil {
				c.logger.Warn("undecodable cached vector, treating as miss", "hash", hash, "err", err)
				return nil
			}
			vector = v
			return nil
		})
	}, false)
	if err != nil {
		return nil, fmt.Errorf("reading cached embedding: %w", err)
	}
	return vector, nil
}

// Put stores a vector under a content hash.
func (c *Cache) Put(hash string, vector []float32) error {
	err := c.withTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorKey(c.model, hash), marshalVector(vector)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("storing cached embedding: %w", err)
	}
	return nil
}
