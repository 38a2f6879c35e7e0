package catalog

import (
	"context"
	"sync"

	"github.com/quarry-ai/quarry/core"
)

// MemoryRegistrar is an in-memory Registrar for tests and dry runs.
type MemoryRegistrar struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	manifest []core.FileRecord
	flushes  int

	// RegisterErr and FlushErr, when set, are returned by the
	// corresponding methods to simulate catalog failures.
	RegisterErr error
	FlushErr    error
}

var _ Registrar = (*MemoryRegistrar)(nil)

// NewMemoryRegistrar creates an empty in-memory registrar.
func NewMemoryRegistrar() *MemoryRegistrar {
	return &MemoryRegistrar{entries: make(map[string]*Entry)}
}

// Register implements Registrar.
func (m *MemoryRegistrar) Register(_ context.Context, entry *Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RegisterErr != nil {
		return false, m.RegisterErr
	}
	if _, ok := m.entries[entry.FileID]; ok {
		return false, nil
	}
	m.entries[entry.FileID] = entry
	return true, nil
}

// FlushManifest implements Registrar.
func (m *MemoryRegistrar) FlushManifest(_ context.Context, files []core.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FlushErr != nil {
		return m.FlushErr
	}
	m.manifest = append([]core.FileRecord(nil), files...)
	m.flushes++
	return nil
}

// Entry returns the registered entry for a file id, or nil.
func (m *MemoryRegistrar) Entry(fileID string) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[fileID]
}

// Registered returns the number of registered files.
func (m *MemoryRegistrar) Registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Manifest returns the most recently flushed file list.
func (m *MemoryRegistrar) Manifest() []core.FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.FileRecord(nil), m.manifest...)
}

// Flushes returns how many times the manifest was flushed.
func (m *MemoryRegistrar) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}
