package store

import (
	"context"
	"sync"

	"github.com/optiroute/optiroute/internal/model"
)

// MemoryStore is an in-memory implementation of Store.
// This is intended for testing. Production should use PostgresStore.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*model.Snapshot),
	}
}

// Load retrieves the snapshot for an identifier.
func (s *MemoryStore) Load(_ context.Context, id string) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// Save creates or replaces the snapshot for an identifier.
func (s *MemoryStore) Save(_ context.Context, id string, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[id] = snap
	return nil
}

// Ensure MemoryStore implements Store interface.
var _ Store = (*MemoryStore)(nil)
