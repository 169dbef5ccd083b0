package feedback

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	pending map[string]*PendingPrediction
	records []*Record // append order, oldest first
}

// NewInMemoryRepository creates a new in-memory feedback repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		pending: make(map[string]*PendingPrediction),
	}
}

// SavePending stores a prediction awaiting its observed outcome.
func (r *InMemoryRepository) SavePending(_ context.Context, p *PendingPrediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *p
	r.pending[p.ResultID] = &cpy
	return nil
}

// TakePending removes and returns the pending prediction for a result.
func (r *InMemoryRepository) TakePending(_ context.Context, resultID string) (*PendingPrediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[resultID]
	if !ok {
		return nil, ErrResultNotFound
	}
	delete(r.pending, resultID)

	cpy := *p
	return &cpy, nil
}

// Append stores an observed outcome record.
func (r *InMemoryRepository) Append(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *record
	r.records = append(r.records, &cpy)
	return nil
}

// Recent retrieves up to limit records, newest first.
func (r *InMemoryRepository) Recent(_ context.Context, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return collectNewest(r.records, limit, func(*Record) bool { return true }), nil
}

// RecentForClient retrieves up to limit records for one client, newest first.
func (r *InMemoryRepository) RecentForClient(_ context.Context, clientID string, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return collectNewest(r.records, limit, func(rec *Record) bool { return rec.ClientID == clientID }), nil
}

// Count returns the total number of observed records.
func (r *InMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

func collectNewest(records []*Record, limit int, match func(*Record) bool) []*Record {
	var out []*Record
	for i := len(records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if match(records[i]) {
			cpy := *records[i]
			out = append(out, &cpy)
		}
	}
	return out
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
