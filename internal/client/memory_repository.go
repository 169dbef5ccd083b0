package client

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates a new in-memory client profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

// Get retrieves a profile by client ID.
func (r *InMemoryRepository) Get(_ context.Context, clientID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[clientID]
	if !ok {
		return nil, ErrProfileNotFound
	}

	// Return a copy
	cpy := *p
	return &cpy, nil
}

// List retrieves all profiles, ordered by client ID.
func (r *InMemoryRepository) List(_ context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		cpy := *p
		profiles = append(profiles, &cpy)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ClientID < profiles[j].ClientID
	})

	return profiles, nil
}

// Save creates or updates a profile.
func (r *InMemoryRepository) Save(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *p
	r.profiles[p.ClientID] = &cpy
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
