package client

import "context"

// Repository defines the interface for client profile persistence.
type Repository interface {
	// Get retrieves a profile by client ID.
	// Returns ErrProfileNotFound if no profile exists.
	Get(ctx context.Context, clientID string) (*Profile, error)

	// List retrieves all profiles, ordered by client ID.
	List(ctx context.Context) ([]*Profile, error)

	// Save creates or updates a profile.
	Save(ctx context.Context, profile *Profile) error
}
