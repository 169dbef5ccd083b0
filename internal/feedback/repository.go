package feedback

import "context"

// Repository defines the interface for feedback persistence.
type Repository interface {
	// SavePending stores a prediction awaiting its observed outcome.
	SavePending(ctx context.Context, p *PendingPrediction) error

	// TakePending removes and returns the pending prediction for a result.
	// Returns ErrResultNotFound if the result is unknown or already observed.
	TakePending(ctx context.Context, resultID string) (*PendingPrediction, error)

	// Append stores an observed outcome record.
	Append(ctx context.Context, record *Record) error

	// Recent retrieves up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// RecentForClient retrieves up to limit records for one client, newest first.
	RecentForClient(ctx context.Context, clientID string, limit int) ([]*Record, error)

	// Count returns the total number of observed records.
	Count(ctx context.Context) (int, error)
}
