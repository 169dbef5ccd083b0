// Package store provides the persistence port for model weight snapshots.
// Snapshots are keyed by an identifier: "global" for the shared model, or
// a client ID for personalized models.
package store

import (
	"context"
	"errors"

	"github.com/optiroute/optiroute/internal/model"
)

// GlobalID keys the shared base model.
const GlobalID = "global"

// Store errors.
var (
	// ErrSnapshotNotFound indicates no snapshot exists for the identifier.
	ErrSnapshotNotFound = errors.New("model snapshot not found")
)

// Store defines the persistence port for model snapshots. The engine
// depends only on this interface, so storage backends can be swapped
// without touching model logic.
type Store interface {
	// Load retrieves the snapshot for an identifier.
	// Returns ErrSnapshotNotFound if none exists.
	Load(ctx context.Context, id string) (*model.Snapshot, error)

	// Save creates or replaces the snapshot for an identifier.
	Save(ctx context.Context, id string, snap *model.Snapshot) error
}
