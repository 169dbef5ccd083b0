package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiroute/optiroute/internal/model"
)

// PostgresStore is a PostgreSQL implementation of Store. Snapshots are
// stored as JSON documents keyed by identifier.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL snapshot store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load retrieves the snapshot for an identifier.
func (s *PostgresStore) Load(ctx context.Context, id string) (*model.Snapshot, error) {
	query := `
		SELECT snapshot
		FROM model_snapshots
		WHERE id = $1
	`

	var snapshotJSON []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&snapshotJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

// Save creates or replaces the snapshot for an identifier.
func (s *PostgresStore) Save(ctx context.Context, id string, snap *model.Snapshot) error {
	query := `
		INSERT INTO model_snapshots (id, snapshot, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at
	`

	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, query, id, snapshotJSON, time.Now())
	return err
}

// Ensure PostgresStore implements Store interface.
var _ Store = (*PostgresStore)(nil)
