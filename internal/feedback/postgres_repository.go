package feedback

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL feedback repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SavePending stores a prediction awaiting its observed outcome.
func (r *PostgresRepository) SavePending(ctx context.Context, p *PendingPrediction) error {
	query := `
		INSERT INTO pending_predictions (result_id, client_id, predicted, features, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (result_id) DO NOTHING
	`

	featuresJSON, err := json.Marshal(p.Features)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query, p.ResultID, p.ClientID, p.Predicted, featuresJSON, p.CreatedAt)
	return err
}

// TakePending removes and returns the pending prediction for a result.
func (r *PostgresRepository) TakePending(ctx context.Context, resultID string) (*PendingPrediction, error) {
	query := `
		DELETE FROM pending_predictions
		WHERE result_id = $1
		RETURNING result_id, client_id, predicted, features, created_at
	`

	var (
		p            PendingPrediction
		featuresJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, resultID).Scan(
		&p.ResultID,
		&p.ClientID,
		&p.Predicted,
		&featuresJSON,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(featuresJSON, &p.Features); err != nil {
		return nil, err
	}

	return &p, nil
}

// Append stores an observed outcome record.
func (r *PostgresRepository) Append(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO feedback_records (result_id, client_id, predicted, actual, abs_error, features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	featuresJSON, err := json.Marshal(record.Features)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		record.ResultID,
		record.ClientID,
		record.Predicted,
		record.Actual,
		record.AbsError,
		featuresJSON,
		record.CreatedAt,
	)
	return err
}

// Recent retrieves up to limit records, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT result_id, client_id, predicted, actual, abs_error, features, created_at
		FROM feedback_records
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// RecentForClient retrieves up to limit records for one client, newest first.
func (r *PostgresRepository) RecentForClient(ctx context.Context, clientID string, limit int) ([]*Record, error) {
	query := `
		SELECT result_id, client_id, predicted, actual, abs_error, features, created_at
		FROM feedback_records
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the total number of observed records.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback_records`).Scan(&count)
	return count, err
}

func scanRecords(rows pgx.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var (
			record       Record
			featuresJSON []byte
		)

		err := rows.Scan(
			&record.ResultID,
			&record.ClientID,
			&record.Predicted,
			&record.Actual,
			&record.AbsError,
			&featuresJSON,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(featuresJSON, &record.Features); err != nil {
			return nil, err
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
