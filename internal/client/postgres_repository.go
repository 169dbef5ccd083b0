package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL client profile repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a profile by client ID.
func (r *PostgresRepository) Get(ctx context.Context, clientID string) (*Profile, error) {
	query := `
		SELECT client_id, business_type, fleet_size, avg_route_distance_km,
		       operating_hours, risk_tolerance, priority_weights,
		       total_routes, average_savings, training_data_points,
		       model_version, model_accuracy, created_at, updated_at
		FROM client_profiles
		WHERE client_id = $1
	`

	row := r.pool.QueryRow(ctx, query, clientID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	return profile, nil
}

// List retrieves all profiles, ordered by client ID.
func (r *PostgresRepository) List(ctx context.Context) ([]*Profile, error) {
	query := `
		SELECT client_id, business_type, fleet_size, avg_route_distance_km,
		       operating_hours, risk_tolerance, priority_weights,
		       total_routes, average_savings, training_data_points,
		       model_version, model_accuracy, created_at, updated_at
		FROM client_profiles
		ORDER BY client_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Save creates or updates a profile.
func (r *PostgresRepository) Save(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO client_profiles (
			client_id, business_type, fleet_size, avg_route_distance_km,
			operating_hours, risk_tolerance, priority_weights,
			total_routes, average_savings, training_data_points,
			model_version, model_accuracy, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (client_id) DO UPDATE SET
			business_type = EXCLUDED.business_type,
			fleet_size = EXCLUDED.fleet_size,
			avg_route_distance_km = EXCLUDED.avg_route_distance_km,
			operating_hours = EXCLUDED.operating_hours,
			risk_tolerance = EXCLUDED.risk_tolerance,
			priority_weights = EXCLUDED.priority_weights,
			total_routes = EXCLUDED.total_routes,
			average_savings = EXCLUDED.average_savings,
			training_data_points = EXCLUDED.training_data_points,
			model_version = EXCLUDED.model_version,
			model_accuracy = EXCLUDED.model_accuracy,
			updated_at = EXCLUDED.updated_at
	`

	weightsJSON, err := json.Marshal(p.Weights)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		p.ClientID,
		p.BusinessType,
		p.FleetSize,
		p.AvgRouteDistanceKm,
		p.OperatingHours,
		string(p.RiskTolerance),
		weightsJSON,
		p.TotalRoutes,
		p.AverageSavings,
		p.TrainingDataPoints,
		p.ModelVersion,
		p.ModelAccuracy,
		p.CreatedAt,
		time.Now(),
	)
	return err
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		profile       Profile
		riskTolerance string
		weightsJSON   []byte
	)

	err := row.Scan(
		&profile.ClientID,
		&profile.BusinessType,
		&profile.FleetSize,
		&profile.AvgRouteDistanceKm,
		&profile.OperatingHours,
		&riskTolerance,
		&weightsJSON,
		&profile.TotalRoutes,
		&profile.AverageSavings,
		&profile.TrainingDataPoints,
		&profile.ModelVersion,
		&profile.ModelAccuracy,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	profile.RiskTolerance = RiskTolerance(riskTolerance)

	if err := json.Unmarshal(weightsJSON, &profile.Weights); err != nil {
		return nil, err
	}

	return &profile, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
