package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiroute/optiroute/internal/model"
)

// ManagerConfig holds configuration for the client profile manager.
type ManagerConfig struct {
	// Repository persists client profiles.
	Repository Repository

	// Factory builds per-client model instances.
	Factory *model.Factory

	// Architecture is the shared network architecture. Zero value uses
	// the default architecture.
	Architecture model.ArchitectureSpec

	// Logger for manager operations.
	Logger zerolog.Logger
}

// Manager owns client profiles and their per-client model instances.
// All profile mutations for a given client are serialized through a
// per-client lock; model reads during inference are lock-free on the
// live network reference.
type Manager struct {
	repo    Repository
	factory *model.Factory
	arch    model.ArchitectureSpec
	logger  zerolog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	models map[string]*model.Network
}

// NewManager creates a new client profile manager.
func NewManager(cfg ManagerConfig) *Manager {
	arch := cfg.Architecture
	if arch.Inputs == 0 {
		arch = model.DefaultArchitecture()
	}

	factory := cfg.Factory
	if factory == nil {
		factory = model.NewFactory(time.Now().UnixNano())
	}

	return &Manager{
		repo:    cfg.Repository,
		factory: factory,
		arch:    arch,
		logger:  cfg.Logger,
		locks:   make(map[string]*sync.Mutex),
		models:  make(map[string]*model.Network),
	}
}

// lockFor returns the mutex serializing mutations for one client.
func (m *Manager) lockFor(clientID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[clientID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[clientID] = l
	}
	return l
}

// WithLock runs fn while holding the client's mutation lock.
func (m *Manager) WithLock(clientID string, fn func() error) error {
	l := m.lockFor(clientID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Get retrieves a profile without creating one.
func (m *Manager) Get(ctx context.Context, clientID string) (*Profile, error) {
	return m.repo.Get(ctx, clientID)
}

// List retrieves all known profiles.
func (m *Manager) List(ctx context.Context) ([]*Profile, error) {
	return m.repo.List(ctx)
}

// GetOrCreate returns the profile for clientID, creating one with default
// metadata on first sight. The created flag reports whether a new profile
// was provisioned by this call.
func (m *Manager) GetOrCreate(ctx context.Context, clientID string, meta *BusinessMetadata) (*Profile, bool, error) {
	l := m.lockFor(clientID)
	l.Lock()
	defer l.Unlock()

	profile, err := m.repo.Get(ctx, clientID)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, false, err
	}

	profile = m.buildProfile(clientID, meta)
	if err := m.repo.Save(ctx, profile); err != nil {
		return nil, false, fmt.Errorf("save new profile: %w", err)
	}

	m.logger.Info().
		Str("client_id", clientID).
		Str("risk_tolerance", string(profile.RiskTolerance)).
		Msg("client profile created")

	return profile, true, nil
}

// CreateOrUpdate provisions or updates a profile from business metadata.
// Rolling statistics on an existing profile are preserved.
func (m *Manager) CreateOrUpdate(ctx context.Context, clientID string, meta BusinessMetadata) (*Profile, error) {
	if meta.RiskTolerance != "" && !meta.RiskTolerance.Valid() {
		return nil, fmt.Errorf("unknown risk tolerance %q", meta.RiskTolerance)
	}

	l := m.lockFor(clientID)
	l.Lock()
	defer l.Unlock()

	profile, err := m.repo.Get(ctx, clientID)
	if errors.Is(err, ErrProfileNotFound) {
		profile = m.buildProfile(clientID, &meta)
	} else if err != nil {
		return nil, err
	} else {
		applyMetadata(profile, &meta)
		profile.UpdatedAt = time.Now()
	}

	if err := m.repo.Save(ctx, profile); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("client_id", clientID).
		Str("business_type", profile.BusinessType).
		Int("fleet_size", profile.FleetSize).
		Msg("client profile provisioned")

	return profile, nil
}

// RecordOptimization updates the rolling stats after a completed
// optimization call.
func (m *Manager) RecordOptimization(ctx context.Context, clientID string, factor float64) error {
	return m.WithLock(clientID, func() error {
		profile, err := m.repo.Get(ctx, clientID)
		if err != nil {
			return err
		}

		profile.TotalRoutes++
		n := float64(profile.TotalRoutes)
		profile.AverageSavings += (factor - profile.AverageSavings) / n
		profile.UpdatedAt = time.Now()

		return m.repo.Save(ctx, profile)
	})
}

// RecordTraining bumps the training counters after a fine-tune pass and
// records the accuracy the model reached.
func (m *Manager) RecordTraining(ctx context.Context, clientID string, records int, accuracy float64) error {
	return m.WithLock(clientID, func() error {
		profile, err := m.repo.Get(ctx, clientID)
		if err != nil {
			return err
		}

		profile.TrainingDataPoints += records
		profile.ModelVersion++
		if accuracy > 0 {
			profile.ModelAccuracy = accuracy
		}
		profile.UpdatedAt = time.Now()

		return m.repo.Save(ctx, profile)
	})
}

// Model returns the client's live model, if one has been materialized.
func (m *Manager) Model(clientID string) (*model.Network, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	net, ok := m.models[clientID]
	return net, ok
}

// EnsureModel returns the client's model, materializing it on first use.
// When a seed snapshot with a matching architecture is supplied, the new
// model starts from those weights; otherwise it is freshly initialized by
// the shared factory, so every client gets the same architecture.
func (m *Manager) EnsureModel(clientID string, seed *model.Snapshot) (*model.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if net, ok := m.models[clientID]; ok {
		return net, nil
	}

	var (
		net *model.Network
		err error
	)
	if seed != nil && seed.Spec.SameShape(m.arch) {
		net, err = model.FromSnapshot(seed)
	} else {
		net, err = m.factory.Create(m.arch)
	}
	if err != nil {
		return nil, fmt.Errorf("materialize client model: %w", err)
	}

	m.models[clientID] = net

	m.logger.Debug().
		Str("client_id", clientID).
		Bool("seeded", seed != nil).
		Msg("client model materialized")

	return net, nil
}

// SwapModel atomically replaces a client's live model, e.g. after a batch
// retrain built a fresh network.
func (m *Manager) SwapModel(clientID string, net *model.Network) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[clientID] = net
}

// buildProfile constructs a profile from metadata, filling defaults.
func (m *Manager) buildProfile(clientID string, meta *BusinessMetadata) *Profile {
	now := time.Now()
	profile := &Profile{
		ClientID:      clientID,
		RiskTolerance: RiskMedium,
		Weights:       DefaultPriorityWeights(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if meta != nil {
		applyMetadata(profile, meta)
	}
	return profile
}

func applyMetadata(p *Profile, meta *BusinessMetadata) {
	if meta.BusinessType != "" {
		p.BusinessType = meta.BusinessType
	}
	if meta.FleetSize > 0 {
		p.FleetSize = meta.FleetSize
	}
	if meta.AvgRouteDistanceKm > 0 {
		p.AvgRouteDistanceKm = meta.AvgRouteDistanceKm
	}
	if meta.OperatingHours != "" {
		p.OperatingHours = meta.OperatingHours
	}
	if meta.RiskTolerance.Valid() {
		p.RiskTolerance = meta.RiskTolerance
	}
	if meta.Weights != nil {
		p.Weights = *meta.Weights
	}
}

// AdaptationTags derives the human-readable adaptation strings attached to
// results for caller display. They never affect the numeric outcome.
func AdaptationTags(p *Profile) []string {
	var tags []string

	switch p.Weights.Dominant() {
	case "fuel":
		tags = append(tags, "fuel-optimized routing prioritized")
	case "time":
		tags = append(tags, "time-critical routing prioritized")
	case "safety":
		tags = append(tags, "safety-first routing prioritized")
	default:
		tags = append(tags, "cost-efficient routing prioritized")
	}

	switch p.RiskTolerance {
	case RiskLow:
		tags = append(tags, "conservative optimization ceiling applied")
	case RiskHigh:
		tags = append(tags, "aggressive optimization enabled")
	}

	return tags
}
