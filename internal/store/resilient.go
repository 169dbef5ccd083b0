package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/optiroute/optiroute/internal/model"
)

// ResilientConfig holds configuration for the resilient store wrapper.
type ResilientConfig struct {
	// Inner is the wrapped store.
	Inner Store

	// Logger for retry and breaker events.
	Logger zerolog.Logger

	// SaveRetries is the number of retry attempts after a failed save.
	// Default: 1 (save is retried once, then the failure is logged).
	SaveRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// BreakerTimeout is the open-state period before the load breaker
	// switches to half-open. Default: 30 seconds.
	BreakerTimeout time.Duration
}

// ResilientStore wraps a Store with retry-once semantics on save and a
// circuit breaker on load, so a flapping backend degrades the engine to
// its fallback path instead of stalling the request path.
type ResilientStore struct {
	inner   Store
	logger  zerolog.Logger
	breaker *gobreaker.CircuitBreaker[*model.Snapshot]

	saveRetries     uint64
	initialInterval time.Duration
}

// NewResilientStore creates a new resilient store wrapper.
func NewResilientStore(cfg ResilientConfig) *ResilientStore {
	retries := cfg.SaveRetries
	if retries == 0 {
		retries = 1
	}

	interval := cfg.InitialInterval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*model.Snapshot](gobreaker.Settings{
		Name:        "model-store",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &ResilientStore{
		inner:           cfg.Inner,
		logger:          cfg.Logger,
		breaker:         breaker,
		saveRetries:     retries,
		initialInterval: interval,
	}
}

// Load retrieves a snapshot through the circuit breaker. A missing
// snapshot does not count as a breaker failure.
func (s *ResilientStore) Load(ctx context.Context, id string) (*model.Snapshot, error) {
	snap, err := s.breaker.Execute(func() (*model.Snapshot, error) {
		snap, err := s.inner.Load(ctx, id)
		if errors.Is(err, ErrSnapshotNotFound) {
			// Not-found is a valid answer, not a backend failure.
			return nil, nil
		}
		return snap, err
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// Save writes a snapshot, retrying failed attempts with exponential
// backoff. Exhausted retries are logged and the final error returned;
// callers on the request path log it and move on rather than failing
// the optimization result.
func (s *ResilientStore) Save(ctx context.Context, id string, snap *model.Snapshot) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.saveRetries), ctx)

	err := backoff.Retry(func() error {
		return s.inner.Save(ctx, id, snap)
	}, policy)
	if err != nil {
		s.logger.Error().Err(err).
			Str("snapshot_id", id).
			Uint64("retries", s.saveRetries).
			Msg("model snapshot save failed after retries")
		return err
	}
	return nil
}

// Ensure ResilientStore implements Store interface.
var _ Store = (*ResilientStore)(nil)
