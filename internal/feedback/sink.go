package feedback

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Defaults for the feedback sink.
const (
	// DefaultWindow is the number of recent records the rolling accuracy
	// is computed over.
	DefaultWindow = 20

	// DefaultInitialAccuracy is the accuracy assumed before any outcome
	// has been observed.
	DefaultInitialAccuracy = 0.85
)

// SinkConfig holds configuration for the feedback sink.
type SinkConfig struct {
	// Repository persists pending predictions and observed records.
	Repository Repository

	// Logger for sink operations.
	Logger zerolog.Logger

	// Window is the rolling accuracy window size (default: 20).
	Window int

	// InitialAccuracy is used until the first record arrives (default: 0.85).
	InitialAccuracy float64
}

// Sink records observed outcomes and maintains the rolling accuracy used
// as the confidence base. Accuracy is the mean of (1 - |predicted-actual|)
// over the most recent Window records.
type Sink struct {
	repo   Repository
	logger zerolog.Logger
	window int

	mu       sync.RWMutex
	accuracy float64
	count    int
}

// NewSink creates a new feedback sink.
func NewSink(cfg SinkConfig) *Sink {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	accuracy := cfg.InitialAccuracy
	if accuracy <= 0 {
		accuracy = DefaultInitialAccuracy
	}

	return &Sink{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		window:   window,
		accuracy: accuracy,
	}
}

// TrackPending registers a completed prediction so a later observation can
// resolve it.
func (s *Sink) TrackPending(ctx context.Context, p *PendingPrediction) error {
	return s.repo.SavePending(ctx, p)
}

// Observe resolves a pending prediction with its actual outcome, appends
// the record, and recomputes the rolling accuracy. Returns the appended
// record so callers can update per-client state.
func (s *Sink) Observe(ctx context.Context, resultID string, actual float64) (*Record, error) {
	pending, err := s.repo.TakePending(ctx, resultID)
	if err != nil {
		return nil, err
	}

	record := NewRecord(pending, actual)
	if err := s.repo.Append(ctx, record); err != nil {
		return nil, err
	}

	if err := s.recomputeAccuracy(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to recompute rolling accuracy")
	}

	s.logger.Debug().
		Str("result_id", resultID).
		Float64("predicted", record.Predicted).
		Float64("actual", record.Actual).
		Float64("abs_error", record.AbsError).
		Float64("rolling_accuracy", s.RollingAccuracy()).
		Msg("feedback observed")

	return record, nil
}

// RollingAccuracy returns the current rolling accuracy.
func (s *Sink) RollingAccuracy() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accuracy
}

// RecordCount returns the total number of observed records.
func (s *Sink) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Restore primes the rolling accuracy from already-persisted records, used
// when the engine starts against an existing feedback log.
func (s *Sink) Restore(ctx context.Context) error {
	return s.recomputeAccuracy(ctx)
}

func (s *Sink) recomputeAccuracy(ctx context.Context) error {
	records, err := s.repo.Recent(ctx, s.window)
	if err != nil {
		return err
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.count = count
	if len(records) == 0 {
		return nil
	}

	sum := 0.0
	for _, r := range records {
		sum += 1 - r.AbsError
	}
	s.accuracy = sum / float64(len(records))
	return nil
}
