package worker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiroute/optiroute/internal/client"
	"github.com/optiroute/optiroute/internal/engine"
	"github.com/optiroute/optiroute/internal/feedback"
	"github.com/optiroute/optiroute/internal/model"
	"github.com/optiroute/optiroute/internal/store"
)

// RetrainJob batch-retrains per-client models from accumulated feedback
// and optionally re-bootstraps the global model.
type RetrainJob struct {
	config RetrainConfig
	logger zerolog.Logger

	clients  *client.Manager
	feedback feedback.Repository
	stor     store.Store
	engine   *engine.Engine

	metrics *RetrainMetrics

	mu  sync.Mutex
	rng *rand.Rand
}

// RetrainMetrics tracks retrain job statistics.
type RetrainMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns        int64
	ClientsRetrained int64
	ClientsSkipped   int64
	ClientsFailed    int64
	GlobalRetrains   int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RetrainJobConfig holds configuration for creating a RetrainJob.
type RetrainJobConfig struct {
	Config   RetrainConfig
	Logger   zerolog.Logger
	Clients  *client.Manager
	Feedback feedback.Repository
	Store    store.Store

	// Engine is used only for global re-bootstrap; nil disables it.
	Engine *engine.Engine

	// Seed drives training shuffles and dropout masks.
	Seed int64
}

// NewRetrainJob creates a new retrain job processor.
func NewRetrainJob(cfg RetrainJobConfig) *RetrainJob {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &RetrainJob{
		config:   cfg.Config.withDefaults(),
		logger:   cfg.Logger,
		clients:  cfg.Clients,
		feedback: cfg.Feedback,
		stor:     cfg.Store,
		engine:   cfg.Engine,
		metrics:  &RetrainMetrics{},
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// RetrainResult contains the result of one retrain run.
type RetrainResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalClients int
	Retrained    int
	Skipped      int
	Failed       int
	Errors       []RetrainError
}

// RetrainError represents a per-client retrain failure.
type RetrainError struct {
	ClientID string
	Error    string
}

// Run executes the retrain job for all known clients.
func (j *RetrainJob) Run(ctx context.Context) *RetrainResult {
	startTime := time.Now()
	result := &RetrainResult{StartTime: startTime}

	profiles, err := j.clients.List(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to list client profiles")
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		return result
	}
	result.TotalClients = len(profiles)

	j.logger.Info().
		Int("total_clients", result.TotalClients).
		Int("concurrency", j.config.Concurrency).
		Msg("starting model retrain job")

	clientsChan := make(chan *client.Profile, len(profiles))
	resultsChan := make(chan clientResult, len(profiles))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.retrainWorker(ctx, clientsChan, resultsChan)
		}()
	}

	for _, p := range profiles {
		clientsChan <- p
	}
	close(clientsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for cr := range resultsChan {
		switch {
		case cr.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, RetrainError{
				ClientID: cr.clientID,
				Error:    cr.err.Error(),
			})
			atomic.AddInt64(&j.metrics.ClientsFailed, 1)
		case cr.skipped:
			result.Skipped++
			atomic.AddInt64(&j.metrics.ClientsSkipped, 1)
		default:
			result.Retrained++
			atomic.AddInt64(&j.metrics.ClientsRetrained, 1)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("retrained", result.Retrained).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("model retrain job completed")

	return result
}

type clientResult struct {
	clientID string
	skipped  bool
	err      error
}

func (j *RetrainJob) retrainWorker(ctx context.Context, profiles <-chan *client.Profile, results chan<- clientResult) {
	for profile := range profiles {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.retrainClient(ctx, profile)
		}
	}
}

// retrainClient trains a fresh copy of one client's model on its recent
// feedback and swaps it in. The live model keeps serving during training.
func (j *RetrainJob) retrainClient(ctx context.Context, profile *client.Profile) clientResult {
	result := clientResult{clientID: profile.ClientID}

	clientCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	records, err := j.feedback.RecentForClient(clientCtx, profile.ClientID, j.config.MaxRecords)
	if err != nil {
		result.err = err
		return result
	}

	samples, accuracy := j.buildSamples(records)
	if len(samples) < j.config.MinRecords {
		result.skipped = true
		return result
	}

	live, ok := j.clients.Model(profile.ClientID)
	if !ok {
		// No live model means no requests have exercised this client
		// since startup; nothing to improve yet.
		result.skipped = true
		return result
	}

	fresh, err := model.FromSnapshot(live.Snapshot())
	if err != nil {
		result.err = err
		return result
	}

	j.mu.Lock()
	err = fresh.Train(samples, j.config.Epochs, j.rng)
	j.mu.Unlock()
	if err != nil {
		result.err = err
		return result
	}

	if err := clientCtx.Err(); err != nil {
		result.err = err
		return result
	}

	j.clients.SwapModel(profile.ClientID, fresh)

	if err := j.clients.RecordTraining(clientCtx, profile.ClientID, len(samples), accuracy); err != nil {
		j.logger.Warn().Err(err).Str("client_id", profile.ClientID).Msg("failed to record training stats")
	}

	snap := fresh.Snapshot()
	snap.Accuracy = accuracy
	if err := j.stor.Save(clientCtx, profile.ClientID, snap); err != nil {
		j.logger.Warn().Err(err).Str("client_id", profile.ClientID).Msg("failed to persist client snapshot")
	}

	j.logger.Debug().
		Str("client_id", profile.ClientID).
		Int("samples", len(samples)).
		Float64("accuracy", accuracy).
		Msg("client model retrained")

	return result
}

// buildSamples converts feedback records into training samples, skipping
// records whose feature vectors are missing or malformed, and computes the
// batch accuracy as mean(1 - |predicted - actual|).
func (j *RetrainJob) buildSamples(records []*feedback.Record) ([]model.Sample, float64) {
	var samples []model.Sample
	sum := 0.0
	for _, r := range records {
		if len(r.Features) != engine.FeatureCount {
			continue
		}
		samples = append(samples, model.Sample{Features: r.Features, Target: r.Actual})
		sum += 1 - r.AbsError
	}
	if len(samples) == 0 {
		return nil, 0
	}
	return samples, sum / float64(len(samples))
}

// RetrainGlobal re-bootstraps the global model. The previous model keeps
// serving until the engine swaps the new one in.
func (j *RetrainJob) RetrainGlobal(ctx context.Context) error {
	if j.config.DisableGlobalRetrain || j.engine == nil {
		return nil
	}

	j.logger.Debug().Msg("re-bootstrapping global model")

	if err := j.engine.Bootstrap(ctx); err != nil {
		j.logger.Error().Err(err).Msg("global re-bootstrap failed")
		return err
	}

	atomic.AddInt64(&j.metrics.GlobalRetrains, 1)
	return nil
}

func (j *RetrainJob) updateMetrics(result *RetrainResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RetrainJob) GetMetrics() RetrainMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RetrainMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		ClientsRetrained: j.metrics.ClientsRetrained,
		ClientsSkipped:   j.metrics.ClientsSkipped,
		ClientsFailed:    j.metrics.ClientsFailed,
		GlobalRetrains:   j.metrics.GlobalRetrains,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RetrainJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"clients_retrained": m.ClientsRetrained,
		"clients_skipped":   m.ClientsSkipped,
		"clients_failed":    m.ClientsFailed,
		"global_retrains":   m.GlobalRetrains,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
