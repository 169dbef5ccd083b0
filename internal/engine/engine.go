// Package engine implements the route-savings optimization core: feature
// extraction, normalization, model inference, range guarding, confidence
// estimation and savings projection, with optional per-client
// personalization.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/optiroute/optiroute/internal/client"
	"github.com/optiroute/optiroute/internal/feedback"
	"github.com/optiroute/optiroute/internal/model"
	"github.com/optiroute/optiroute/internal/savings"
	"github.com/optiroute/optiroute/internal/store"
)

// Deterministic fallback served when no model is available or inference
// fails. Deliberately outside the approved band so it can never be
// mistaken for a real prediction.
const (
	FallbackFactor     = 0.08
	FallbackConfidence = 0.5
)

// Defaults for model training.
const (
	DefaultBootstrapEpochs = 10
	fineTuneEpochs         = 3
)

// Config holds configuration for the optimization engine.
type Config struct {
	// Store persists model snapshots, keyed by "global" or a client id.
	Store store.Store

	// Clients manages per-client profiles and models.
	Clients *client.Manager

	// Feedback records observed outcomes and the rolling accuracy.
	Feedback *feedback.Sink

	// Architecture of the global and per-client models. Zero value uses
	// the default architecture.
	Architecture model.ArchitectureSpec

	// Extractor configures feature extraction.
	Extractor ExtractorConfig

	// ROI holds the financial projection parameters.
	ROI savings.ROIConfig

	// Seed drives all randomness (initialization, bootstrap data,
	// training shuffles). Inference itself is deterministic.
	Seed int64

	// BootstrapSamples is the synthetic dataset size (default: 1000).
	BootstrapSamples int

	// Metrics instruments. Optional.
	Metrics *Metrics

	// Logger for engine operations.
	Logger zerolog.Logger
}

// Engine is the synchronous optimization entry point. One global model
// serves anonymous requests; known clients route through their own
// normalizer and model. The live global model is swapped atomically so
// bootstrap and retraining never block inference.
type Engine struct {
	stor    store.Store
	clients *client.Manager
	sink    *feedback.Sink
	arch    model.ArchitectureSpec

	extractor *FeatureExtractor
	norm      *Normalizer
	guard     *RangeGuard
	factory   *model.Factory
	roiCfg    savings.ROIConfig
	metrics   *Metrics
	logger    zerolog.Logger

	global atomic.Pointer[model.Network]
	loaded atomic.Bool

	bootstrapSamples int
	historicalRoutes atomic.Int64

	// trainMu serializes training passes, which are the only consumers
	// of the shared rng.
	trainMu  sync.Mutex
	trainRng *rand.Rand
}

// New creates an engine. The model is not trained yet; callers restore a
// persisted snapshot via Restore or train a fresh one via Bootstrap.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Clients == nil {
		return nil, errors.New("client manager is required")
	}
	if cfg.Feedback == nil {
		return nil, errors.New("feedback sink is required")
	}

	arch := cfg.Architecture
	if arch.Inputs == 0 {
		arch = model.DefaultArchitecture()
	}
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	if arch.Inputs != FeatureCount {
		return nil, fmt.Errorf("architecture expects %d inputs, feature vector has %d", arch.Inputs, FeatureCount)
	}

	extractor, err := NewFeatureExtractor(cfg.Extractor)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	samples := cfg.BootstrapSamples
	if samples <= 0 {
		samples = DefaultBootstrapSamples
	}

	return &Engine{
		stor:             cfg.Store,
		clients:          cfg.Clients,
		sink:             cfg.Feedback,
		arch:             arch,
		extractor:        extractor,
		norm:             NewNormalizer(),
		guard:            NewRangeGuard(),
		factory:          model.NewFactory(seed),
		roiCfg:           cfg.ROI,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
		bootstrapSamples: samples,
		trainRng:         rand.New(rand.NewSource(seed + 1)),
	}, nil
}

// Restore loads the persisted global model snapshot, if one exists, and
// primes the rolling accuracy from the feedback log. Returns true when a
// snapshot was restored.
func (e *Engine) Restore(ctx context.Context) (bool, error) {
	if err := e.sink.Restore(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("failed to restore rolling accuracy")
	}

	snap, err := e.stor.Load(ctx, store.GlobalID)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load global snapshot: %w", err)
	}
	if !snap.Spec.SameShape(e.arch) {
		e.logger.Warn().
			Int("snapshot_inputs", snap.Spec.Inputs).
			Msg("persisted snapshot has a different architecture, ignoring")
		return false, nil
	}

	net, err := model.FromSnapshot(snap)
	if err != nil {
		return false, fmt.Errorf("restore global model: %w", err)
	}

	e.global.Store(net)
	e.loaded.Store(true)

	e.logger.Info().
		Int("version", snap.Version).
		Float64("accuracy", snap.Accuracy).
		Msg("global model restored")

	return true, nil
}

// Bootstrap trains a fresh global model on a synthetic dataset and swaps
// it in atomically. The previous model, if any, keeps serving until the
// swap. Safe to call periodically.
func (e *Engine) Bootstrap(ctx context.Context) error {
	start := time.Now()

	net, err := e.factory.Create(e.arch)
	if err != nil {
		return fmt.Errorf("create global model: %w", err)
	}

	e.trainMu.Lock()
	samples, err := BootstrapDataset(e.trainRng, e.norm, e.bootstrapSamples)
	if err == nil {
		err = net.Train(samples, DefaultBootstrapEpochs, e.trainRng)
	}
	e.trainMu.Unlock()
	if err != nil {
		return fmt.Errorf("bootstrap training: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.global.Store(net)
	e.loaded.Store(true)

	e.logger.Info().
		Int("samples", len(samples)).
		Dur("elapsed", time.Since(start)).
		Msg("global model bootstrapped")

	e.persistGlobal(ctx)
	return nil
}

// OptimizeRequest is one optimization call.
type OptimizeRequest struct {
	Route   RouteContext
	Vehicle *VehicleProfile
	Driver  *DriverProfile

	// ClientID routes the request through that client's profile and
	// model. Empty uses the global model.
	ClientID string

	// Metadata seeds a new profile when ClientID is unknown. Optional.
	Metadata *client.BusinessMetadata
}

// Optimize is the sole synchronous entry point. Validation errors surface
// to the caller; model and inference errors degrade to the deterministic
// fallback, never to a failed call.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizationResult, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var profile *client.Profile
	if req.ClientID != "" {
		p, created, err := e.clients.GetOrCreate(ctx, req.ClientID, req.Metadata)
		if err != nil {
			e.logger.Error().Err(err).Str("client_id", req.ClientID).Msg("failed to resolve client profile")
		} else {
			profile = p
			if created {
				e.logger.Info().Str("client_id", req.ClientID).Msg("client provisioned on first optimization")
			}
		}
	}

	result, normalized := e.predict(ctx, req, profile)

	result.ResultID = newResultID()
	result.CreatedAt = time.Now()
	result.ModelAccuracy = e.sink.RollingAccuracy()

	e.historicalRoutes.Add(1)

	if !result.UsedFallback {
		e.trackPending(ctx, result, profile, normalized)
	}
	if profile != nil {
		if err := e.clients.RecordOptimization(ctx, profile.ClientID, result.OptimizationFactor); err != nil {
			e.logger.Warn().Err(err).Str("client_id", profile.ClientID).Msg("failed to record optimization stats")
		}
		result.AdaptationTags = client.AdaptationTags(profile)
	}

	e.metrics.RecordOptimization(ctx, time.Since(start), result.UsedClientModel, result.UsedFallback)

	e.logger.Debug().
		Str("result_id", result.ResultID).
		Float64("factor", result.OptimizationFactor).
		Float64("confidence", result.Confidence).
		Bool("fallback", result.UsedFallback).
		Bool("client_model", result.UsedClientModel).
		Msg("optimization served")

	return result, nil
}

// predict runs the model path and degrades to the fallback on any model
// or numerical failure. The normalized feature vector is returned so the
// pending prediction can carry it for later fine-tuning.
func (e *Engine) predict(ctx context.Context, req OptimizeRequest, profile *client.Profile) (*OptimizationResult, []float64) {
	features := e.extractor.Extract(extractInput(req, profile))

	norm := e.norm
	if profile != nil {
		norm = NewClientNormalizer(profile.AvgRouteDistanceKm, profile.AverageSavings)
	}

	net, usedClient := e.resolveModel(ctx, profile)
	if net == nil {
		return e.fallback(req, ErrModelUnavailable), nil
	}

	normalized, err := norm.Normalize(features)
	if err != nil {
		return e.fallback(req, err), nil
	}

	raw, err := net.Predict(normalized)
	if err != nil {
		return e.fallback(req, err), nil
	}

	guard := e.guard
	if profile != nil {
		guard = guard.
			WithCeiling(profile.RiskTolerance.FactorCeiling()).
			WithUpwardBias(profile.RiskTolerance.UpwardBias())
	}
	guarded := guard.Apply(raw)

	confidence := EstimateConfidence(ConfidenceInput{
		Factor:            guarded.Factor,
		Clamped:           guarded.Clamped,
		RollingAccuracy:   e.sink.RollingAccuracy(),
		TrainingRecords:   e.sink.RecordCount(),
		TrafficSupplied:   req.Route.TrafficCongestion != nil,
		WeatherSupplied:   req.Route.WeatherScore != nil,
		DriverSupplied:    req.Driver != nil,
		VehicleSupplied:   req.Vehicle != nil,
		MatureClientModel: usedClient && profile.MatureModel(),
	})

	var fuelWeight float64
	if profile != nil {
		fuelWeight = profile.Weights.Fuel
	}
	sav := savings.Calculate(savings.Input{
		Factor:             guarded.Factor,
		DistanceKm:         req.Route.DistanceKm,
		FuelPrice:          req.Route.FuelPrice,
		FuelPriorityWeight: fuelWeight,
	})

	return &OptimizationResult{
		OptimizationFactor:     guarded.Factor,
		Confidence:             confidence,
		OptimizedDistanceKm:    sav.OptimizedDistanceKm,
		OptimizedDurationHours: sav.OptimizedDurationHours,
		Savings: Savings{
			DistanceKm:      sav.DistanceSavedKm,
			TimeHours:       sav.TimeSavedHours,
			FuelLiters:      sav.FuelSavedLiters,
			Cost:            sav.CostSaved,
			PercentageSaved: sav.PercentageSaved,
		},
		UsedClientModel: usedClient,
	}, normalized
}

// resolveModel picks the client model when the profile exists, falling
// back to the global model for anonymous requests or materialization
// failures.
func (e *Engine) resolveModel(ctx context.Context, profile *client.Profile) (*model.Network, bool) {
	if profile != nil {
		if net, ok := e.clients.Model(profile.ClientID); ok {
			return net, true
		}

		var seed *model.Snapshot
		if snap, err := e.stor.Load(ctx, profile.ClientID); err == nil {
			seed = snap
		} else if !errors.Is(err, store.ErrSnapshotNotFound) {
			e.logger.Warn().Err(err).Str("client_id", profile.ClientID).Msg("failed to load client snapshot")
		}
		if seed == nil {
			if global := e.global.Load(); global != nil {
				seed = global.Snapshot()
			}
		}
		if seed == nil {
			// No trained weights anywhere. A fresh random network would
			// serve noise with full confidence, so degrade instead.
			return nil, false
		}

		net, err := e.clients.EnsureModel(profile.ClientID, seed)
		if err == nil {
			return net, true
		}
		e.logger.Warn().Err(err).Str("client_id", profile.ClientID).Msg("failed to materialize client model")
	}

	return e.global.Load(), false
}

// fallback is the fixed deterministic degraded path.
func (e *Engine) fallback(req OptimizeRequest, cause error) *OptimizationResult {
	e.logger.Warn().Err(cause).Msg("optimization degraded to fallback")

	sav := savings.Calculate(savings.Input{
		Factor:     FallbackFactor,
		DistanceKm: req.Route.DistanceKm,
		FuelPrice:  req.Route.FuelPrice,
	})

	return &OptimizationResult{
		OptimizationFactor:     FallbackFactor,
		Confidence:             FallbackConfidence,
		OptimizedDistanceKm:    sav.OptimizedDistanceKm,
		OptimizedDurationHours: sav.OptimizedDurationHours,
		Savings: Savings{
			DistanceKm:      sav.DistanceSavedKm,
			TimeHours:       sav.TimeSavedHours,
			FuelLiters:      sav.FuelSavedLiters,
			Cost:            sav.CostSaved,
			PercentageSaved: sav.PercentageSaved,
		},
		UsedFallback: true,
	}
}

// trackPending registers the prediction so later feedback can resolve it.
func (e *Engine) trackPending(ctx context.Context, result *OptimizationResult, profile *client.Profile, normalized []float64) {
	clientID := ""
	if profile != nil {
		clientID = profile.ClientID
	}

	pending := &feedback.PendingPrediction{
		ResultID:  result.ResultID,
		ClientID:  clientID,
		Predicted: result.OptimizationFactor,
		Features:  normalized,
		CreatedAt: result.CreatedAt,
	}
	if err := e.sink.TrackPending(ctx, pending); err != nil {
		e.logger.Warn().Err(err).Str("result_id", result.ResultID).Msg("failed to track pending prediction")
	}
}

// RecordFeedback resolves a pending prediction with its observed actual
// factor, refreshes the rolling accuracy, and fine-tunes the client model
// when the prediction was personalized.
func (e *Engine) RecordFeedback(ctx context.Context, resultID string, actual float64) error {
	record, err := e.sink.Observe(ctx, resultID, actual)
	if err != nil {
		return err
	}

	accuracy := e.sink.RollingAccuracy()
	e.metrics.RecordFeedback(ctx, accuracy)

	if record.ClientID != "" {
		e.fineTuneClient(ctx, record, accuracy)
	}
	return nil
}

// fineTuneClient nudges the client's model toward the observed outcome.
// Failures are logged, never surfaced: feedback acknowledgment must not
// depend on training success.
func (e *Engine) fineTuneClient(ctx context.Context, record *feedback.Record, accuracy float64) {
	if len(record.Features) != e.arch.Inputs {
		return
	}

	live, ok := e.clients.Model(record.ClientID)
	if !ok {
		return
	}

	// Train a copy and swap it in so concurrent inference never observes
	// weights mid-update.
	net, err := model.FromSnapshot(live.Snapshot())
	if err != nil {
		e.logger.Warn().Err(err).Str("client_id", record.ClientID).Msg("client fine-tune failed")
		return
	}

	err = e.clients.WithLock(record.ClientID, func() error {
		e.trainMu.Lock()
		defer e.trainMu.Unlock()
		sample := model.Sample{Features: record.Features, Target: record.Actual}
		if err := net.Train([]model.Sample{sample}, fineTuneEpochs, e.trainRng); err != nil {
			return err
		}
		e.clients.SwapModel(record.ClientID, net)
		return nil
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("client_id", record.ClientID).Msg("client fine-tune failed")
		return
	}

	if err := e.clients.RecordTraining(ctx, record.ClientID, 1, accuracy); err != nil {
		e.logger.Warn().Err(err).Str("client_id", record.ClientID).Msg("failed to record training stats")
	}

	snap := net.Snapshot()
	snap.Accuracy = accuracy
	if err := e.stor.Save(ctx, record.ClientID, snap); err != nil {
		e.logger.Warn().Err(err).Str("client_id", record.ClientID).Msg("failed to persist client snapshot")
	}
}

// CreateOrUpdateProfile provisions or updates a client profile.
func (e *Engine) CreateOrUpdateProfile(ctx context.Context, clientID string, meta client.BusinessMetadata) (*client.Profile, error) {
	return e.clients.CreateOrUpdate(ctx, clientID, meta)
}

// ProjectROI projects financial return for a result. A known client's
// route history drives the monthly volume estimate; anonymous projections
// use the configured default volume.
func (e *Engine) ProjectROI(ctx context.Context, result *OptimizationResult, clientID string) (savings.ROIResult, error) {
	var monthlyRoutes float64
	if clientID != "" {
		profile, err := e.clients.Get(ctx, clientID)
		if err != nil {
			return savings.ROIResult{}, err
		}
		monthlyRoutes = savings.MonthlyRouteEstimate(profile.TotalRoutes)
	}

	return savings.CalculateROI(e.roiCfg, savings.ROIInput{
		Savings: savings.Result{
			OptimizedDistanceKm:    result.OptimizedDistanceKm,
			OptimizedDurationHours: result.OptimizedDurationHours,
			DistanceSavedKm:        result.Savings.DistanceKm,
			TimeSavedHours:         result.Savings.TimeHours,
			FuelSavedLiters:        result.Savings.FuelLiters,
			CostSaved:              result.Savings.Cost,
			PercentageSaved:        result.Savings.PercentageSaved,
		},
		MonthlyRoutes: monthlyRoutes,
	}), nil
}

// Stats reports engine state for monitoring.
func (e *Engine) Stats() Stats {
	return Stats{
		IsLoaded:           e.loaded.Load(),
		Accuracy:           e.sink.RollingAccuracy(),
		TrainingDataPoints: e.sink.RecordCount(),
		HistoricalRoutes:   e.historicalRoutes.Load(),
	}
}

// Close persists the live global model. Per-client snapshots are saved as
// they change, so only the global model needs a final flush.
func (e *Engine) Close(ctx context.Context) error {
	if e.global.Load() == nil {
		return nil
	}
	return e.saveGlobal(ctx)
}

func (e *Engine) persistGlobal(ctx context.Context) {
	if err := e.saveGlobal(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist global snapshot")
	}
}

func (e *Engine) saveGlobal(ctx context.Context) error {
	net := e.global.Load()
	if net == nil {
		return nil
	}
	snap := net.Snapshot()
	snap.Accuracy = e.sink.RollingAccuracy()
	return e.stor.Save(ctx, store.GlobalID, snap)
}

// validateRequest rejects inputs the feature pipeline cannot default.
func validateRequest(req OptimizeRequest) error {
	var fields []FieldError
	if req.Route.DistanceKm <= 0 {
		fields = append(fields, FieldError{Field: "distance_km", Message: ErrInvalidDistance.Error()})
	}
	if req.Route.TrafficCongestion != nil && (*req.Route.TrafficCongestion < 0 || *req.Route.TrafficCongestion > 1) {
		fields = append(fields, FieldError{Field: "traffic_congestion", Message: "must be in [0, 1]"})
	}
	if req.Route.WeatherScore != nil && (*req.Route.WeatherScore < 0 || *req.Route.WeatherScore > 1) {
		fields = append(fields, FieldError{Field: "weather_score", Message: "must be in [0, 1]"})
	}
	if req.Driver != nil && req.Driver.YearsExperience < 0 {
		fields = append(fields, FieldError{Field: "years_experience", Message: "must be non-negative"})
	}
	if len(fields) > 0 {
		return &ValidationError{Errors: fields}
	}
	return nil
}

// extractInput builds the extractor input, substituting the client's
// rolling savings ratio into the history slot.
func extractInput(req OptimizeRequest, profile *client.Profile) ExtractInput {
	in := ExtractInput{
		Route:   req.Route,
		Vehicle: req.Vehicle,
		Driver:  req.Driver,
	}
	if profile != nil && profile.AverageSavings > 0 {
		history := profile.AverageSavings
		in.HistoricalScore = &history
	}
	return in
}

func newResultID() string {
	return "opt_" + uuid.NewString()[:22]
}
