// Package main provides the entrypoint for the OptiRoute engine worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiroute/optiroute/internal/client"
	"github.com/optiroute/optiroute/internal/database"
	"github.com/optiroute/optiroute/internal/engine"
	"github.com/optiroute/optiroute/internal/feedback"
	"github.com/optiroute/optiroute/internal/store"
	"github.com/optiroute/optiroute/internal/telemetry"
	"github.com/optiroute/optiroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "optiroute-worker"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting OptiRoute worker")

	// Get configuration from environment
	port := getEnvOrDefault("APP_PORT", "8080")
	env := getEnvOrDefault("APP_ENV", "development")
	otlpEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := engine.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Choose persistence: PostgreSQL by default, in-memory for local runs.
	var (
		clientRepo   client.Repository
		feedbackRepo feedback.Repository
		modelStore   store.Store
	)
	if os.Getenv("DB_ENABLED") == "false" {
		log.Warn().Msg("database disabled - using in-memory persistence")
		clientRepo = client.NewInMemoryRepository()
		feedbackRepo = feedback.NewInMemoryRepository()
		modelStore = store.NewMemoryStore()
	} else {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		clientRepo = client.NewPostgresRepository(pool)
		feedbackRepo = feedback.NewPostgresRepository(pool)
		modelStore = store.NewPostgresStore(pool)
	}

	// Snapshot persistence goes through retry and circuit breaking so a
	// flaky store never blocks a served result.
	resilientStore := store.NewResilientStore(store.ResilientConfig{
		Inner:  modelStore,
		Logger: log,
	})

	// Initialize client profile manager
	clients := client.NewManager(client.ManagerConfig{
		Repository: clientRepo,
		Logger:     log,
	})
	log.Info().Msg("client profile manager initialized")

	// Initialize feedback sink
	sink := feedback.NewSink(feedback.SinkConfig{
		Repository: feedbackRepo,
		Logger:     log,
	})
	log.Info().Msg("feedback sink initialized")

	// Initialize the optimization engine
	eng, err := engine.New(engine.Config{
		Store:    resilientStore,
		Clients:  clients,
		Feedback: sink,
		Metrics:  metrics,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}

	restored, err := eng.Restore(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to restore persisted model")
	}
	if !restored {
		if err := eng.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap model")
		}
	}
	log.Info().Bool("restored", restored).Msg("optimization engine ready")

	// Initialize the retrain job
	retrainJob := worker.NewRetrainJob(worker.RetrainJobConfig{
		Logger:   log,
		Clients:  clients,
		Feedback: feedbackRepo,
		Store:    resilientStore,
		Engine:   eng,
	})

	// Create context for graceful shutdown
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Periodic retrain loop
	retrainInterval, err := time.ParseDuration(getEnvOrDefault("RETRAIN_INTERVAL", "10m"))
	if err != nil || retrainInterval <= 0 {
		retrainInterval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(retrainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				retrainJob.Run(runCtx)
			}
		}
	}()
	log.Info().Dur("interval", retrainInterval).Msg("retrain loop started")

	// Optional Pub/Sub trigger for on-demand retrains
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(runCtx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RetrainJob:       retrainJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub handler")
			}
		}()

		go func() {
			if err := handler.Start(runCtx); err != nil && runCtx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured - retrains run on the timer only")
	}

	// Health and introspection endpoints for the orchestrator
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := eng.Stats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"is_loaded":            stats.IsLoaded,
			"accuracy":             stats.Accuracy,
			"training_data_points": stats.TrainingDataPoints,
			"historical_routes":    stats.HistoricalRoutes,
			"retrain":              retrainJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	if err := eng.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush model snapshot")
	}

	log.Info().Msg("worker stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
