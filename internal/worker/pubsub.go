package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	retrainJob       *RetrainJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RetrainJob       *RetrainJob
	Logger           zerolog.Logger
}

// RetrainMessage represents a model retrain job message.
type RetrainMessage struct {
	JobType string `json:"job_type"`

	// ClientID restricts the retrain to one client. Empty retrains all.
	ClientID string `json:"client_id,omitempty"`

	// IncludeGlobal also re-bootstraps the global model.
	IncludeGlobal bool `json:"include_global,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		retrainJob:       cfg.RetrainJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var retrainMsg RetrainMessage
	if err := json.Unmarshal(msg.Data, &retrainMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch retrainMsg.JobType {
	case "model_retrain":
		err = h.handleModelRetrain(ctx, retrainMsg)
	case "health_check":
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", retrainMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", retrainMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleModelRetrain(ctx context.Context, msg RetrainMessage) error {
	h.logger.Info().
		Str("client_id", msg.ClientID).
		Bool("include_global", msg.IncludeGlobal).
		Msg("starting model retrain")

	if msg.ClientID != "" {
		profile, err := h.retrainJob.clients.Get(ctx, msg.ClientID)
		if err != nil {
			return fmt.Errorf("resolving client %s: %w", msg.ClientID, err)
		}
		if cr := h.retrainJob.retrainClient(ctx, profile); cr.err != nil {
			return fmt.Errorf("retraining client %s: %w", msg.ClientID, cr.err)
		}
		return nil
	}

	result := h.retrainJob.Run(ctx)

	if msg.IncludeGlobal {
		if err := h.retrainJob.RetrainGlobal(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("global retrain failed")
		}
	}

	h.logger.Info().
		Dur("duration", result.Duration).
		Int("retrained", result.Retrained).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("model retrain completed")

	// Consider it successful if more clients retrained than failed.
	if result.Failed > result.Retrained {
		return fmt.Errorf("too many retrain failures: %d/%d", result.Failed, result.TotalClients)
	}

	return nil
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	// Listing profiles exercises the repository without mutating anything.
	if _, err := h.retrainJob.clients.List(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
