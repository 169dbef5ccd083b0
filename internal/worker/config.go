// Package worker provides background job processing for OptiRoute.
package worker

import (
	"time"
)

// RetrainConfig holds configuration for the model retrain job.
type RetrainConfig struct {
	// Concurrency is the number of client models retrained in parallel.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for retraining one client model.
	// Default: 30 seconds
	Timeout time.Duration

	// MinRecords is the minimum number of feedback records a client must
	// have accumulated before a retrain is attempted.
	// Default: 5
	MinRecords int

	// MaxRecords caps how many recent records feed one training pass.
	// Default: 200
	MaxRecords int

	// Epochs is the number of training passes over the batch.
	// Default: 5
	Epochs int

	// DisableGlobalRetrain turns off the periodic re-bootstrap of the
	// global model. The zero value keeps it enabled.
	DisableGlobalRetrain bool
}

// DefaultRetrainConfig returns the default retrain configuration.
func DefaultRetrainConfig() RetrainConfig {
	return RetrainConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
		MinRecords:  5,
		MaxRecords:  200,
		Epochs:      5,
	}
}

func (c RetrainConfig) withDefaults() RetrainConfig {
	d := DefaultRetrainConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MinRecords <= 0 {
		c.MinRecords = d.MinRecords
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = d.MaxRecords
	}
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	return c
}
