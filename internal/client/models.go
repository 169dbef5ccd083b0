// Package client provides client profile management and per-client
// model personalization.
package client

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrProfileNotFound = errors.New("client profile not found")
)

// RiskTolerance controls how aggressive a client's predictions may be.
type RiskTolerance string

// Supported risk tolerance levels.
const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// Valid reports whether the tolerance is a known level.
func (t RiskTolerance) Valid() bool {
	switch t {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// FactorCeiling returns the maximum optimization factor this tolerance
// allows. Low-tolerance clients are capped well below the business maximum.
func (t RiskTolerance) FactorCeiling() float64 {
	if t == RiskLow {
		return 0.25
	}
	return 0.45
}

// UpwardBias returns the small raw-prediction bias granted to
// high-tolerance clients before guarding.
func (t RiskTolerance) UpwardBias() float64 {
	if t == RiskHigh {
		return 0.01
	}
	return 0
}

// PriorityWeights are the client's personalization weights. They sum
// loosely to 1.0.
type PriorityWeights struct {
	Fuel   float64
	Time   float64
	Safety float64
	Cost   float64
}

// DefaultPriorityWeights returns the provisioning defaults
// (cost 0.4, time 0.3, safety 0.2, fuel 0.1).
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		Cost:   0.4,
		Time:   0.3,
		Safety: 0.2,
		Fuel:   0.1,
	}
}

// Dominant returns the name of the largest weight.
func (w PriorityWeights) Dominant() string {
	name, max := "cost", w.Cost
	if w.Time > max {
		name, max = "time", w.Time
	}
	if w.Safety > max {
		name, max = "safety", w.Safety
	}
	if w.Fuel > max {
		name = "fuel"
	}
	return name
}

// BusinessMetadata is the provisioning input for a client profile.
type BusinessMetadata struct {
	BusinessType       string
	FleetSize          int
	AvgRouteDistanceKm float64
	OperatingHours     string
	RiskTolerance      RiskTolerance
	Weights            *PriorityWeights
}

// Profile is a client's business metadata plus rolling performance stats.
// Profiles are created by explicit provisioning or a first optimization
// call, mutated by every completed optimization and by feedback, and never
// deleted automatically.
type Profile struct {
	ClientID           string
	BusinessType       string
	FleetSize          int
	AvgRouteDistanceKm float64
	OperatingHours     string
	RiskTolerance      RiskTolerance
	Weights            PriorityWeights

	TotalRoutes        int64
	AverageSavings     float64 // rolling average optimization factor
	TrainingDataPoints int
	ModelVersion       int
	ModelAccuracy      float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatureModel reports whether the client has enough history for its
// personalized model to be trusted with a higher confidence floor.
func (p *Profile) MatureModel() bool {
	return p.TotalRoutes > 100
}
