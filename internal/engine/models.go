// Package engine implements the route-savings optimization engine: it
// turns a route description into a predicted optimization factor with a
// confidence score and derived savings, optionally personalized per client.
package engine

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for engine operations.
var (
	// ErrInvalidDistance indicates a missing or non-positive route distance.
	ErrInvalidDistance = errors.New("route distance must be greater than zero")
	// ErrModelUnavailable indicates the model failed to load or initialize.
	ErrModelUnavailable = errors.New("optimization model unavailable")
)

// VehicleType identifies a vehicle class for efficiency scoring.
type VehicleType string

// Supported vehicle types.
const (
	VehicleElectric VehicleType = "electric"
	VehicleHybrid   VehicleType = "hybrid"
	VehicleDiesel   VehicleType = "diesel"
	VehiclePetrol   VehicleType = "petrol"
	VehicleTruck    VehicleType = "truck"
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// RouteContext is the immutable input to a single optimization call.
// Pointer fields are optional; their documented defaults apply when nil.
type RouteContext struct {
	// DistanceKm is the raw route distance. Required, must be > 0.
	DistanceKm float64

	// Waypoints is the ordered coordinate sequence, if known.
	Waypoints []Coordinate

	// TrafficCongestion is the congestion level in [0, 1]. Default: 0.5.
	TrafficCongestion *float64

	// WeatherScore is the weather driving score in [0, 1]. Default: 0.8.
	WeatherScore *float64

	// FuelPrice is the average fuel price per liter. Default: 1.4.
	FuelPrice *float64

	// RequestedAt is the time of the request. Zero value means now.
	RequestedAt time.Time
}

// VehicleProfile describes the vehicle running the route.
type VehicleProfile struct {
	// Type selects the efficiency score when EfficiencyScore is nil.
	Type VehicleType

	// EfficiencyScore overrides the type-derived score when non-nil.
	EfficiencyScore *float64

	// FuelLevel and LoadLevel are carried for extreme-condition flags in
	// the caller; the core model does not read them.
	FuelLevel *float64
	LoadLevel *float64
}

// DriverProfile describes the driver running the route.
type DriverProfile struct {
	// YearsExperience is clamped to an experience score of 1.0 at 10 years.
	YearsExperience float64
}

// Savings holds the concrete deltas derived from an optimization factor.
type Savings struct {
	DistanceKm      float64
	TimeHours       float64
	FuelLiters      float64
	Cost            float64
	PercentageSaved float64
}

// OptimizationResult is the outcome of a single optimization call.
type OptimizationResult struct {
	ResultID               string
	OptimizationFactor     float64
	Confidence             float64
	OptimizedDistanceKm    float64
	OptimizedDurationHours float64
	Savings                Savings
	ModelAccuracy          float64
	UsedFallback           bool
	UsedClientModel        bool
	AdaptationTags         []string
	CreatedAt              time.Time
}

// Stats is the read-only introspection surface for monitoring.
type Stats struct {
	IsLoaded           bool
	Accuracy           float64
	TrainingDataPoints int
	HistoricalRoutes   int64
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError rejects a request before feature extraction. No partial
// result is produced.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	fields := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		fields[i] = fe.Field
	}
	return "validation failed: " + strings.Join(fields, ", ")
}
