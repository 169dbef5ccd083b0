// Package savings converts optimization factors into concrete distance,
// time, fuel and cost deltas, and projects financial return.
package savings

// Baseline assumptions used when the request does not supply better data.
const (
	// AverageSpeedKmh is the fixed fleet-wide average speed assumption.
	AverageSpeedKmh = 45.0

	// FuelLitersPerKm is the baseline fuel burn (8 L/100km).
	FuelLitersPerKm = 0.08

	// BaselineFuelPrice is the fallback cost per liter.
	BaselineFuelPrice = 1.5
)

// Input describes one savings calculation.
type Input struct {
	// Factor is the guarded optimization factor.
	Factor float64

	// DistanceKm is the original route distance.
	DistanceKm float64

	// FuelPrice overrides BaselineFuelPrice when non-nil.
	FuelPrice *float64

	// FuelPriorityWeight is the client's fuel personalization weight;
	// zero when no client profile is in play.
	FuelPriorityWeight float64
}

// Result holds the computed deltas. All values are non-negative for
// factors in the approved operating band.
type Result struct {
	OptimizedDistanceKm    float64
	OptimizedDurationHours float64
	DistanceSavedKm        float64
	TimeSavedHours         float64
	FuelSavedLiters        float64
	CostSaved              float64
	PercentageSaved        float64
}

// Calculate derives savings from a guarded factor. Pure arithmetic,
// no learned parameters.
func Calculate(in Input) Result {
	optimizedDistance := in.DistanceKm * (1 - in.Factor)
	optimizedDuration := optimizedDistance / AverageSpeedKmh

	distanceSaved := in.DistanceKm - optimizedDistance
	timeSaved := in.DistanceKm/AverageSpeedKmh - optimizedDuration

	fuelSaved := distanceSaved * FuelLitersPerKm
	if in.FuelPriorityWeight > 0 {
		fuelSaved *= 1 + in.FuelPriorityWeight
	}

	price := BaselineFuelPrice
	if in.FuelPrice != nil && *in.FuelPrice > 0 {
		price = *in.FuelPrice
	}

	return Result{
		OptimizedDistanceKm:    optimizedDistance,
		OptimizedDurationHours: optimizedDuration,
		DistanceSavedKm:        distanceSaved,
		TimeSavedHours:         timeSaved,
		FuelSavedLiters:        fuelSaved,
		CostSaved:              fuelSaved * price,
		PercentageSaved:        in.Factor * 100,
	}
}
