package engine

// Sweet-spot band where the model has seen the densest training data;
// predictions inside it earn a confidence boost.
const (
	sweetSpotLow  = 0.20
	sweetSpotHigh = 0.35
)

const (
	sweetSpotBoost   = 1.1
	clampPenalty     = 0.7
	learningBonusCap = 0.15
	learningBonusPer = 0.001

	highFactorFloor     = 0.92
	baseConfidenceFloor = 0.75
	matureClientFloor   = 0.85
	matureClientBonus   = 0.05
)

// Quality defaults applied when an optional input was absent from the
// request. Supplied fields score 1.0.
const (
	qualityTrafficDefault = 0.7
	qualityWeatherDefault = 0.8
	qualityDriverDefault  = 0.6
	qualityVehicleDefault = 0.7
)

// ConfidenceInput captures everything the estimator needs about one
// prediction.
type ConfidenceInput struct {
	Factor          float64
	Clamped         bool
	RollingAccuracy float64
	TrainingRecords int

	TrafficSupplied bool
	WeatherSupplied bool
	DriverSupplied  bool
	VehicleSupplied bool

	// MatureClientModel raises the confidence floor for clients whose
	// personalized model has enough route history behind it.
	MatureClientModel bool
}

// EstimateConfidence derives a confidence score in [floor, 1.0] from the
// engine's rolling accuracy and per-prediction signals. The adjustment
// order is fixed: sweet spot, clamp penalty, input quality, learning
// bonus, floor.
func EstimateConfidence(in ConfidenceInput) float64 {
	confidence := in.RollingAccuracy

	if in.Factor > sweetSpotLow && in.Factor < sweetSpotHigh {
		confidence *= sweetSpotBoost
	}
	if in.Clamped {
		confidence *= clampPenalty
	}

	confidence *= inputQuality(in)

	bonus := float64(in.TrainingRecords) * learningBonusPer
	if bonus > learningBonusCap {
		bonus = learningBonusCap
	}
	confidence += bonus

	floor := confidenceFloor(in)
	if confidence < floor {
		confidence = floor
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// inputQuality is the mean of four presence sub-scores.
func inputQuality(in ConfidenceInput) float64 {
	traffic := qualityTrafficDefault
	if in.TrafficSupplied {
		traffic = 1.0
	}
	weather := qualityWeatherDefault
	if in.WeatherSupplied {
		weather = 1.0
	}
	driver := qualityDriverDefault
	if in.DriverSupplied {
		driver = 1.0
	}
	vehicle := qualityVehicleDefault
	if in.VehicleSupplied {
		vehicle = 1.0
	}
	return (traffic + weather + driver + vehicle) / 4
}

// confidenceFloor enforces the business rule that aggressive predictions
// carry a high minimum confidence.
func confidenceFloor(in ConfidenceInput) float64 {
	if in.Factor > 0.25 {
		return highFactorFloor
	}
	if in.MatureClientModel {
		return matureClientFloor + matureClientBonus
	}
	return baseConfidenceFloor
}
