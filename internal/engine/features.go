package engine

import (
	"fmt"
	"time"
)

// FeatureCount is the fixed feature vector width.
const FeatureCount = 8

// Feature vector slot indices.
const (
	featDistance = iota
	featTraffic
	featEfficiency
	featExperience
	featTimeOfDay
	featWeather
	featFuelPrice
	featHistory
)

// Defaults applied when an optional input is absent.
const (
	defaultDistanceKm    = 100.0
	defaultTraffic       = 0.5
	defaultEfficiency    = 0.7
	defaultExperience    = 0.6
	defaultWeather       = 0.8
	defaultFuelPrice     = 1.4
	defaultHistoryScore  = 0.75
	experienceMaturityYr = 10.0
)

// defaultEfficiencyTable maps vehicle types to efficiency scores.
var defaultEfficiencyTable = map[VehicleType]float64{
	VehicleElectric: 0.95,
	VehicleHybrid:   0.85,
	VehicleDiesel:   0.75,
	VehiclePetrol:   0.65,
	VehicleTruck:    0.45,
}

// ExtractorConfig holds configuration for the feature extractor.
type ExtractorConfig struct {
	// EfficiencyOverrides replaces or extends the built-in vehicle
	// efficiency table. Scores must lie in [0, 1].
	EfficiencyOverrides map[VehicleType]float64
}

// FeatureExtractor converts a raw route description into a fixed-length
// feature vector. It has no side effects and is deterministic given its
// inputs; the only per-client variation is the historical score supplied
// by the caller.
type FeatureExtractor struct {
	efficiency map[VehicleType]float64
}

// NewFeatureExtractor creates a feature extractor, validating the
// efficiency table up front so unknown scores never slip in silently.
func NewFeatureExtractor(cfg ExtractorConfig) (*FeatureExtractor, error) {
	table := make(map[VehicleType]float64, len(defaultEfficiencyTable))
	for k, v := range defaultEfficiencyTable {
		table[k] = v
	}
	for k, v := range cfg.EfficiencyOverrides {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("efficiency score for %q out of range [0, 1]: %f", k, v)
		}
		table[k] = v
	}

	return &FeatureExtractor{efficiency: table}, nil
}

// ExtractInput carries the optional context around a route.
type ExtractInput struct {
	Route   RouteContext
	Vehicle *VehicleProfile
	Driver  *DriverProfile

	// HistoricalScore replaces the default history slot for known
	// clients (their rolling average savings ratio).
	HistoricalScore *float64
}

// Extract builds the 8-slot feature vector.
func (e *FeatureExtractor) Extract(in ExtractInput) []float64 {
	features := make([]float64, FeatureCount)

	features[featDistance] = defaultDistanceKm
	if in.Route.DistanceKm > 0 {
		features[featDistance] = in.Route.DistanceKm
	}

	features[featTraffic] = defaultTraffic
	if in.Route.TrafficCongestion != nil {
		features[featTraffic] = clamp01(*in.Route.TrafficCongestion)
	}

	features[featEfficiency] = e.vehicleEfficiency(in.Vehicle)

	features[featExperience] = defaultExperience
	if in.Driver != nil {
		years := in.Driver.YearsExperience
		if years < 0 {
			years = 0
		}
		score := years / experienceMaturityYr
		if score > 1 {
			score = 1
		}
		features[featExperience] = score
	}

	requestedAt := in.Route.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}
	features[featTimeOfDay] = timeOfDayScore(requestedAt)

	features[featWeather] = defaultWeather
	if in.Route.WeatherScore != nil {
		features[featWeather] = clamp01(*in.Route.WeatherScore)
	}

	features[featFuelPrice] = defaultFuelPrice
	if in.Route.FuelPrice != nil && *in.Route.FuelPrice > 0 {
		features[featFuelPrice] = *in.Route.FuelPrice
	}

	features[featHistory] = defaultHistoryScore
	if in.HistoricalScore != nil {
		features[featHistory] = clamp01(*in.HistoricalScore)
	}

	return features
}

// vehicleEfficiency resolves the efficiency slot from an explicit score or
// the type table, with an explicit default for unknown types.
func (e *FeatureExtractor) vehicleEfficiency(v *VehicleProfile) float64 {
	if v == nil {
		return defaultEfficiency
	}
	if v.EfficiencyScore != nil {
		return clamp01(*v.EfficiencyScore)
	}
	if score, ok := e.efficiency[v.Type]; ok {
		return score
	}
	return defaultEfficiency
}

// timeOfDayScore maps the request hour to a routing-favorability score:
// rush hours are the least favorable, midday the most.
func timeOfDayScore(t time.Time) float64 {
	hour := t.Hour()
	switch {
	case (hour >= 7 && hour < 9) || (hour >= 17 && hour < 19):
		return 0.3 // rush hour
	case hour >= 10 && hour < 16:
		return 1.0 // midday
	case hour >= 20 || hour < 6:
		return 0.8 // night
	default:
		return 0.7
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
