package engine

import (
	"math/rand"

	"github.com/optiroute/optiroute/internal/model"
)

// DefaultBootstrapSamples is the synthetic dataset size used to seed the
// global model before any real feedback exists.
const DefaultBootstrapSamples = 1000

// syntheticTarget computes the optimization factor a feature combination
// should map to. The formula keeps every bootstrap target inside the
// approved band so the model starts in range.
func syntheticTarget(traffic, efficiency, experience, timeScore, noise float64) float64 {
	target := FactorFloor
	target += (1 - traffic) * 0.18
	target += efficiency * 0.15
	target += experience * 0.10
	target += (1 - abs(timeScore-0.5)*2) * 0.08
	target += noise

	if target < FactorFloor {
		target = FactorFloor
	}
	if target > FactorCeiling {
		target = FactorCeiling
	}
	return target
}

// BootstrapDataset generates count synthetic training samples with
// normalized feature vectors. All randomness flows through rng so the
// dataset, and therefore the bootstrapped model, is reproducible.
func BootstrapDataset(rng *rand.Rand, norm *Normalizer, count int) ([]model.Sample, error) {
	if count <= 0 {
		count = DefaultBootstrapSamples
	}

	timeScores := []float64{0.3, 0.7, 0.8, 1.0}

	samples := make([]model.Sample, 0, count)
	for i := 0; i < count; i++ {
		features := make([]float64, FeatureCount)
		features[featDistance] = 20 + rng.Float64()*980
		features[featTraffic] = rng.Float64()
		features[featEfficiency] = 0.45 + rng.Float64()*0.5
		features[featExperience] = rng.Float64()
		features[featTimeOfDay] = timeScores[rng.Intn(len(timeScores))]
		features[featWeather] = 0.3 + rng.Float64()*0.7
		features[featFuelPrice] = 1.0 + rng.Float64()*1.0
		features[featHistory] = 0.5 + rng.Float64()*0.5

		noise := (rng.Float64() - 0.5) * 0.02
		target := syntheticTarget(
			features[featTraffic],
			features[featEfficiency],
			features[featExperience],
			features[featTimeOfDay],
			noise,
		)

		normalized, err := norm.Normalize(features)
		if err != nil {
			return nil, err
		}
		samples = append(samples, model.Sample{Features: normalized, Target: target})
	}
	return samples, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
