package engine

import "fmt"

// Global normalization statistics, one (mean, std) pair per feature slot.
// These reflect the distribution of the synthetic bootstrap population and
// are replaced per client once enough route history accumulates.
var globalMeans = [FeatureCount]float64{500, 0.5, 0.7, 0.6, 0.5, 0.8, 1.4, 0.75}
var globalStds = [FeatureCount]float64{200, 0.3, 0.2, 0.3, 0.3, 0.2, 0.3, 0.2}

// Normalizer applies z-score normalization with a fixed stats vector.
type Normalizer struct {
	means [FeatureCount]float64
	stds  [FeatureCount]float64
}

// NewNormalizer returns a normalizer carrying the global statistics.
func NewNormalizer() *Normalizer {
	return &Normalizer{means: globalMeans, stds: globalStds}
}

// NewClientNormalizer seeds a normalizer from a client's observed route
// profile. Only the distance and history slots shift; the remaining slots
// keep the global statistics.
func NewClientNormalizer(avgDistanceKm, avgSavings float64) *Normalizer {
	n := NewNormalizer()
	if avgDistanceKm > 0 {
		n.means[featDistance] = avgDistanceKm
		std := avgDistanceKm * 0.4
		if std < 1 {
			std = 1
		}
		n.stds[featDistance] = std
	}
	if avgSavings > 0 {
		n.means[featHistory] = avgSavings
	}
	return n
}

// Normalize returns a z-scored copy of the feature vector.
func (n *Normalizer) Normalize(features []float64) ([]float64, error) {
	if len(features) != FeatureCount {
		return nil, fmt.Errorf("expected %d features, got %d", FeatureCount, len(features))
	}
	out := make([]float64, FeatureCount)
	for i, v := range features {
		out[i] = (v - n.means[i]) / n.stds[i]
	}
	return out, nil
}

// Denormalize inverts Normalize. Used for diagnostics only.
func (n *Normalizer) Denormalize(normalized []float64) ([]float64, error) {
	if len(normalized) != FeatureCount {
		return nil, fmt.Errorf("expected %d features, got %d", FeatureCount, len(normalized))
	}
	out := make([]float64, FeatureCount)
	for i, v := range normalized {
		out[i] = v*n.stds[i] + n.means[i]
	}
	return out, nil
}
