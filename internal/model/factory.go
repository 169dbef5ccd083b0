package model

import (
	"fmt"
	"math"
	"math/rand"
)

// ArchitectureSpec describes the shape and training hyperparameters of a
// network. The same spec is used for the global model and every per-client
// clone so architectures never drift apart.
type ArchitectureSpec struct {
	// Inputs is the feature vector width.
	Inputs int

	// Hidden lists the hidden layer widths, in order.
	Hidden []int

	// DropoutRate is the training-time dropout rate for hidden activations.
	DropoutRate float64

	// LearningRate is the SGD step size.
	LearningRate float64
}

// DefaultArchitecture returns the production architecture:
// 8 inputs, two ReLU hidden layers (64, 32), one linear output.
func DefaultArchitecture() ArchitectureSpec {
	return ArchitectureSpec{
		Inputs:       8,
		Hidden:       []int{64, 32},
		DropoutRate:  0.2,
		LearningRate: 1e-3,
	}
}

// Validate checks the architecture can be built.
func (s ArchitectureSpec) Validate() error {
	if s.Inputs <= 0 {
		return fmt.Errorf("%w: inputs must be positive, got %d", ErrInvalidArchitecture, s.Inputs)
	}
	if len(s.Hidden) == 0 {
		return fmt.Errorf("%w: at least one hidden layer required", ErrInvalidArchitecture)
	}
	for i, w := range s.Hidden {
		if w <= 0 {
			return fmt.Errorf("%w: hidden layer %d has width %d", ErrInvalidArchitecture, i, w)
		}
	}
	if s.DropoutRate < 0 || s.DropoutRate >= 1 {
		return fmt.Errorf("%w: dropout rate %f out of range [0, 1)", ErrInvalidArchitecture, s.DropoutRate)
	}
	if s.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive", ErrInvalidArchitecture)
	}
	return nil
}

// SameShape reports whether two specs describe the same network shape.
func (s ArchitectureSpec) SameShape(other ArchitectureSpec) bool {
	if s.Inputs != other.Inputs || len(s.Hidden) != len(other.Hidden) {
		return false
	}
	for i := range s.Hidden {
		if s.Hidden[i] != other.Hidden[i] {
			return false
		}
	}
	return true
}

// Factory builds networks from architecture specs. All weight
// initialization randomness flows through the factory's seeded generator,
// keeping inference-time code free of random state.
type Factory struct {
	rng *rand.Rand
}

// NewFactory creates a factory with an explicitly seeded generator.
func NewFactory(seed int64) *Factory {
	return &Factory{rng: rand.New(rand.NewSource(seed))}
}

// Create builds a freshly initialized network for the given spec.
func (f *Factory) Create(spec ArchitectureSpec) (*Network, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	widths := append([]int{spec.Inputs}, spec.Hidden...)
	widths = append(widths, 1)

	layers := make([]*layer, 0, len(widths)-1)
	for i := 0; i < len(widths)-1; i++ {
		layers = append(layers, f.newLayer(widths[i], widths[i+1]))
	}

	return &Network{spec: spec, layers: layers}, nil
}

// newLayer initializes a dense layer with He initialization, which suits
// the ReLU hidden units.
func (f *Factory) newLayer(in, out int) *layer {
	scale := math.Sqrt(2.0 / float64(in))
	weights := make([][]float64, out)
	for j := range weights {
		row := make([]float64, in)
		for i := range row {
			row[i] = f.rng.NormFloat64() * scale
		}
		weights[j] = row
	}
	return &layer{
		weights: weights,
		biases:  make([]float64, out),
	}
}
