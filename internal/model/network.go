// Package model provides the feed-forward regression network used to
// predict route optimization factors.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Sentinel errors for model operations.
var (
	// ErrDimensionMismatch indicates the input vector width does not match the network.
	ErrDimensionMismatch = errors.New("feature vector width does not match network input")
	// ErrNumericalInstability indicates inference produced a non-finite value.
	ErrNumericalInstability = errors.New("inference produced a non-finite value")
	// ErrInvalidArchitecture indicates an architecture spec that cannot be built.
	ErrInvalidArchitecture = errors.New("invalid network architecture")
)

// Sample is a single training example in feature space.
type Sample struct {
	Features []float64
	Target   float64
}

// layer is a fully connected layer with weights indexed [out][in].
type layer struct {
	weights [][]float64
	biases  []float64
}

func (l *layer) outputs() int { return len(l.biases) }

// Network is a small feed-forward regression network: every hidden layer
// uses ReLU, the single output unit is linear. Dropout is applied to hidden
// activations during training only, so inference is deterministic.
type Network struct {
	spec   ArchitectureSpec
	layers []*layer
}

// Spec returns the architecture the network was built with.
func (n *Network) Spec() ArchitectureSpec { return n.spec }

// Predict runs a forward pass over a normalized feature vector and returns
// the raw (unguarded) optimization factor.
func (n *Network) Predict(features []float64) (float64, error) {
	if len(features) != n.spec.Inputs {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(features), n.spec.Inputs)
	}

	activation := features
	for i, l := range n.layers {
		activation = n.forwardLayer(l, activation, i < len(n.layers)-1)
	}

	out := activation[0]
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, ErrNumericalInstability
	}
	return out, nil
}

// forwardLayer computes one dense layer. Hidden layers apply ReLU.
func (n *Network) forwardLayer(l *layer, in []float64, hidden bool) []float64 {
	out := make([]float64, l.outputs())
	for j := range l.weights {
		sum := l.biases[j]
		for i, w := range l.weights[j] {
			sum += w * in[i]
		}
		if hidden && sum < 0 {
			sum = 0 // ReLU
		}
		out[j] = sum
	}
	return out
}

// Train runs stochastic gradient descent on mean-squared-error loss.
// Dropout masks are drawn from rng; rng must be non-nil when the
// architecture has a non-zero dropout rate. Sample order is shuffled
// per epoch using the same rng.
func (n *Network) Train(samples []Sample, epochs int, rng *rand.Rand) error {
	if len(samples) == 0 {
		return errors.New("no training samples")
	}
	if n.spec.DropoutRate > 0 && rng == nil {
		return errors.New("rng required for dropout training")
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		if rng != nil {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for _, idx := range order {
			s := samples[idx]
			if len(s.Features) != n.spec.Inputs {
				return fmt.Errorf("%w: sample has %d features, want %d", ErrDimensionMismatch, len(s.Features), n.spec.Inputs)
			}
			n.trainStep(s, rng)
		}
	}
	return nil
}

// trainStep performs one forward/backward pass and updates weights in place.
func (n *Network) trainStep(s Sample, rng *rand.Rand) {
	numLayers := len(n.layers)

	// Forward pass, keeping pre-dropout activations per layer.
	inputs := make([][]float64, numLayers)   // input fed to each layer
	masks := make([][]float64, numLayers)    // dropout scale per unit (1/keep or 0)
	activation := s.Features

	for li, l := range n.layers {
		inputs[li] = activation
		hidden := li < numLayers-1
		out := n.forwardLayer(l, activation, hidden)

		if hidden && n.spec.DropoutRate > 0 {
			keep := 1 - n.spec.DropoutRate
			mask := make([]float64, len(out))
			for j := range out {
				if rng.Float64() < keep {
					mask[j] = 1 / keep
				}
				out[j] *= mask[j]
			}
			masks[li] = mask
		}
		activation = out
	}

	// Backward pass. Output is linear with MSE loss, so the output delta is
	// simply (prediction - target).
	delta := []float64{activation[0] - s.Target}

	for li := numLayers - 1; li >= 0; li-- {
		l := n.layers[li]
		in := inputs[li]

		// Gradient w.r.t. this layer's inputs, needed before updating weights.
		var prevDelta []float64
		if li > 0 {
			prevDelta = make([]float64, len(in))
			for j := range l.weights {
				for i := range l.weights[j] {
					prevDelta[i] += l.weights[j][i] * delta[j]
				}
			}
		}

		lr := n.spec.LearningRate
		for j := range l.weights {
			for i := range l.weights[j] {
				l.weights[j][i] -= lr * delta[j] * in[i]
			}
			l.biases[j] -= lr * delta[j]
		}

		if li > 0 {
			// Propagate through the previous hidden layer's ReLU and dropout.
			prevLayer := li - 1
			for i := range prevDelta {
				// ReLU derivative: the layer output (post-activation input to
				// this layer) is zero wherever the unit did not fire.
				if in[i] <= 0 {
					prevDelta[i] = 0
				} else if masks[prevLayer] != nil {
					prevDelta[i] *= masks[prevLayer][i]
				}
			}
			delta = prevDelta
		}
	}
}
