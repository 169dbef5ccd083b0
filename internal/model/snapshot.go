package model

import (
	"fmt"
	"time"
)

// Snapshot is a serializable copy of a network's weights plus enough
// metadata to validate it on load. Snapshots are what the persistence
// port stores, keyed by "global" or a client ID.
type Snapshot struct {
	Spec      ArchitectureSpec `json:"spec"`
	Weights   [][][]float64    `json:"weights"` // [layer][out][in]
	Biases    [][]float64      `json:"biases"`  // [layer][out]
	Version   int              `json:"version"`
	Accuracy  float64          `json:"accuracy"`
	CreatedAt time.Time        `json:"created_at"`
}

// Snapshot captures the current weights for persistence. The returned
// snapshot shares no memory with the live network.
func (n *Network) Snapshot() *Snapshot {
	weights := make([][][]float64, len(n.layers))
	biases := make([][]float64, len(n.layers))

	for li, l := range n.layers {
		weights[li] = make([][]float64, len(l.weights))
		for j, row := range l.weights {
			cpy := make([]float64, len(row))
			copy(cpy, row)
			weights[li][j] = cpy
		}
		biases[li] = make([]float64, len(l.biases))
		copy(biases[li], l.biases)
	}

	return &Snapshot{
		Spec:      n.spec,
		Weights:   weights,
		Biases:    biases,
		CreatedAt: time.Now(),
	}
}

// FromSnapshot rebuilds a network from a stored snapshot, validating the
// weight dimensions against the embedded spec. Corrupt snapshots return
// an error rather than a half-built network.
func FromSnapshot(snap *Snapshot) (*Network, error) {
	if err := snap.Spec.Validate(); err != nil {
		return nil, err
	}

	widths := append([]int{snap.Spec.Inputs}, snap.Spec.Hidden...)
	widths = append(widths, 1)
	wantLayers := len(widths) - 1

	if len(snap.Weights) != wantLayers || len(snap.Biases) != wantLayers {
		return nil, fmt.Errorf("%w: snapshot has %d weight layers, want %d", ErrDimensionMismatch, len(snap.Weights), wantLayers)
	}

	layers := make([]*layer, 0, wantLayers)
	for li := 0; li < wantLayers; li++ {
		in, out := widths[li], widths[li+1]
		if len(snap.Weights[li]) != out || len(snap.Biases[li]) != out {
			return nil, fmt.Errorf("%w: layer %d has %d units, want %d", ErrDimensionMismatch, li, len(snap.Weights[li]), out)
		}

		weights := make([][]float64, out)
		for j, row := range snap.Weights[li] {
			if len(row) != in {
				return nil, fmt.Errorf("%w: layer %d unit %d has %d weights, want %d", ErrDimensionMismatch, li, j, len(row), in)
			}
			cpy := make([]float64, in)
			copy(cpy, row)
			weights[j] = cpy
		}

		biasCpy := make([]float64, out)
		copy(biasCpy, snap.Biases[li])

		layers = append(layers, &layer{weights: weights, biases: biasCpy})
	}

	return &Network{spec: snap.Spec, layers: layers}, nil
}
