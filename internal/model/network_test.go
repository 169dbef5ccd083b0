package model_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiroute/optiroute/internal/model"
)

func TestFactory_Create(t *testing.T) {
	factory := model.NewFactory(1)

	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)
	require.NotNil(t, net)

	assert.Equal(t, 8, net.Spec().Inputs)
	assert.Equal(t, []int{64, 32}, net.Spec().Hidden)
}

func TestFactory_Create_InvalidSpec(t *testing.T) {
	factory := model.NewFactory(1)

	tests := []struct {
		name string
		spec model.ArchitectureSpec
	}{
		{
			name: "zero inputs",
			spec: model.ArchitectureSpec{Inputs: 0, Hidden: []int{4}, LearningRate: 1e-3},
		},
		{
			name: "no hidden layers",
			spec: model.ArchitectureSpec{Inputs: 8, Hidden: nil, LearningRate: 1e-3},
		},
		{
			name: "negative hidden width",
			spec: model.ArchitectureSpec{Inputs: 8, Hidden: []int{-1}, LearningRate: 1e-3},
		},
		{
			name: "dropout rate one",
			spec: model.ArchitectureSpec{Inputs: 8, Hidden: []int{4}, DropoutRate: 1, LearningRate: 1e-3},
		},
		{
			name: "zero learning rate",
			spec: model.ArchitectureSpec{Inputs: 8, Hidden: []int{4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Create(tt.spec)
			assert.ErrorIs(t, err, model.ErrInvalidArchitecture)
		})
	}
}

func TestNetwork_Predict_Deterministic(t *testing.T) {
	factory := model.NewFactory(42)
	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)

	features := []float64{0.1, -0.3, 0.5, 1.2, -0.7, 0.4, 0.0, 0.9}

	first, err := net.Predict(features)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := net.Predict(features)
		require.NoError(t, err)
		assert.Equal(t, first, again, "inference must be deterministic")
	}
}

func TestNetwork_Predict_DimensionMismatch(t *testing.T) {
	factory := model.NewFactory(1)
	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)

	_, err = net.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)
}

func TestNetwork_Train_LearnsLinearTarget(t *testing.T) {
	spec := model.ArchitectureSpec{
		Inputs:       2,
		Hidden:       []int{16, 8},
		DropoutRate:  0, // deterministic convergence check
		LearningRate: 0.01,
	}
	factory := model.NewFactory(7)
	net, err := factory.Create(spec)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	samples := make([]model.Sample, 0, 200)
	for i := 0; i < 200; i++ {
		a, b := rng.Float64(), rng.Float64()
		samples = append(samples, model.Sample{
			Features: []float64{a, b},
			Target:   0.2 + 0.1*a + 0.05*b,
		})
	}

	require.NoError(t, net.Train(samples, 50, rng))

	// Predictions should land close to the clean linear target.
	totalErr := 0.0
	for _, s := range samples {
		pred, err := net.Predict(s.Features)
		require.NoError(t, err)
		totalErr += math.Abs(pred - s.Target)
	}
	meanErr := totalErr / float64(len(samples))
	assert.Less(t, meanErr, 0.05, "mean absolute error after training")
}

func TestNetwork_Train_DropoutRequiresRNG(t *testing.T) {
	factory := model.NewFactory(1)
	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)

	samples := []model.Sample{{Features: make([]float64, 8), Target: 0.2}}
	err = net.Train(samples, 1, nil)
	assert.Error(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	factory := model.NewFactory(99)
	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)

	features := []float64{0.5, 0.1, -0.2, 0.8, 0.3, -0.4, 0.6, 0.0}
	want, err := net.Predict(features)
	require.NoError(t, err)

	restored, err := model.FromSnapshot(net.Snapshot())
	require.NoError(t, err)

	got, err := restored.Predict(features)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestFromSnapshot_Corrupt(t *testing.T) {
	factory := model.NewFactory(3)
	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)

	snap := net.Snapshot()
	snap.Weights = snap.Weights[:1] // drop layers

	_, err = model.FromSnapshot(snap)
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)
}

func TestSnapshot_Isolation(t *testing.T) {
	factory := model.NewFactory(5)
	net, err := factory.Create(model.DefaultArchitecture())
	require.NoError(t, err)

	features := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	before, err := net.Predict(features)
	require.NoError(t, err)

	snap := net.Snapshot()
	snap.Weights[0][0][0] += 100 // mutating the snapshot must not touch the live network

	after, err := net.Predict(features)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestArchitectureSpec_SameShape(t *testing.T) {
	a := model.DefaultArchitecture()
	b := model.DefaultArchitecture()
	assert.True(t, a.SameShape(b))

	b.Hidden = []int{64, 16}
	assert.False(t, a.SameShape(b))
}
