package client_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/optiroute/optiroute/internal/client"
	"github.com/optiroute/optiroute/internal/model"
)

func newManager() *client.Manager {
	return client.NewManager(client.ManagerConfig{
		Repository: client.NewInMemoryRepository(),
		Factory:    model.NewFactory(1),
		Logger:     zerolog.Nop(),
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	profile, created, err := mgr.GetOrCreate(ctx, "acme", nil)
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	if !created {
		t.Error("expected profile to be created")
	}
	if profile.RiskTolerance != client.RiskMedium {
		t.Errorf("expected medium risk tolerance default, got %q", profile.RiskTolerance)
	}
	if profile.Weights != client.DefaultPriorityWeights() {
		t.Errorf("expected default weights, got %+v", profile.Weights)
	}

	// Second call returns the existing profile.
	again, created, err := mgr.GetOrCreate(ctx, "acme", nil)
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if created {
		t.Error("expected existing profile, not a new one")
	}
	if again.ClientID != profile.ClientID {
		t.Errorf("expected client ID %q, got %q", profile.ClientID, again.ClientID)
	}
}

func TestManager_CreateOrUpdate(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	weights := client.PriorityWeights{Fuel: 0.5, Time: 0.2, Safety: 0.2, Cost: 0.1}
	profile, err := mgr.CreateOrUpdate(ctx, "acme", client.BusinessMetadata{
		BusinessType:       "logistics",
		FleetSize:          40,
		AvgRouteDistanceKm: 320,
		RiskTolerance:      client.RiskLow,
		Weights:            &weights,
	})
	if err != nil {
		t.Fatalf("failed to provision profile: %v", err)
	}

	if profile.BusinessType != "logistics" {
		t.Errorf("business type = %q, want logistics", profile.BusinessType)
	}
	if profile.RiskTolerance != client.RiskLow {
		t.Errorf("risk tolerance = %q, want low", profile.RiskTolerance)
	}

	// Update keeps rolling stats.
	if err := mgr.RecordOptimization(ctx, "acme", 0.3); err != nil {
		t.Fatalf("failed to record optimization: %v", err)
	}

	updated, err := mgr.CreateOrUpdate(ctx, "acme", client.BusinessMetadata{FleetSize: 45})
	if err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}
	if updated.FleetSize != 45 {
		t.Errorf("fleet size = %d, want 45", updated.FleetSize)
	}
	if updated.TotalRoutes != 1 {
		t.Errorf("total routes = %d, want 1 (stats must survive updates)", updated.TotalRoutes)
	}
}

func TestManager_CreateOrUpdate_InvalidRiskTolerance(t *testing.T) {
	mgr := newManager()

	_, err := mgr.CreateOrUpdate(context.Background(), "acme", client.BusinessMetadata{
		RiskTolerance: "reckless",
	})
	if err == nil {
		t.Fatal("expected error for unknown risk tolerance")
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	mgr := newManager()

	_, err := mgr.Get(context.Background(), "ghost")
	if !errors.Is(err, client.ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestManager_RecordOptimization_RollingAverage(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	if _, _, err := mgr.GetOrCreate(ctx, "acme", nil); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	for _, factor := range []float64{0.2, 0.3, 0.4} {
		if err := mgr.RecordOptimization(ctx, "acme", factor); err != nil {
			t.Fatalf("failed to record optimization: %v", err)
		}
	}

	profile, err := mgr.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if profile.TotalRoutes != 3 {
		t.Errorf("total routes = %d, want 3", profile.TotalRoutes)
	}
	if math.Abs(profile.AverageSavings-0.3) > 1e-9 {
		t.Errorf("average savings = %f, want 0.3", profile.AverageSavings)
	}
}

func TestManager_ClientIsolation(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	if _, _, err := mgr.GetOrCreate(ctx, "a", nil); err != nil {
		t.Fatalf("failed to create profile a: %v", err)
	}
	if _, _, err := mgr.GetOrCreate(ctx, "b", nil); err != nil {
		t.Fatalf("failed to create profile b: %v", err)
	}

	if err := mgr.RecordOptimization(ctx, "a", 0.4); err != nil {
		t.Fatalf("failed to record optimization: %v", err)
	}
	if err := mgr.RecordTraining(ctx, "a", 5, 0.9); err != nil {
		t.Fatalf("failed to record training: %v", err)
	}

	b, err := mgr.Get(ctx, "b")
	if err != nil {
		t.Fatalf("failed to get profile b: %v", err)
	}
	if b.TotalRoutes != 0 || b.TrainingDataPoints != 0 {
		t.Errorf("client b stats changed by client a activity: %+v", b)
	}
}

func TestManager_EnsureModel(t *testing.T) {
	mgr := newManager()

	net, err := mgr.EnsureModel("acme", nil)
	if err != nil {
		t.Fatalf("failed to ensure model: %v", err)
	}
	if net == nil {
		t.Fatal("expected a model")
	}

	// Same model on subsequent calls.
	again, err := mgr.EnsureModel("acme", nil)
	if err != nil {
		t.Fatalf("failed to ensure model: %v", err)
	}
	if again != net {
		t.Error("expected the same model instance")
	}
}

func TestManager_EnsureModel_SeededFromSnapshot(t *testing.T) {
	factory := model.NewFactory(7)
	global, err := factory.Create(model.DefaultArchitecture())
	if err != nil {
		t.Fatalf("failed to create global model: %v", err)
	}

	mgr := newManager()
	net, err := mgr.EnsureModel("acme", global.Snapshot())
	if err != nil {
		t.Fatalf("failed to ensure seeded model: %v", err)
	}

	features := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	want, err := global.Predict(features)
	if err != nil {
		t.Fatalf("global predict: %v", err)
	}
	got, err := net.Predict(features)
	if err != nil {
		t.Fatalf("client predict: %v", err)
	}
	if math.Abs(want-got) > 1e-12 {
		t.Errorf("seeded client model diverges from global: %f vs %f", got, want)
	}
}

func TestAdaptationTags(t *testing.T) {
	tests := []struct {
		name    string
		profile client.Profile
		want    string
	}{
		{
			name: "fuel dominant",
			profile: client.Profile{
				Weights: client.PriorityWeights{Fuel: 0.6, Time: 0.2, Safety: 0.1, Cost: 0.1},
			},
			want: "fuel-optimized routing prioritized",
		},
		{
			name: "time dominant",
			profile: client.Profile{
				Weights: client.PriorityWeights{Fuel: 0.1, Time: 0.6, Safety: 0.2, Cost: 0.1},
			},
			want: "time-critical routing prioritized",
		},
		{
			name:    "default cost dominant",
			profile: client.Profile{Weights: client.DefaultPriorityWeights()},
			want:    "cost-efficient routing prioritized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := client.AdaptationTags(&tt.profile)
			if len(tags) == 0 || tags[0] != tt.want {
				t.Errorf("tags = %v, want first tag %q", tags, tt.want)
			}
		})
	}
}

func TestAdaptationTags_RiskTolerance(t *testing.T) {
	p := client.Profile{Weights: client.DefaultPriorityWeights(), RiskTolerance: client.RiskLow}
	tags := client.AdaptationTags(&p)

	found := false
	for _, tag := range tags {
		if tag == "conservative optimization ceiling applied" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected conservative tag for low risk tolerance, got %v", tags)
	}
}
