package savings_test

import (
	"math"
	"testing"

	"github.com/optiroute/optiroute/internal/savings"
)

func TestCalculate(t *testing.T) {
	result := savings.Calculate(savings.Input{
		Factor:     0.25,
		DistanceKm: 200,
	})

	if got, want := result.OptimizedDistanceKm, 150.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("optimized distance = %f, want %f", got, want)
	}
	if got, want := result.DistanceSavedKm, 50.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("distance saved = %f, want %f", got, want)
	}
	if got, want := result.OptimizedDurationHours, 150.0/45; math.Abs(got-want) > 1e-9 {
		t.Errorf("optimized duration = %f, want %f", got, want)
	}
	if got, want := result.TimeSavedHours, 50.0/45; math.Abs(got-want) > 1e-9 {
		t.Errorf("time saved = %f, want %f", got, want)
	}
	if got, want := result.FuelSavedLiters, 50*0.08; math.Abs(got-want) > 1e-9 {
		t.Errorf("fuel saved = %f, want %f", got, want)
	}
	if got, want := result.CostSaved, 50*0.08*1.5; math.Abs(got-want) > 1e-9 {
		t.Errorf("cost saved = %f, want %f", got, want)
	}
}

func TestCalculate_PercentageMatchesFactor(t *testing.T) {
	for _, factor := range []float64{0.08, 0.15, 0.2537, 0.45} {
		result := savings.Calculate(savings.Input{Factor: factor, DistanceKm: 300})
		if math.Abs(result.PercentageSaved-factor*100) > 1e-9 {
			t.Errorf("percentage saved = %f, want %f", result.PercentageSaved, factor*100)
		}
	}
}

func TestCalculate_FuelPriorityWeight(t *testing.T) {
	base := savings.Calculate(savings.Input{Factor: 0.2, DistanceKm: 100})
	weighted := savings.Calculate(savings.Input{Factor: 0.2, DistanceKm: 100, FuelPriorityWeight: 0.4})

	want := base.FuelSavedLiters * 1.4
	if math.Abs(weighted.FuelSavedLiters-want) > 1e-9 {
		t.Errorf("weighted fuel saved = %f, want %f", weighted.FuelSavedLiters, want)
	}
}

func TestCalculate_CustomFuelPrice(t *testing.T) {
	price := 1.8
	result := savings.Calculate(savings.Input{Factor: 0.2, DistanceKm: 100, FuelPrice: &price})

	want := result.FuelSavedLiters * 1.8
	if math.Abs(result.CostSaved-want) > 1e-9 {
		t.Errorf("cost saved = %f, want %f", result.CostSaved, want)
	}
}

func TestCalculate_FallbackFactor(t *testing.T) {
	result := savings.Calculate(savings.Input{Factor: 0.08, DistanceKm: 300})

	if got, want := result.OptimizedDistanceKm, 276.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("optimized distance = %f, want %f", got, want)
	}
	if math.Abs(result.PercentageSaved-8) > 1e-9 {
		t.Errorf("percentage saved = %f, want 8", result.PercentageSaved)
	}
}
