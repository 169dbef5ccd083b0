package engine

import (
	"math"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

func TestExtractDefaults(t *testing.T) {
	e, err := NewFeatureExtractor(ExtractorConfig{})
	if err != nil {
		t.Fatalf("NewFeatureExtractor: %v", err)
	}

	features := e.Extract(ExtractInput{
		Route: RouteContext{RequestedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
	})

	want := []float64{100, 0.5, 0.7, 0.6, 1.0, 0.8, 1.4, 0.75}
	if len(features) != FeatureCount {
		t.Fatalf("got %d features, want %d", len(features), FeatureCount)
	}
	for i, w := range want {
		if features[i] != w {
			t.Errorf("slot %d = %v, want %v", i, features[i], w)
		}
	}
}

func TestExtractSuppliedValues(t *testing.T) {
	e, _ := NewFeatureExtractor(ExtractorConfig{})

	features := e.Extract(ExtractInput{
		Route: RouteContext{
			DistanceKm:        200,
			TrafficCongestion: fp(0.3),
			WeatherScore:      fp(0.9),
			FuelPrice:         fp(1.8),
			RequestedAt:       time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		Vehicle:         &VehicleProfile{Type: VehicleElectric},
		Driver:          &DriverProfile{YearsExperience: 10},
		HistoricalScore: fp(0.3),
	})

	want := []float64{200, 0.3, 0.95, 1.0, 0.3, 0.9, 1.8, 0.3}
	for i, w := range want {
		if features[i] != w {
			t.Errorf("slot %d = %v, want %v", i, features[i], w)
		}
	}
}

func TestVehicleEfficiencyTable(t *testing.T) {
	e, _ := NewFeatureExtractor(ExtractorConfig{})

	tests := []struct {
		vtype VehicleType
		want  float64
	}{
		{VehicleElectric, 0.95},
		{VehicleHybrid, 0.85},
		{VehicleDiesel, 0.75},
		{VehiclePetrol, 0.65},
		{VehicleTruck, 0.45},
		{VehicleType("rickshaw"), 0.7},
	}
	for _, tc := range tests {
		got := e.vehicleEfficiency(&VehicleProfile{Type: tc.vtype})
		if got != tc.want {
			t.Errorf("efficiency(%s) = %v, want %v", tc.vtype, got, tc.want)
		}
	}

	// Explicit score beats the table.
	got := e.vehicleEfficiency(&VehicleProfile{Type: VehicleTruck, EfficiencyScore: fp(0.6)})
	if got != 0.6 {
		t.Errorf("explicit score = %v, want 0.6", got)
	}
}

func TestEfficiencyOverrideValidation(t *testing.T) {
	_, err := NewFeatureExtractor(ExtractorConfig{
		EfficiencyOverrides: map[VehicleType]float64{VehicleType("cng"): 1.2},
	})
	if err == nil {
		t.Fatal("expected error for out-of-range efficiency override")
	}
}

func TestTimeOfDayScore(t *testing.T) {
	tests := []struct {
		hour int
		want float64
	}{
		{7, 0.3},
		{8, 0.3},
		{17, 0.3},
		{18, 0.3},
		{10, 1.0},
		{15, 1.0},
		{21, 0.8},
		{3, 0.8},
		{9, 0.7},
		{16, 0.7},
		{19, 0.7},
	}
	for _, tc := range tests {
		at := time.Date(2026, 3, 10, tc.hour, 30, 0, 0, time.UTC)
		if got := timeOfDayScore(at); got != tc.want {
			t.Errorf("hour %d = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestExperienceCappedAtMaturity(t *testing.T) {
	e, _ := NewFeatureExtractor(ExtractorConfig{})

	features := e.Extract(ExtractInput{
		Route:  RouteContext{DistanceKm: 50, RequestedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		Driver: &DriverProfile{YearsExperience: 25},
	})
	if features[featExperience] != 1.0 {
		t.Errorf("experience = %v, want 1.0", features[featExperience])
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	norm := NewNormalizer()
	features := []float64{350, 0.4, 0.85, 0.9, 1.0, 0.9, 1.6, 0.6}

	normalized, err := norm.Normalize(features)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	restored, err := norm.Denormalize(normalized)
	if err != nil {
		t.Fatalf("Denormalize: %v", err)
	}
	for i := range features {
		if math.Abs(restored[i]-features[i]) > 1e-9 {
			t.Errorf("slot %d round-trip = %v, want %v", i, restored[i], features[i])
		}
	}
}

func TestClientNormalizerSeedsDistance(t *testing.T) {
	norm := NewClientNormalizer(250, 0.3)

	normalized, err := norm.Normalize([]float64{250, 0.5, 0.7, 0.6, 0.5, 0.8, 1.4, 0.3})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if normalized[featDistance] != 0 {
		t.Errorf("distance z-score = %v, want 0 at the client mean", normalized[featDistance])
	}
	if normalized[featHistory] != 0 {
		t.Errorf("history z-score = %v, want 0 at the client mean", normalized[featHistory])
	}
}

func TestNormalizeWrongWidth(t *testing.T) {
	norm := NewNormalizer()
	if _, err := norm.Normalize([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected error for wrong feature width")
	}
}
