package engine

import (
	"math"
	"testing"
)

func TestGuardClampsToBand(t *testing.T) {
	g := NewRangeGuard()

	tests := []struct {
		raw         float64
		want        float64
		wantClamped bool
	}{
		{0.30, 0.30, false},
		{0.15, 0.15, false},
		{0.45, 0.45, false},
		{0.05, 0.15, true},
		{0.60, 0.45, true},
		{-0.10, 0.15, true},
	}
	for _, tc := range tests {
		got := g.Apply(tc.raw)
		if got.Factor != tc.want || got.Clamped != tc.wantClamped {
			t.Errorf("Apply(%v) = (%v, %v), want (%v, %v)",
				tc.raw, got.Factor, got.Clamped, tc.want, tc.wantClamped)
		}
	}
}

func TestGuardLowToleranceCeiling(t *testing.T) {
	g := NewRangeGuard().WithCeiling(0.25)

	for _, raw := range []float64{0.20, 0.30, 0.45, 0.60} {
		got := g.Apply(raw)
		if got.Factor > 0.25 {
			t.Errorf("Apply(%v) = %v, ceiling 0.25 violated", raw, got.Factor)
		}
	}
}

func TestGuardUpwardBias(t *testing.T) {
	g := NewRangeGuard().WithUpwardBias(0.01)

	got := g.Apply(0.30)
	if math.Abs(got.Factor-0.31) > 1e-12 {
		t.Errorf("Apply(0.30) = %v, want 0.31", got.Factor)
	}
	if got.Clamped {
		t.Error("bias alone must not report clamping")
	}

	// Bias never pushes past the ceiling.
	got = g.Apply(0.449)
	if got.Factor > FactorCeiling {
		t.Errorf("Apply(0.449) = %v, exceeds ceiling", got.Factor)
	}
}

func TestConfidenceSweetSpotBoost(t *testing.T) {
	base := ConfidenceInput{
		Factor:          0.22,
		RollingAccuracy: 0.85,
		TrafficSupplied: true,
		WeatherSupplied: true,
		DriverSupplied:  true,
		VehicleSupplied: true,
	}

	inSpot := EstimateConfidence(base)
	outOfSpot := base
	outOfSpot.Factor = 0.18
	if inSpot <= EstimateConfidence(outOfSpot) {
		t.Errorf("sweet spot confidence %v not above out-of-spot", inSpot)
	}
	if math.Abs(inSpot-0.85*1.1) > 1e-9 {
		t.Errorf("sweet spot confidence = %v, want %v", inSpot, 0.85*1.1)
	}
}

func TestConfidenceClampPenalty(t *testing.T) {
	in := ConfidenceInput{
		Factor:          0.18,
		Clamped:         true,
		RollingAccuracy: 1.0,
		TrafficSupplied: true,
		WeatherSupplied: true,
		DriverSupplied:  true,
		VehicleSupplied: true,
	}
	got := EstimateConfidence(in)
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("clamped confidence = %v, want floor 0.75 (1.0*0.7 below floor)", got)
	}
}

func TestConfidenceQualityScore(t *testing.T) {
	in := ConfidenceInput{
		Factor:          0.18,
		RollingAccuracy: 1.0,
	}
	// All absent: (0.7+0.8+0.6+0.7)/4 = 0.7
	got := EstimateConfidence(in)
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("all-defaults confidence = %v, want floor 0.75", got)
	}

	in.TrafficSupplied = true
	in.WeatherSupplied = true
	in.DriverSupplied = true
	in.VehicleSupplied = true
	got = EstimateConfidence(in)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("full-quality confidence = %v, want 1.0", got)
	}
}

func TestConfidenceLearningBonus(t *testing.T) {
	in := ConfidenceInput{
		Factor:          0.18,
		RollingAccuracy: 0.80,
		TrafficSupplied: true,
		WeatherSupplied: true,
		DriverSupplied:  true,
		VehicleSupplied: true,
	}

	none := EstimateConfidence(in)
	in.TrainingRecords = 50
	with := EstimateConfidence(in)
	if math.Abs(with-(none+0.05)) > 1e-9 {
		t.Errorf("50 records bonus: got %v, want %v", with, none+0.05)
	}

	in.TrainingRecords = 1000
	capped := EstimateConfidence(in)
	if math.Abs(capped-(none+0.15)) > 1e-9 {
		t.Errorf("bonus not capped at 0.15: got %v, want %v", capped, none+0.15)
	}
}

func TestConfidenceHighFactorFloor(t *testing.T) {
	in := ConfidenceInput{
		Factor:          0.30,
		Clamped:         true,
		RollingAccuracy: 0.5,
	}
	if got := EstimateConfidence(in); got < 0.92 {
		t.Errorf("high-factor confidence = %v, want >= 0.92", got)
	}
}

func TestConfidenceMatureClientFloor(t *testing.T) {
	in := ConfidenceInput{
		Factor:            0.18,
		RollingAccuracy:   0.5,
		MatureClientModel: true,
	}
	if got := EstimateConfidence(in); got < 0.90 {
		t.Errorf("mature-client confidence = %v, want >= 0.90", got)
	}
}

func TestConfidenceNeverAboveOne(t *testing.T) {
	in := ConfidenceInput{
		Factor:          0.30,
		RollingAccuracy: 1.0,
		TrainingRecords: 500,
		TrafficSupplied: true,
		WeatherSupplied: true,
		DriverSupplied:  true,
		VehicleSupplied: true,
	}
	if got := EstimateConfidence(in); got > 1.0 {
		t.Errorf("confidence = %v, want <= 1.0", got)
	}
}
