package engine

// Business-approved operating band for optimization factors. Predictions
// outside this band are clamped, never rejected.
const (
	FactorFloor   = 0.15
	FactorCeiling = 0.45
)

// GuardResult is a clamped prediction plus whether clamping fired.
type GuardResult struct {
	Factor  float64
	Clamped bool
}

// RangeGuard clamps raw model output into the approved band. Per-client
// risk tolerance narrows the ceiling and may bias the factor upward.
type RangeGuard struct {
	floor   float64
	ceiling float64
	bias    float64
}

// NewRangeGuard returns a guard with the default band.
func NewRangeGuard() *RangeGuard {
	return &RangeGuard{floor: FactorFloor, ceiling: FactorCeiling}
}

// WithCeiling returns a copy of the guard with a tightened ceiling. Values
// outside the default band are ignored.
func (g *RangeGuard) WithCeiling(ceiling float64) *RangeGuard {
	out := *g
	if ceiling >= g.floor && ceiling <= FactorCeiling {
		out.ceiling = ceiling
	}
	return &out
}

// WithUpwardBias returns a copy of the guard that nudges predictions up
// before clamping. Used for high risk tolerance clients.
func (g *RangeGuard) WithUpwardBias(bias float64) *RangeGuard {
	out := *g
	if bias > 0 {
		out.bias = bias
	}
	return &out
}

// Apply clamps the raw factor. The Clamped flag reports whether the raw
// value fell outside the default band, which feeds the confidence penalty.
func (g *RangeGuard) Apply(raw float64) GuardResult {
	biased := raw + g.bias
	clamped := raw < FactorFloor || raw > FactorCeiling

	factor := biased
	if factor < g.floor {
		factor = g.floor
	}
	if factor > g.ceiling {
		factor = g.ceiling
	}
	return GuardResult{Factor: factor, Clamped: clamped}
}
