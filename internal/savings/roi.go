package savings

import "math"

// ROI defaults.
const (
	// DefaultSubscriptionCost is the monthly engine fee used when no
	// override is configured.
	DefaultSubscriptionCost = 100.0

	// DefaultMonthlyRoutes is assumed for clients without history.
	DefaultMonthlyRoutes = 20.0
)

// ROIConfig holds the fixed financial parameters of an ROI projection.
type ROIConfig struct {
	// SubscriptionCost is the monthly engine fee. Default: 100.
	SubscriptionCost float64

	// DefaultMonthlyRoutes is used when no volume estimate exists. Default: 20.
	DefaultMonthlyRoutes float64
}

func (c ROIConfig) withDefaults() ROIConfig {
	if c.SubscriptionCost <= 0 {
		c.SubscriptionCost = DefaultSubscriptionCost
	}
	if c.DefaultMonthlyRoutes <= 0 {
		c.DefaultMonthlyRoutes = DefaultMonthlyRoutes
	}
	return c
}

// ROIInput describes one ROI projection.
type ROIInput struct {
	// Savings is the per-route savings result being projected.
	Savings Result

	// MonthlyRoutes is the estimated monthly route volume. Values <= 0
	// fall back to the configured default.
	MonthlyRoutes float64
}

// ROIResult projects monthly and annual financial return.
type ROIResult struct {
	MonthlyRoutes      float64
	MonthlyFuelSavings float64
	MonthlyTimeSavings float64
	MonthlyCostSavings float64
	YearlyROIPercent   float64
	BreakEvenDays      int
	BreakEvenReachable bool
}

// CalculateROI projects financial return for a savings result at a given
// monthly volume. When monthly cost savings are not positive, break-even
// is reported as unreachable rather than a negative day count.
func CalculateROI(cfg ROIConfig, in ROIInput) ROIResult {
	cfg = cfg.withDefaults()

	routes := in.MonthlyRoutes
	if routes <= 0 {
		routes = cfg.DefaultMonthlyRoutes
	}

	monthlyFuel := routes * in.Savings.FuelSavedLiters * BaselineFuelPrice
	monthlyTime := routes * in.Savings.TimeSavedHours
	monthlyCost := routes * in.Savings.CostSaved

	result := ROIResult{
		MonthlyRoutes:      routes,
		MonthlyFuelSavings: monthlyFuel,
		MonthlyTimeSavings: monthlyTime,
		MonthlyCostSavings: monthlyCost,
		YearlyROIPercent:   (monthlyCost * 12) / (cfg.SubscriptionCost * 12) * 100,
	}

	if monthlyCost > 0 {
		result.BreakEvenDays = int(math.Round(cfg.SubscriptionCost / (monthlyCost / 30)))
		result.BreakEvenReachable = true
	}

	return result
}

// MonthlyRouteEstimate derives a monthly volume from a lifetime route
// count, falling back to the default for young clients.
func MonthlyRouteEstimate(totalRoutes int64) float64 {
	if totalRoutes <= 0 {
		return 0
	}
	estimate := float64(totalRoutes) / 12
	if estimate < 1 {
		return 1
	}
	return estimate
}
