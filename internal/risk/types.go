// Package risk holds pure risk calculations over portfolio return series:
// historical and parametric VaR/CVaR, Monte Carlo resampling, and limit
// checks. Data assembly lives with the callers; nothing in here touches
// storage or market data.
package risk

import "time"

// VaR and CVaR are reported with losses positive throughout the package:
// VaR=0.05 means a 5% loss at the stated confidence.
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"` // expected shortfall beyond VaR
}

// MonteCarloMethod selects how simulated paths are generated.
type MonteCarloMethod string

const (
	// MethodBootstrap resamples observed daily returns with replacement.
	MethodBootstrap MonteCarloMethod = "bootstrap"
	// MethodNormal draws from a normal fit of the observed returns.
	MethodNormal MonteCarloMethod = "normal"
)

// MonteCarloConfig is recorded inside every result so a run can be
// reproduced from its output alone.
type MonteCarloConfig struct {
	NumSimulations int              `json:"num_simulations"`
	HoldingPeriod  int              `json:"holding_period"` // days per simulated path
	Method         MonteCarloMethod `json:"method"`
	Seed           int64            `json:"seed"`        // 0 = time-seeded
	MinSamples     int              `json:"min_samples"` // fail closed below this
}

// DefaultMonteCarloConfig simulates one rebalance interval ahead.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumSimulations: 10000,
		HoldingPeriod:  21,
		Method:         MethodBootstrap,
		Seed:           0,
		MinSamples:     30,
	}
}

// MonteCarloResult is the distribution summary of the simulated
// holding-period returns.
type MonteCarloResult struct {
	RunID            string           `json:"run_id"`
	RunDate          time.Time        `json:"run_date"`
	Config           MonteCarloConfig `json:"config"`
	InputSampleCount int              `json:"input_sample_count"`
	MeanReturn       float64          `json:"mean_return"`
	StdDev           float64          `json:"std_dev"`
	VaR95            float64          `json:"var_95"`
	VaR99            float64          `json:"var_99"`
	CVaR95           float64          `json:"cvar_95"`
	CVaR99           float64          `json:"cvar_99"`
	Percentiles      map[int]float64  `json:"percentiles"`
}

// RiskLimits are the thresholds a portfolio return history is checked
// against.
type RiskLimits struct {
	MaxVaR95    float64 `json:"max_var_95"`
	MaxCVaR95   float64 `json:"max_cvar_95"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// DefaultRiskLimits returns conservative defaults for a long-only
// equity book.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxVaR95:    0.05,
		MaxCVaR95:   0.07,
		MaxDrawdown: 0.15,
	}
}

// LimitCheck is the outcome of evaluating a return history against
// RiskLimits.
type LimitCheck struct {
	Passed      bool      `json:"passed"`
	VaR95       float64   `json:"var_95"`
	CVaR95      float64   `json:"cvar_95"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Violations  []string  `json:"violations,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}
