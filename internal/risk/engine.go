package risk

import (
	"errors"
	"fmt"
	"time"
)

var ErrInsufficientData = errors.New("insufficient data for simulation")

// Engine is the package's front door: a stateless calculator over
// return series. Callers assemble the returns; the engine never fetches
// anything.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// VaR computes historical VaR and CVaR at the given confidence.
func (e *Engine) VaR(returns []float64, confidence float64) VaRResult {
	return CalculateVaR(returns, confidence)
}

// ParametricVaR computes normal-assumption VaR and CVaR from moments.
func (e *Engine) ParametricVaR(mean, stdDev, confidence float64) VaRResult {
	return CalculateParametricVaR(mean, stdDev, confidence)
}

// MonteCarlo simulates the holding-period return distribution. Fails
// closed when the history is shorter than the configured minimum.
func (e *Engine) MonteCarlo(returns []float64, config MonteCarloConfig) (*MonteCarloResult, error) {
	if len(returns) < config.MinSamples {
		return nil, fmt.Errorf("%w: got %d returns, need %d",
			ErrInsufficientData, len(returns), config.MinSamples)
	}
	return NewMonteCarloSimulator(config).SimulateReturns(returns)
}

// CheckLimits evaluates a return history against the limits and lists
// every violated threshold.
func (e *Engine) CheckLimits(returns []float64, limits RiskLimits) *LimitCheck {
	check := &LimitCheck{
		Passed:    true,
		CheckedAt: time.Now(),
	}

	v := CalculateVaR(returns, 0.95)
	check.VaR95 = v.VaR
	check.CVaR95 = v.CVaR
	check.MaxDrawdown = MaxDrawdown(returns)

	if limits.MaxVaR95 > 0 && check.VaR95 > limits.MaxVaR95 {
		check.Passed = false
		check.Violations = append(check.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", check.VaR95, limits.MaxVaR95))
	}
	if limits.MaxCVaR95 > 0 && check.CVaR95 > limits.MaxCVaR95 {
		check.Passed = false
		check.Violations = append(check.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", check.CVaR95, limits.MaxCVaR95))
	}
	if limits.MaxDrawdown > 0 && check.MaxDrawdown > limits.MaxDrawdown {
		check.Passed = false
		check.Violations = append(check.Violations,
			fmt.Sprintf("max drawdown %.4f exceeds limit %.4f", check.MaxDrawdown, limits.MaxDrawdown))
	}

	return check
}
