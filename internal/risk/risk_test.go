package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateVaRHistorical(t *testing.T) {
	// 5 losses and 15 gains; at 95% the index is floor(0.05*20)=1,
	// the second-worst return.
	returns := []float64{-0.05, -0.04, -0.03, -0.02, -0.01}
	for i := 0; i < 15; i++ {
		returns = append(returns, 0.005*float64(i+1))
	}

	res := CalculateVaR(returns, 0.95)
	assert.InDelta(t, 0.04, res.VaR, 1e-12, "VaR95")
	assert.InDelta(t, 0.045, res.CVaR, 1e-12, "CVaR95")
	assert.Equal(t, 0.95, res.Confidence, "confidence should be carried")
}

func TestCalculateVaRNoLosses(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03, 0.04}
	res := CalculateVaR(returns, 0.95)
	assert.Zero(t, res.VaR, "all-gain series has no VaR")
	assert.Zero(t, res.CVaR, "all-gain series has no CVaR")
}

func TestCalculateVaREmpty(t *testing.T) {
	res := CalculateVaR(nil, 0.99)
	assert.Zero(t, res.VaR)
	assert.Zero(t, res.CVaR)
}

func TestCalculateParametricVaR(t *testing.T) {
	res := CalculateParametricVaR(0, 0.02, 0.95)
	assert.InDelta(t, 1.645*0.02, res.VaR, 1e-9, "parametric VaR")

	wantCVaR := 1.645*0.02 + 0.02*NormPDF(1.645)/0.05
	assert.InDelta(t, wantCVaR, res.CVaR, 1e-9, "parametric CVaR")

	// A positive mean shrinks the loss quantile.
	shifted := CalculateParametricVaR(0.01, 0.02, 0.95)
	assert.Less(t, shifted.VaR, res.VaR, "positive mean should reduce VaR")
}

func TestNormInv(t *testing.T) {
	assert.InDelta(t, 0.0, NormInv(0.5), 1e-9)
	assert.InDelta(t, 1.96, NormInv(0.975), 1e-9)
	assert.InDelta(t, 1.0, NormInv(0.8413), 1e-2)
	assert.InDelta(t, 3.090, NormInv(0.999), 1e-2)
	assert.Zero(t, NormInv(0), "out-of-range p must return 0")
	assert.Zero(t, NormInv(1), "out-of-range p must return 0")
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{90, 4.6},
		{100, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 1e-12, "p%.0f", tt.p)
	}
}

func TestMaxDrawdown(t *testing.T) {
	// 1.0 -> 1.1 -> 0.55 -> 0.66: deepest fall is 50% off the 1.1 peak.
	returns := []float64{0.1, -0.5, 0.2}
	assert.InDelta(t, 0.5, MaxDrawdown(returns), 1e-12)

	assert.Zero(t, MaxDrawdown([]float64{0.01, 0.02}), "rising series has no drawdown")
}

func TestMonteCarloConstantReturns(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.Seed = 42
	cfg.NumSimulations = 500
	cfg.HoldingPeriod = 5

	returns := make([]float64, 60)
	for i := range returns {
		returns[i] = 0.01
	}

	res, err := NewMonteCarloSimulator(cfg).SimulateReturns(returns)
	require.NoError(t, err)

	// Every bootstrap path compounds the same 1% five times.
	want := math.Pow(1.01, 5) - 1
	assert.InDelta(t, want, res.MeanReturn, 1e-12, "mean")
	assert.InDelta(t, 0, res.StdDev, 1e-12, "stddev")
	assert.Zero(t, res.VaR95, "VaR95")
	assert.Equal(t, 60, res.InputSampleCount)
	assert.Equal(t, int64(42), res.Config.Seed, "config should be recorded in the result")
}

func TestMonteCarloReproducibleWithSeed(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.Seed = 7
	cfg.NumSimulations = 1000
	cfg.HoldingPeriod = 10
	cfg.Method = MethodNormal

	returns := []float64{0.01, -0.02, 0.015, -0.005, 0.02, -0.01, 0.005, 0.012, -0.008, 0.003,
		0.007, -0.015, 0.01, 0.002, -0.004, 0.018, -0.02, 0.009, -0.001, 0.006,
		0.011, -0.012, 0.004, 0.008, -0.006, 0.013, -0.009, 0.001, 0.016, -0.003}

	a, err := NewMonteCarloSimulator(cfg).SimulateReturns(returns)
	require.NoError(t, err)
	b, err := NewMonteCarloSimulator(cfg).SimulateReturns(returns)
	require.NoError(t, err)

	assert.Equal(t, a.MeanReturn, b.MeanReturn, "mean")
	assert.Equal(t, a.StdDev, b.StdDev, "stddev")
	assert.Equal(t, a.VaR95, b.VaR95, "VaR95")
	for _, p := range []int{1, 50, 99} {
		assert.Equal(t, a.Percentiles[p], b.Percentiles[p], "percentile %d", p)
	}
}

func TestEngineMonteCarloFailsClosed(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	returns := []float64{0.01, -0.01, 0.02}

	_, err := NewEngine().MonteCarlo(returns, cfg)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEngineCheckLimits(t *testing.T) {
	engine := NewEngine()
	limits := DefaultRiskLimits()

	// Quiet series stays inside every limit.
	quiet := make([]float64, 60)
	for i := range quiet {
		if i%2 == 0 {
			quiet[i] = 0.002
		} else {
			quiet[i] = -0.001
		}
	}
	check := engine.CheckLimits(quiet, limits)
	assert.True(t, check.Passed, "quiet series should pass, violations: %v", check.Violations)

	// Crash days blow through VaR, CVaR and drawdown. Four of them put
	// the 5% quantile (index 3 of 60) inside the crash cluster.
	crashy := append([]float64{}, quiet...)
	crashy[10], crashy[11], crashy[12], crashy[13] = -0.20, -0.18, -0.15, -0.12
	check = engine.CheckLimits(crashy, limits)
	assert.False(t, check.Passed, "crash series should fail the limit check")
	assert.NotEmpty(t, check.Violations)
	assert.Greater(t, check.VaR95, limits.MaxVaR95)
}
