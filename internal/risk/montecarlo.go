package risk

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// MonteCarloSimulator generates holding-period return distributions from
// a daily portfolio return history. Not safe for concurrent use; the rng
// is owned by the simulator.
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator creates a simulator. A zero seed draws a
// time-based one, any other value makes runs reproducible.
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SimulateReturns runs the configured number of holding-period paths
// over the observed daily returns and summarizes the outcome
// distribution.
func (mc *MonteCarloSimulator) SimulateReturns(returns []float64) (*MonteCarloResult, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("empty return series")
	}
	if mc.config.NumSimulations <= 0 || mc.config.HoldingPeriod <= 0 {
		return nil, fmt.Errorf("invalid simulation config: %d runs, %d day horizon",
			mc.config.NumSimulations, mc.config.HoldingPeriod)
	}

	var outcomes []float64
	switch mc.config.Method {
	case MethodNormal:
		outcomes = mc.normalPaths(returns)
	default:
		outcomes = mc.bootstrapPaths(returns)
	}

	return mc.summarize(outcomes, len(returns)), nil
}

// bootstrapPaths compounds HoldingPeriod daily returns drawn with
// replacement from the observed history.
func (mc *MonteCarloSimulator) bootstrapPaths(returns []float64) []float64 {
	outcomes := make([]float64, mc.config.NumSimulations)
	for i := range outcomes {
		cum := 1.0
		for d := 0; d < mc.config.HoldingPeriod; d++ {
			cum *= 1 + returns[mc.rng.Intn(len(returns))]
		}
		outcomes[i] = cum - 1
	}
	return outcomes
}

// normalPaths draws holding-period returns from a normal fit of the
// observed daily returns, scaled by the horizon.
func (mc *MonteCarloSimulator) normalPaths(returns []float64) []float64 {
	mean := Mean(returns) * float64(mc.config.HoldingPeriod)
	std := StdDev(returns) * math.Sqrt(float64(mc.config.HoldingPeriod))

	outcomes := make([]float64, mc.config.NumSimulations)
	for i := range outcomes {
		outcomes[i] = mean + std*mc.rng.NormFloat64()
	}
	return outcomes
}

func (mc *MonteCarloSimulator) summarize(outcomes []float64, sampleCount int) *MonteCarloResult {
	var95 := CalculateVaR(outcomes, 0.95)
	var99 := CalculateVaR(outcomes, 0.99)

	return &MonteCarloResult{
		RunID:            uuid.NewString(),
		RunDate:          time.Now(),
		Config:           mc.config,
		InputSampleCount: sampleCount,
		MeanReturn:       Mean(outcomes),
		StdDev:           StdDev(outcomes),
		VaR95:            var95.VaR,
		VaR99:            var99.VaR,
		CVaR95:           var95.CVaR,
		CVaR99:           var99.CVaR,
		Percentiles:      CalculatePercentiles(outcomes, []int{1, 5, 10, 25, 50, 75, 90, 95, 99}),
	}
}
