package signals

import (
	"context"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// FundamentalCalculator scores valuation and balance-sheet quality from
// a point-in-time fundamentals snapshot. Unknown (zero) metrics score
// neutral so that missing data never sinks or carries a stock.
type FundamentalCalculator struct {
	weights strategyconfig.FundamentalWeights
	log     *logger.Logger
}

// NewFundamentalCalculator creates a fundamental calculator.
func NewFundamentalCalculator(weights strategyconfig.FundamentalWeights, log *logger.Logger) *FundamentalCalculator {
	return &FundamentalCalculator{weights: weights, log: log}
}

// Calculate returns the weighted fundamental score in [0,1].
func (c *FundamentalCalculator) Calculate(ctx context.Context, f contracts.Fundamentals) float64 {
	peScore := scorePERatio(f.PERatio)
	roeScore := scoreROE(f.ROE)
	deScore := scoreDebtToEquity(f.DebtToEquity)
	crScore := scoreCurrentRatio(f.CurrentRatio)

	score := clamp01(c.weights.PERatio*peScore +
		c.weights.ROE*roeScore +
		c.weights.DebtToEquity*deScore +
		c.weights.CurrentRatio*crScore)

	c.log.WithFields(map[string]interface{}{
		"symbol": f.Symbol,
		"pe":     peScore,
		"roe":    roeScore,
		"de":     deScore,
		"cr":     crScore,
		"score":  score,
	}).Debug("Calculated fundamental score")

	return score
}

// scorePERatio favors cheaper earnings multiples. Zero or negative P/E
// (unknown, or loss-making without a meaningful multiple) scores neutral.
func scorePERatio(pe float64) float64 {
	switch {
	case pe <= 0:
		return 0.5
	case pe < 15:
		return 0.9
	case pe < 20:
		return 0.7
	case pe < 25:
		return 0.5
	default:
		return 0.3
	}
}

// scoreROE bands return on equity, given in percent.
func scoreROE(roe float64) float64 {
	switch {
	case roe == 0:
		return 0.5
	case roe > 25:
		return 1.0
	case roe > 20:
		return 0.9
	case roe > 15:
		return 0.7
	case roe > 10:
		return 0.5
	case roe > 5:
		return 0.3
	default:
		return 0.1
	}
}

// scoreDebtToEquity favors lighter balance sheets. Zero reads as
// debt-free rather than unknown.
func scoreDebtToEquity(de float64) float64 {
	switch {
	case de < 0.5:
		return 0.9
	case de < 1.0:
		return 0.7
	case de < 1.5:
		return 0.5
	default:
		return 0.3
	}
}

func scoreCurrentRatio(cr float64) float64 {
	if cr == 0 {
		return 0.5
	}
	if cr > 1.2 {
		return 0.8
	}
	return 0.5
}
