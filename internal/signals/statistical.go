package signals

import (
	"context"
	"math"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// minStatHistory is the fewest bars needed before risk metrics are
// computed. Shorter series score neutral with a zero Sharpe, which the
// satellite eligibility filter rejects, so young listings stay out of
// the sleeve until they build a track record.
const minStatHistory = 63

const (
	// betaDeviationTolerance is how far from the market beta of 1 a
	// stock may drift before its beta band score starts dropping.
	betaDeviationTolerance = 0.3
	// volatilityRatioCeiling marks volatility clearly above the
	// benchmark's; ratios beyond it are penalized progressively.
	volatilityRatioCeiling = 1.5
)

// StatisticalSignals carries the statistical sub-score together with
// the raw risk metrics the eligibility screen reads.
type StatisticalSignals struct {
	Score           float64
	Sharpe          float64
	Beta            float64
	VolatilityRatio float64
}

// StatisticalCalculator scores risk-adjusted return quality: a blended
// Sharpe ratio, volatility relative to the benchmark, and beta
// proximity to the market.
type StatisticalCalculator struct {
	params strategyconfig.StatisticalParams
	log    *logger.Logger
}

// NewStatisticalCalculator creates a statistical calculator.
func NewStatisticalCalculator(params strategyconfig.StatisticalParams, log *logger.Logger) *StatisticalCalculator {
	return &StatisticalCalculator{params: params, log: log}
}

// Calculate returns the weighted statistical score for a stock. Without
// a benchmark the beta and volatility ratio stay at their market-neutral
// defaults and only the Sharpe leg differentiates.
func (c *StatisticalCalculator) Calculate(ctx context.Context, symbol string, series, benchmark *contracts.PriceSeries) StatisticalSignals {
	out := StatisticalSignals{Score: 0.5, Beta: 1, VolatilityRatio: 1}
	if series == nil || series.Len() < minStatHistory {
		return out
	}
	closes := closesOf(series)

	// Blend the trailing half-window and full-window Sharpe ratios,
	// weighting the longer period higher.
	full := returnsOf(tail(closes, c.params.LookbackDays+1))
	half := returnsOf(tail(closes, c.params.LookbackDays/2+1))
	sharpeFull := sharpeRatio(full, c.params.RiskFreeRate)
	sharpeHalf := sharpeRatio(half, c.params.RiskFreeRate)
	out.Sharpe = sharpeFull
	blended := 0.6*sharpeFull + 0.4*sharpeHalf

	if benchmark != nil && !benchmark.Empty() {
		s, b := alignedCloses(series, benchmark, c.params.LookbackDays+1)
		if len(s) >= minStatHistory {
			out.Beta = betaOf(returnsOf(s), returnsOf(b))
		}
		sHalf, bHalf := alignedCloses(series, benchmark, c.params.LookbackDays/2+1)
		if len(sHalf) >= minStatHistory {
			stockVol := annualizedVol(returnsOf(sHalf))
			benchVol := annualizedVol(returnsOf(bHalf))
			if benchVol > 0 {
				out.VolatilityRatio = stockVol / benchVol
			}
		}
	}

	sharpeScore := clamp01((blended + 2) / 5)
	betaScore := scoreBetaDeviation(math.Abs(out.Beta - 1))
	volScore := scoreVolatilityRatio(out.VolatilityRatio)

	out.Score = clamp01(c.params.SharpeWeight*sharpeScore +
		c.params.VolatilityWeight*volScore +
		c.params.BetaWeight*betaScore)

	c.log.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"sharpe":    out.Sharpe,
		"beta":      out.Beta,
		"vol_ratio": out.VolatilityRatio,
		"score":     out.Score,
	}).Debug("Calculated statistical score")

	return out
}

// scoreBetaDeviation rewards market-like betas. Deviations within the
// tolerance score full marks.
func scoreBetaDeviation(dev float64) float64 {
	switch {
	case dev <= betaDeviationTolerance:
		return 1.0
	case dev <= 0.5:
		return 0.7
	case dev <= 0.8:
		return 0.4
	default:
		return 0.2
	}
}

// scoreVolatilityRatio rewards volatility at or below the benchmark's
// and penalizes progressively beyond the ceiling.
func scoreVolatilityRatio(ratio float64) float64 {
	switch {
	case ratio <= 1.0:
		return 1.0
	case ratio <= volatilityRatioCeiling:
		return 0.8
	case ratio <= 2.0:
		return 0.5
	case ratio <= 2.5:
		return 0.3
	default:
		return 0.1
	}
}
