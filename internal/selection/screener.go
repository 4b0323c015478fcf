package selection

import (
	"context"
	"math"
	"sort"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// liquidityWindow is the trailing bar count for the average-volume filter.
const liquidityWindow = 21

// Filter names reported in the drop counts.
const (
	filterSharpe    = "sharpe"
	filterTrend     = "trend"
	filterTopDecile = "top_decile"
	filterLiquidity = "liquidity"
)

// Screener applies the satellite sleeve's eligibility filters over the
// scored universe: risk-adjusted return, trend confirmation, top decile
// by composite score, and liquidity.
type Screener struct {
	sel strategyconfig.Selection
	log *logger.Logger
}

func NewScreener(cfg *strategyconfig.Config, log *logger.Logger) *Screener {
	return &Screener{sel: cfg.Selection, log: log}
}

// Screen returns the eligible candidates in symbol order plus the count
// of symbols dropped by each filter. Filters run in sequence, so a stock
// is counted only against the first filter it fails.
func (s *Screener) Screen(ctx context.Context, snap *contracts.MarketSnapshot, scores contracts.ScoreTable) ([]string, map[string]int) {
	filtered := map[string]int{}

	symbols := make([]string, 0, len(scores))
	for sym := range scores {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	// Phase 1: absolute signal filters.
	passed := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if reason := s.checkSignals(scores[sym]); reason != "" {
			filtered[reason]++
			continue
		}
		passed = append(passed, sym)
	}

	// Phase 2: relative filter, top decile by composite score.
	passed = s.applyDecileFilter(passed, scores, filtered)

	// Phase 3: liquidity against the raw market data.
	eligible := make([]string, 0, len(passed))
	for _, sym := range passed {
		if reason := s.checkLiquidity(snap, sym); reason != "" {
			filtered[reason]++
			continue
		}
		eligible = append(eligible, sym)
	}

	s.log.WithFields(map[string]interface{}{
		"universe": len(scores),
		"eligible": len(eligible),
		"filters":  filtered,
	}).Info("Screened satellite candidates")

	return eligible, filtered
}

func (s *Screener) checkSignals(sc contracts.StockScore) string {
	if sc.Sharpe <= s.sel.MinSharpe {
		return filterSharpe
	}
	if sc.TrendScore < s.sel.MinTrendScore {
		return filterTrend
	}
	return ""
}

func (s *Screener) applyDecileFilter(passed []string, scores contracts.ScoreTable, filtered map[string]int) []string {
	if s.sel.TopDecilePct <= 0 || len(passed) == 0 {
		return passed
	}

	composites := make([]float64, 0, len(passed))
	for _, sym := range passed {
		composites = append(composites, scores[sym].Composite)
	}
	sort.Float64s(composites)
	cut := quantile(composites, 1-s.sel.TopDecilePct)

	kept := make([]string, 0, len(passed))
	for _, sym := range passed {
		if scores[sym].Composite >= cut {
			kept = append(kept, sym)
		} else {
			filtered[filterTopDecile]++
		}
	}
	return kept
}

func (s *Screener) checkLiquidity(snap *contracts.MarketSnapshot, sym string) string {
	if s.sel.MinAvgVolume > 0 {
		series := snap.Stocks[sym]
		if series == nil || series.AvgVolume(liquidityWindow) < s.sel.MinAvgVolume {
			return filterLiquidity
		}
	}
	if s.sel.MinMarketCap > 0 && snap.Fundamentals[sym].MarketCap < s.sel.MinMarketCap {
		return filterLiquidity
	}
	return ""
}

// quantile reads the q-th quantile off an ascending-sorted slice with
// linear interpolation between order statistics.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}
