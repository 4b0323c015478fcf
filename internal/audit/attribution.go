package audit

import (
	"errors"
	"sort"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
)

// unclassifiedSector buckets symbols the classifier cannot place.
const unclassifiedSector = "Unclassified"

// SectorAttribution is one sector's share of the run's profit and loss.
// Contribution is the sector P&L as a fraction of initial capital, so
// contributions across sectors sum to the run's total return.
type SectorAttribution struct {
	Sector       string  `json:"sector"`
	PnL          float64 `json:"pnl"`
	Contribution float64 `json:"contribution"`
	AvgWeight    float64 `json:"avg_weight"`
	TradeCount   int     `json:"trade_count"`
}

// AttributeSectors decomposes the run's P&L by sector. Each symbol's
// P&L is its realized cash flow (sells minus buys, costs included) plus
// the value still held at the end, which makes the decomposition exact:
// sector P&Ls sum to FinalValue minus InitialCapital. sectorOf maps a
// symbol to its sector; unknown symbols land in "Unclassified".
func (a *Analyzer) AttributeSectors(result *contracts.BacktestResult, sectorOf func(string) string) ([]SectorAttribution, error) {
	if result == nil || !result.Success {
		return nil, errors.New("cannot attribute a failed backtest")
	}
	if result.InitialCapital <= 0 {
		return nil, errors.New("initial capital must be positive")
	}
	classify := func(sym string) string {
		if sectorOf != nil {
			if s := sectorOf(sym); s != "" {
				return s
			}
		}
		return unclassifiedSector
	}

	pnl := make(map[string]float64)
	trades := make(map[string]int)
	for _, tx := range result.Transactions {
		switch tx.Action {
		case contracts.OrderSideBuy:
			pnl[tx.Symbol] -= tx.TotalCost
		case contracts.OrderSideSell:
			pnl[tx.Symbol] += tx.TotalCost
		}
		trades[tx.Symbol]++
	}
	if result.FinalState != nil {
		for sym, pos := range result.FinalState.Positions {
			pnl[sym] += pos.MarketValue(pos.LastPrice)
		}
	}

	bySector := make(map[string]*SectorAttribution)
	get := func(sector string) *SectorAttribution {
		sa, ok := bySector[sector]
		if !ok {
			sa = &SectorAttribution{Sector: sector}
			bySector[sector] = sa
		}
		return sa
	}
	for sym, p := range pnl {
		sa := get(classify(sym))
		sa.PnL += p
		sa.Contribution += p / result.InitialCapital
		sa.TradeCount += trades[sym]
	}

	// Average sector weight across rebalance snapshots.
	weightSums := make(map[string]float64)
	for _, snap := range result.Snapshots {
		if snap.PortfolioValue <= 0 {
			continue
		}
		for _, pos := range snap.Positions {
			sector := pos.Sector
			if sector == "" {
				sector = classify(pos.Symbol)
			}
			weightSums[sector] += pos.Quantity * pos.LastPrice / snap.PortfolioValue
		}
	}
	if n := len(result.Snapshots); n > 0 {
		for sector, sum := range weightSums {
			get(sector).AvgWeight = sum / float64(n)
		}
	}

	out := make([]SectorAttribution, 0, len(bySector))
	for _, sa := range bySector {
		out = append(out, *sa)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Sector < out[j].Sector
	})
	return out, nil
}

// SectorIndex builds a symbol classifier from the sector labels recorded
// in a run's snapshots and final state, so attribution works off a stored
// result without reloading market data.
func SectorIndex(result *contracts.BacktestResult) func(string) string {
	idx := make(map[string]string)
	if result != nil {
		for _, snap := range result.Snapshots {
			for sym, pos := range snap.Positions {
				if pos.Sector != "" {
					idx[sym] = pos.Sector
				}
			}
		}
		if result.FinalState != nil {
			for sym, pos := range result.FinalState.Positions {
				if pos.Sector != "" {
					idx[sym] = pos.Sector
				}
			}
		}
	}
	return func(sym string) string { return idx[sym] }
}

// TopContributors returns the n best sectors by contribution. The input
// must already be sorted by AttributeSectors.
func TopContributors(attrs []SectorAttribution, n int) []SectorAttribution {
	if n > len(attrs) {
		n = len(attrs)
	}
	return attrs[:n]
}

// BottomContributors returns the n worst sectors, worst first.
func BottomContributors(attrs []SectorAttribution, n int) []SectorAttribution {
	if n > len(attrs) {
		n = len(attrs)
	}
	out := make([]SectorAttribution, 0, n)
	for i := len(attrs) - 1; i >= len(attrs)-n; i-- {
		out = append(out, attrs[i])
	}
	return out
}
