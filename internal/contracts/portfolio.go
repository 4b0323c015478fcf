package contracts

import (
	"fmt"
	"sort"
	"time"
)

// WeightTolerance bounds floating-point drift when validating weight sums.
const WeightTolerance = 1e-6

// TargetWeights maps symbol to desired fraction of total portfolio value
// after rebalancing. The sum may be below 1 (the remainder stays in cash);
// it must never exceed 1 beyond floating-point tolerance.
type TargetWeights map[string]float64

// TotalWeight returns the sum of all target weights.
func (tw TargetWeights) TotalWeight() float64 {
	total := 0.0
	for _, w := range tw {
		total += w
	}
	return total
}

// Validate checks that every weight lies in [0,1] and the sum does not
// exceed 1 beyond tolerance. Over-allocation must be rejected before the
// weights reach execution.
func (tw TargetWeights) Validate() error {
	for sym, w := range tw {
		if w < 0 || w > 1+WeightTolerance {
			return fmt.Errorf("weight for %s out of range: %f", sym, w)
		}
	}
	if total := tw.TotalWeight(); total > 1+WeightTolerance {
		return fmt.Errorf("target weights sum to %f, exceeding 1", total)
	}
	return nil
}

// SortedSymbols returns the symbols ordered by descending target weight,
// ties broken lexicographically. Execution iterates buys in this order so
// that outcomes under cash pressure are reproducible.
func (tw TargetWeights) SortedSymbols() []string {
	syms := make([]string, 0, len(tw))
	for sym := range tw {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		if tw[syms[i]] != tw[syms[j]] {
			return tw[syms[i]] > tw[syms[j]]
		}
		return syms[i] < syms[j]
	})
	return syms
}

// Clone returns an independent copy of the weight map.
func (tw TargetWeights) Clone() TargetWeights {
	out := make(TargetWeights, len(tw))
	for k, v := range tw {
		out[k] = v
	}
	return out
}

// PositionTolerance is the share quantity below which a position is treated
// as closed and removed from the book.
const PositionTolerance = 0.001

// Position is one holding in the simulated portfolio. Quantities are real
// numbers; fractional shares are allowed.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	LastPrice float64 `json:"last_price"`
	Sector    string  `json:"sector,omitempty"`
}

// MarketValue returns the position value at the given price.
func (p *Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// PortfolioState is the simulated portfolio book: cash plus open positions.
// It is owned exclusively by the execution simulator and mutated only
// through order execution.
type PortfolioState struct {
	Cash      float64              `json:"cash"`
	Positions map[string]*Position `json:"positions"`
}

// NewPortfolioState returns an empty book holding the given cash.
func NewPortfolioState(cash float64) *PortfolioState {
	return &PortfolioState{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// Value computes total portfolio value using the supplied prices. A symbol
// missing from prices is valued at its last known price.
func (ps *PortfolioState) Value(prices map[string]float64) float64 {
	total := ps.Cash
	for sym, pos := range ps.Positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.LastPrice
		}
		total += pos.MarketValue(price)
	}
	return total
}

// Weights returns the current portfolio weights at the supplied prices.
func (ps *PortfolioState) Weights(prices map[string]float64) map[string]float64 {
	total := ps.Value(prices)
	out := make(map[string]float64, len(ps.Positions))
	if total <= 0 {
		return out
	}
	for sym, pos := range ps.Positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.LastPrice
		}
		out[sym] = pos.MarketValue(price) / total
	}
	return out
}

// Clone returns a deep copy of the book, used for immutable snapshots.
func (ps *PortfolioState) Clone() *PortfolioState {
	out := NewPortfolioState(ps.Cash)
	for sym, pos := range ps.Positions {
		cp := *pos
		out.Positions[sym] = &cp
	}
	return out
}

// Symbols returns the held symbols in lexicographic order.
func (ps *PortfolioState) Symbols() []string {
	syms := make([]string, 0, len(ps.Positions))
	for sym := range ps.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// ComposerMeta carries the reporting metadata produced alongside the target
// weights for one rebalance date.
type ComposerMeta struct {
	Date             time.Time           `json:"date"`
	SelectedSectors  []SectorScore       `json:"selected_sectors"`
	SectorStocks     map[string][]string `json:"sector_stocks"`
	SatelliteStocks  []string            `json:"satellite_stocks"`
	FilterCounts     map[string]int      `json:"filter_counts,omitempty"`
	CoreWeight       float64             `json:"core_weight"`
	SatelliteWeight  float64             `json:"satellite_weight"`
	CapIterations    int                 `json:"cap_iterations"`
	SectorsCapped    []string            `json:"sectors_capped,omitempty"`
	PositionsCapped  int                 `json:"positions_capped"`
}

// ComposerState is the walk-forward state the composer carries between
// consecutive rebalance dates: the previous period's full score table,
// the satellite symbols held after the previous period, and the core
// sectors that were selected. Passed in and returned rather than mutated
// in place so the dependency between periods stays explicit.
type ComposerState struct {
	PrevScores   ScoreTable `json:"prev_scores"`
	PrevHoldings []string   `json:"prev_holdings"`
	PrevSectors  []string   `json:"prev_sectors"`
}
