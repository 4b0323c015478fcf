package contracts

import (
	"time"
)

// EquityPoint is one dated portfolio valuation on the equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Return float64   `json:"return"` // cumulative vs initial capital
}

// RebalanceSnapshot captures the portfolio immediately after one rebalance
// date's execution. Positions are deep copies; the snapshot is immutable
// after creation.
type RebalanceSnapshot struct {
	Date           time.Time           `json:"date"`
	PortfolioValue float64             `json:"portfolio_value"`
	Cash           float64             `json:"cash"`
	Positions      map[string]Position `json:"positions"`
	NumTrades      int                 `json:"num_trades"`
	FailedOrders   []Order             `json:"failed_orders,omitempty"`
	Meta           *ComposerMeta       `json:"meta,omitempty"`
}

// BacktestResult is the full output of one walk-forward simulation run,
// consumed by the performance analyzer, report writer, and API layer.
type BacktestResult struct {
	RunID   string `json:"run_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	NumRebalances  int       `json:"num_rebalances"`

	// EquityCurve is the dense merged curve (rebalance valuations plus the
	// mark-to-market daily fill when computed); DailyValues holds only the
	// strictly-between-rebalances fill for callers that need it separately.
	EquityCurve []EquityPoint       `json:"equity_curve"`
	DailyValues []EquityPoint       `json:"daily_values,omitempty"`
	Snapshots   []RebalanceSnapshot `json:"portfolio_snapshots"`
	Benchmark   []EquityPoint       `json:"benchmark,omitempty"`

	FinalWeights  map[string]float64 `json:"final_weights"`
	FinalState    *PortfolioState    `json:"final_portfolio"`
	Transactions  []Transaction      `json:"transactions,omitempty"`
	ConfigHash    string             `json:"config_hash,omitempty"`
	Duration      time.Duration      `json:"duration_ns"`
}

// TotalReturn returns the cumulative return over the run.
func (r *BacktestResult) TotalReturn() float64 {
	if r.InitialCapital <= 0 {
		return 0
	}
	return r.FinalValue/r.InitialCapital - 1
}

// TotalTrades returns the number of executed trades across all rebalances.
func (r *BacktestResult) TotalTrades() int {
	total := 0
	for _, s := range r.Snapshots {
		total += s.NumTrades
	}
	return total
}

// DailyReturns derives day-over-day returns from the equity curve.
func (r *BacktestResult) DailyReturns() []float64 {
	if len(r.EquityCurve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(r.EquityCurve)-1)
	for i := 1; i < len(r.EquityCurve); i++ {
		prev := r.EquityCurve[i-1].Value
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, r.EquityCurve[i].Value/prev-1)
	}
	return out
}

// FailedResult builds the terminal result returned when the backtest cannot
// start at all. This is the only path that reports success=false.
func FailedResult(runID string, err error) *BacktestResult {
	return &BacktestResult{
		RunID:   runID,
		Success: false,
		Error:   err.Error(),
	}
}
