// Package execution converts target weights into simulated fills against a
// paper portfolio, applying the slippage, market-impact and transaction-cost
// model so backtest results reflect realistic trading friction.
package execution

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

const reasonInsufficientCash = "insufficient cash"

// PaperTrader owns the simulated portfolio book and is the only component
// allowed to mutate it. All mutation happens inside Rebalance; everything
// else reads copies.
type PaperTrader struct {
	costs          strategyconfig.Costs
	initialCapital float64
	state          *contracts.PortfolioState
	history        []contracts.Transaction
	log            *logger.Logger
}

// NewPaperTrader creates a trader holding the given starting cash.
func NewPaperTrader(initialCapital float64, cfg *strategyconfig.Config, log *logger.Logger) *PaperTrader {
	return &PaperTrader{
		costs:          cfg.Costs,
		initialCapital: initialCapital,
		state:          contracts.NewPortfolioState(initialCapital),
		log:            log,
	}
}

// Rebalance moves the book toward the target weights at the given prices.
//
// Pass 1 exits every held symbol absent from the targets, so sale proceeds
// are in cash before any buy is sized. Pass 2 then walks the targets in
// descending weight order (ties broken by symbol) and trades each delta
// against the portfolio value measured after the exit pass. The fixed
// ordering matters: when cash cannot fund every target, which order gets
// rejected depends on it, and backtests must reproduce.
func (t *PaperTrader) Rebalance(targets contracts.TargetWeights, prices map[string]float64, date time.Time) contracts.RebalanceReport {
	report := contracts.RebalanceReport{Date: date}

	// 1. Exit pass: full sale of anything no longer targeted.
	for _, sym := range t.state.Symbols() {
		if _, keep := targets[sym]; keep {
			continue
		}
		if t.state.Positions[sym].Quantity <= 0 {
			continue
		}
		quote, ok := prices[sym]
		if !ok || quote <= 0 {
			t.log.WithFields(map[string]interface{}{
				"symbol": sym,
			}).Warn("No price for held symbol, keeping position")
			continue
		}
		tx := t.exitPosition(sym, quote, date)
		report.Executed = append(report.Executed, tx)
	}

	// 2. Adjustment pass: size every target against the post-exit value.
	total := t.state.Value(prices)
	for _, sym := range targets.SortedSymbols() {
		quote, ok := prices[sym]
		if !ok || quote <= 0 {
			t.log.WithFields(map[string]interface{}{
				"symbol": sym,
			}).Warn("No price for target symbol, skipping")
			report.Skipped = append(report.Skipped, sym)
			continue
		}
		res := t.adjustPosition(sym, targets[sym]*total, quote, date)
		switch res.status {
		case contracts.OrderStatusExecuted:
			report.Executed = append(report.Executed, res.tx)
		case contracts.OrderStatusFailed:
			report.Failed = append(report.Failed, res.order)
		case contracts.OrderStatusSkipped:
			report.Skipped = append(report.Skipped, sym)
		}
	}

	t.dropDustPositions()

	t.log.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"executed": len(report.Executed),
		"failed":   len(report.Failed),
		"skipped":  len(report.Skipped),
		"value":    t.state.Value(prices),
		"cash":     t.state.Cash,
	}).Info("Portfolio rebalanced")

	return report
}

// exitPosition sells the full quantity of a held symbol and removes it.
func (t *PaperTrader) exitPosition(sym string, quote float64, date time.Time) contracts.Transaction {
	pos := t.state.Positions[sym]
	qty := pos.Quantity

	price := t.executionPrice(quote, -qty)
	gross := qty * price
	cost := gross * t.costs.TransactionCostPct

	t.state.Cash += gross - cost
	delete(t.state.Positions, sym)

	tx := contracts.Transaction{
		Date:       date,
		Symbol:     sym,
		Action:     contracts.OrderSideSell,
		Quantity:   qty,
		Price:      price,
		GrossValue: gross,
		Cost:       cost,
		TotalCost:  gross - cost,
	}
	t.history = append(t.history, tx)
	return tx
}

type execResult struct {
	status contracts.OrderStatus
	tx     contracts.Transaction
	order  contracts.Order
}

// adjustPosition trades the value gap between the current holding and the
// target value. Quantities are sized at the quoted price; cash settles at
// the execution price, which carries slippage and impact.
func (t *PaperTrader) adjustPosition(sym string, targetValue, quote float64, date time.Time) execResult {
	var current float64
	if pos, ok := t.state.Positions[sym]; ok {
		current = pos.Quantity * quote
	}

	delta := targetValue - current
	if math.Abs(delta) < t.costs.MinTradeValue {
		return execResult{status: contracts.OrderStatusSkipped}
	}

	qty := delta / quote
	price := t.executionPrice(quote, qty)
	gross := math.Abs(qty) * price
	cost := gross * t.costs.TransactionCostPct

	side := contracts.OrderSideBuy
	cashDelta := gross + cost
	if qty < 0 {
		side = contracts.OrderSideSell
		cashDelta = gross - cost
	}

	if side == contracts.OrderSideBuy && cashDelta > t.state.Cash {
		t.log.WithFields(map[string]interface{}{
			"symbol":   sym,
			"required": cashDelta,
			"cash":     t.state.Cash,
		}).Warn("Buy rejected, insufficient cash")
		return execResult{
			status: contracts.OrderStatusFailed,
			order: contracts.Order{
				ID:        uuid.NewString(),
				Date:      date,
				Symbol:    sym,
				Side:      side,
				Quantity:  math.Abs(qty),
				Price:     quote,
				Status:    contracts.OrderStatusFailed,
				Reason:    reasonInsufficientCash,
				CreatedAt: time.Now(),
			},
		}
	}

	pos, ok := t.state.Positions[sym]
	if !ok {
		pos = &contracts.Position{Symbol: sym}
		t.state.Positions[sym] = pos
	}
	pos.Quantity += qty
	pos.LastPrice = quote

	if side == contracts.OrderSideBuy {
		t.state.Cash -= cashDelta
	} else {
		t.state.Cash += cashDelta
	}

	tx := contracts.Transaction{
		Date:       date,
		Symbol:     sym,
		Action:     side,
		Quantity:   math.Abs(qty),
		Price:      price,
		GrossValue: gross,
		Cost:       cost,
		TotalCost:  cashDelta,
	}
	t.history = append(t.history, tx)
	return execResult{status: contracts.OrderStatusExecuted, tx: tx}
}

// executionPrice applies directional slippage, then a market-impact factor
// proportional to order size. The impact factor is mirrored below 1 for
// sells so larger sales fill at worse prices, same as larger buys do.
func (t *PaperTrader) executionPrice(quote, qty float64) float64 {
	slip := 1 + t.costs.SlippagePct
	if qty < 0 {
		slip = 1 - t.costs.SlippagePct
	}

	impact := 1 + t.costs.MarketImpact*math.Abs(qty)/1000
	if qty < 0 {
		impact = 2 - impact
	}

	return quote * slip * impact
}

// dropDustPositions removes holdings whose quantity rounded to zero.
func (t *PaperTrader) dropDustPositions() {
	for sym, pos := range t.state.Positions {
		if math.Abs(pos.Quantity) <= contracts.PositionTolerance {
			delete(t.state.Positions, sym)
		}
	}
}

// Cash returns the current cash balance.
func (t *PaperTrader) Cash() float64 {
	return t.state.Cash
}

// Value returns the portfolio value at the supplied prices.
func (t *PaperTrader) Value(prices map[string]float64) float64 {
	return t.state.Value(prices)
}

// Holdings returns the held symbols in lexicographic order.
func (t *PaperTrader) Holdings() []string {
	return t.state.Symbols()
}

// Snapshot returns a deep copy of the book for recording.
func (t *PaperTrader) Snapshot() *contracts.PortfolioState {
	return t.state.Clone()
}

// Transactions returns a copy of the full trade history in execution order.
func (t *PaperTrader) Transactions() []contracts.Transaction {
	out := make([]contracts.Transaction, len(t.history))
	copy(out, t.history)
	return out
}

// TotalCosts returns the transaction costs paid since inception or the
// last reset.
func (t *PaperTrader) TotalCosts() float64 {
	var sum float64
	for _, tx := range t.history {
		sum += tx.Cost
	}
	return sum
}

// Weights returns current portfolio weights at the supplied prices, sorted
// keys left to the caller.
func (t *PaperTrader) Weights(prices map[string]float64) map[string]float64 {
	return t.state.Weights(prices)
}

// Reset restores the book to its initial cash with no positions and clears
// the trade history.
func (t *PaperTrader) Reset() {
	t.state = contracts.NewPortfolioState(t.initialCapital)
	t.history = nil
	t.log.Info("Paper portfolio reset to initial capital")
}

// Restore replaces the book with a previously persisted state. The local
// trade history starts empty; past trades live in the repository.
func (t *PaperTrader) Restore(state *contracts.PortfolioState) {
	t.state = state.Clone()
	t.history = nil
	t.log.WithFields(map[string]interface{}{
		"cash":      state.Cash,
		"positions": len(state.Positions),
	}).Info("Paper portfolio restored from stored book")
}
