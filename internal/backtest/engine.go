// Package backtest drives the walk-forward simulation: monthly rebalance
// dates, point-in-time market snapshots, execution against the paper book,
// and assembly of the equity curve and result structure.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/execution"
	"github.com/swagat2001/systematic-sector-rotation/internal/store"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// Config holds the run parameters for one backtest.
type Config struct {
	StartDate      time.Time // zero: derived from data start plus the lookback buffer
	EndDate        time.Time // zero: last loaded trading day
	InitialCapital float64   // zero: strategy config initial capital
	DailyValuation bool      // mark-to-market fill between rebalance dates
}

// Engine runs the strategy against loaded market data. Rebalance dates
// have a strict sequential dependency through the portfolio book and the
// composer's walk-forward state, so the loop is single-threaded; only the
// per-date scoring underneath the composer fans out.
type Engine struct {
	store    *store.Store
	composer contracts.Composer
	cfg      *strategyconfig.Config
	log      *logger.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(st *store.Store, composer contracts.Composer, cfg *strategyconfig.Config, log *logger.Logger) *Engine {
	return &Engine{
		store:    st,
		composer: composer,
		cfg:      cfg,
		log:      log,
	}
}

// Run executes the walk-forward simulation. The only failures it returns
// are the ones that stop the backtest before the first rebalance (no data,
// not enough history); those also come back as a result with Success=false
// so callers can render them. A single rebalance date failing inside the
// loop is logged and skipped with holdings unchanged. Cancelling the
// context stops the loop and returns the partial result, which is valid
// because recorded snapshots are immutable.
func (e *Engine) Run(ctx context.Context, run Config) (*contracts.BacktestResult, error) {
	runID := uuid.NewString()
	started := time.Now()

	capital := run.InitialCapital
	if capital <= 0 {
		capital = e.cfg.Backtest.InitialCapital
	}

	calendar := e.store.TradingDays()
	if len(calendar) == 0 {
		err := errors.New("no price data loaded")
		return contracts.FailedResult(runID, err), err
	}

	start, err := e.effectiveStart(run, calendar)
	if err != nil {
		return contracts.FailedResult(runID, err), err
	}
	end := run.EndDate
	if end.IsZero() {
		end = calendar[len(calendar)-1]
	}
	if start.After(end) {
		err := fmt.Errorf("first rebalance %s falls after end %s: not enough history",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
		return contracts.FailedResult(runID, err), err
	}

	dates := rebalanceDates(start, end)

	e.log.WithFields(map[string]interface{}{
		"run_id":          runID,
		"start":           start.Format("2006-01-02"),
		"end":             end.Format("2006-01-02"),
		"rebalances":      len(dates),
		"initial_capital": capital,
	}).Info("Starting backtest")

	trader := execution.NewPaperTrader(capital, e.cfg, e.log)
	state := contracts.ComposerState{}
	result := &contracts.BacktestResult{
		RunID:          runID,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: capital,
	}
	if hash, hashErr := strategyconfig.Hash(e.cfg); hashErr == nil {
		result.ConfigHash = hash
	}

	for i, date := range dates {
		if ctx.Err() != nil {
			e.log.WithFields(map[string]interface{}{
				"date":  date.Format("2006-01-02"),
				"error": ctx.Err().Error(),
			}).Warn("Backtest cancelled, returning partial result")
			break
		}

		prices, snap, ok := e.runRebalance(ctx, date, trader, &state)
		if ok {
			result.Snapshots = append(result.Snapshots, snap)
			result.NumRebalances++
		} else {
			prices = e.resolvePrices(date, trader.Holdings(), nil)
		}

		value := trader.Value(prices)
		result.EquityCurve = append(result.EquityCurve, equityPoint(date, value, capital))

		if run.DailyValuation && i+1 < len(dates) {
			for _, day := range tradingDaysBetween(calendar, date, dates[i+1]) {
				dayPrices := e.resolvePrices(day, trader.Holdings(), nil)
				result.DailyValues = append(result.DailyValues, equityPoint(day, trader.Value(dayPrices), capital))
			}
		}
	}

	if len(result.DailyValues) > 0 {
		result.EquityCurve = mergeCurves(result.EquityCurve, result.DailyValues)
	}

	result.FinalValue = capital
	if n := len(result.EquityCurve); n > 0 {
		result.FinalValue = result.EquityCurve[n-1].Value
	}

	finalPrices := e.resolvePrices(end, trader.Holdings(), nil)
	result.FinalState = trader.Snapshot()
	for sym, pos := range result.FinalState.Positions {
		if f, ok := e.store.FundamentalsFor(sym); ok {
			pos.Sector = f.Sector
		}
	}
	result.FinalWeights = trader.Weights(finalPrices)
	result.Transactions = trader.Transactions()
	result.Benchmark = e.normalizedBenchmark(start, end, capital)
	result.Success = true
	result.Duration = time.Since(started)

	e.log.WithFields(map[string]interface{}{
		"run_id":       runID,
		"rebalances":   result.NumRebalances,
		"trades":       result.TotalTrades(),
		"final_value":  result.FinalValue,
		"total_return": fmt.Sprintf("%.2f%%", result.TotalReturn()*100),
		"duration_sec": result.Duration.Seconds(),
	}).Info("Backtest completed")

	return result, nil
}

// effectiveStart resolves the first rebalance date. An explicit start is
// used as given; otherwise the earliest common data date is advanced by
// the lookback buffer so momentum and trend windows are populated on the
// first decision.
func (e *Engine) effectiveStart(run Config, calendar []time.Time) (time.Time, error) {
	if !run.StartDate.IsZero() {
		return run.StartDate, nil
	}

	common, ok := e.store.EarliestCommonDate()
	if !ok {
		return time.Time{}, errors.New("no overlapping dates across loaded series")
	}
	start, ok := advanceTradingDays(calendar, common, e.cfg.Backtest.LookbackDays)
	if !ok {
		return time.Time{}, fmt.Errorf("need %d trading days of history after %s, have fewer",
			e.cfg.Backtest.LookbackDays, common.Format("2006-01-02"))
	}
	return start, nil
}

// runRebalance processes one decision date: snapshot the market as of the
// date, compose target weights, resolve prices and trade. Any error or
// panic is contained here so one bad date cannot abort the run; the
// composer state advances only when the date succeeds.
func (e *Engine) runRebalance(ctx context.Context, date time.Time, trader *execution.PaperTrader, state *contracts.ComposerState) (prices map[string]float64, snap contracts.RebalanceSnapshot, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(map[string]interface{}{
				"date":  date.Format("2006-01-02"),
				"panic": fmt.Sprint(r),
			}).Error("Rebalance panicked, keeping previous holdings")
			ok = false
		}
	}()

	market := e.store.Snapshot(date)
	weights, meta, next, err := e.composer.Compose(ctx, market, *state)
	if err != nil {
		e.log.WithFields(map[string]interface{}{
			"date":  date.Format("2006-01-02"),
			"error": err.Error(),
		}).Warn("Rebalance failed, keeping previous holdings")
		return nil, contracts.RebalanceSnapshot{}, false
	}

	prices = e.resolvePrices(date, trader.Holdings(), weights)
	report := trader.Rebalance(weights, prices, date)
	*state = next

	book := trader.Snapshot()
	positions := make(map[string]contracts.Position, len(book.Positions))
	for sym, pos := range book.Positions {
		p := *pos
		p.Sector = market.SectorOf(sym)
		positions[sym] = p
	}
	snap = contracts.RebalanceSnapshot{
		Date:           date,
		PortfolioValue: book.Value(prices),
		Cash:           book.Cash,
		Positions:      positions,
		NumTrades:      len(report.Executed),
		FailedOrders:   report.Failed,
		Meta:           meta,
	}
	return prices, snap, true
}

// resolvePrices finds the latest close on or before date for every symbol
// referenced by current holdings or targets. Symbols with no price as of
// the date are left out; the trader skips them.
func (e *Engine) resolvePrices(date time.Time, holdings []string, targets contracts.TargetWeights) map[string]float64 {
	prices := make(map[string]float64, len(holdings)+len(targets))
	add := func(sym string) {
		if _, done := prices[sym]; done {
			return
		}
		series, ok := e.store.StockSeries(sym)
		if !ok {
			return
		}
		if pt, found := series.LatestOnOrBefore(date); found && pt.Close > 0 {
			prices[sym] = pt.Close
		}
	}
	for _, sym := range holdings {
		add(sym)
	}
	for sym := range targets {
		add(sym)
	}
	return prices
}

// normalizedBenchmark rescales the benchmark series to start at the same
// initial capital over the overlapping date range, for apples-to-apples
// curves.
func (e *Engine) normalizedBenchmark(start, end time.Time, capital float64) []contracts.EquityPoint {
	series := e.store.BenchmarkSeries()
	if series == nil || series.Empty() {
		return nil
	}

	var base float64
	var out []contracts.EquityPoint
	for _, p := range series.Points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		if base == 0 {
			if p.Close <= 0 {
				continue
			}
			base = p.Close
		}
		value := capital * p.Close / base
		out = append(out, contracts.EquityPoint{Date: p.Date, Value: value, Return: value/capital - 1})
	}
	return out
}

func equityPoint(date time.Time, value, capital float64) contracts.EquityPoint {
	return contracts.EquityPoint{Date: date, Value: value, Return: value/capital - 1}
}

// mergeCurves interleaves the sparse rebalance-date points with the daily
// fill into one date-ordered curve. Both inputs are already sorted.
func mergeCurves(a, b []contracts.EquityPoint) []contracts.EquityPoint {
	out := make([]contracts.EquityPoint, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if !a[i].Date.After(b[j].Date) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
