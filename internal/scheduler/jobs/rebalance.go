// Package jobs holds the scheduled jobs of the paper-trading loop.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/execution"
	"github.com/swagat2001/systematic-sector-rotation/internal/store"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// MonthlyRebalanceJob advances the live paper book by one rebalance:
// reload the price archive, compose targets as of the last trading day,
// trade the stored book toward them and persist the outcome.
type MonthlyRebalanceJob struct {
	dataDir  string
	composer contracts.Composer
	repo     *execution.Repository
	cfg      *strategyconfig.Config
	log      *logger.Logger
}

// NewMonthlyRebalanceJob creates the monthly paper rebalance job.
func NewMonthlyRebalanceJob(dataDir string, composer contracts.Composer, repo *execution.Repository, cfg *strategyconfig.Config, log *logger.Logger) *MonthlyRebalanceJob {
	return &MonthlyRebalanceJob{
		dataDir:  dataDir,
		composer: composer,
		repo:     repo,
		cfg:      cfg,
		log:      log,
	}
}

// Name returns the job name.
func (j *MonthlyRebalanceJob) Name() string {
	return "monthly_rebalance"
}

// Schedule returns the cron schedule (16:30 on the 1st, after NSE close).
func (j *MonthlyRebalanceJob) Schedule() string {
	return "0 30 16 1 * *"
}

// Run executes one paper rebalance end to end.
func (j *MonthlyRebalanceJob) Run(ctx context.Context) error {
	j.log.Info("Starting scheduled paper rebalance")

	loader := store.NewCSVLoader(j.dataDir, j.cfg.Meta.Benchmark, j.log)
	st, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load price archive: %w", err)
	}

	days := st.TradingDays()
	if len(days) == 0 {
		return errors.New("price archive has no trading days")
	}
	asOf := days[len(days)-1]

	trader := execution.NewPaperTrader(j.cfg.Backtest.InitialCapital, j.cfg, j.log)
	book, err := j.repo.LoadBook(ctx, execution.DefaultBook)
	switch {
	case err == nil:
		trader.Restore(book)
	case errors.Is(err, execution.ErrBookNotFound):
		j.log.Info("No stored book, starting from initial capital")
	default:
		return err
	}

	state, err := j.repo.LoadComposerState(ctx, execution.DefaultBook)
	if err != nil {
		return err
	}

	weights, meta, next, err := j.composer.Compose(ctx, st.Snapshot(asOf), state)
	if err != nil {
		return fmt.Errorf("compose targets for %s: %w", asOf.Format("2006-01-02"), err)
	}

	prices := resolvePrices(st, asOf, trader.Holdings(), weights)
	report := trader.Rebalance(weights, prices, asOf)

	if err := j.repo.SaveBook(ctx, execution.DefaultBook, trader.Snapshot()); err != nil {
		return err
	}
	if err := j.repo.SaveComposerState(ctx, execution.DefaultBook, next); err != nil {
		return err
	}
	if err := j.repo.SaveTransactions(ctx, execution.DefaultBook, report.Executed); err != nil {
		return err
	}
	if err := j.repo.RecordRebalance(ctx, execution.DefaultBook, &report, trader.Value(prices), trader.Cash()); err != nil {
		return err
	}

	j.log.WithFields(map[string]interface{}{
		"as_of":    asOf.Format("2006-01-02"),
		"executed": len(report.Executed),
		"failed":   len(report.Failed),
		"skipped":  len(report.Skipped),
		"sectors":  len(meta.SelectedSectors),
		"value":    trader.Value(prices),
	}).Info("Scheduled paper rebalance completed")

	return nil
}

// resolvePrices finds the latest close on or before asOf for every symbol
// referenced by current holdings or targets.
func resolvePrices(st *store.Store, asOf time.Time, holdings []string, targets contracts.TargetWeights) map[string]float64 {
	prices := make(map[string]float64, len(holdings)+len(targets))
	add := func(sym string) {
		if _, done := prices[sym]; done {
			return
		}
		series, ok := st.StockSeries(sym)
		if !ok {
			return
		}
		if pt, found := series.LatestOnOrBefore(asOf); found && pt.Close > 0 {
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
