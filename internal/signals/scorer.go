package signals

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// defaultScoreWorkers bounds the scoring fan-out at one rebalance date.
const defaultScoreWorkers = 8

// CompositeScorer blends the fundamental, technical, and statistical
// sub-scores into the composite score used for stock selection. It
// implements contracts.StockScorer.
type CompositeScorer struct {
	weights     strategyconfig.FactorWeights
	fundamental *FundamentalCalculator
	technical   *TechnicalCalculator
	statistical *StatisticalCalculator
	workers     int
	log         *logger.Logger
}

// NewCompositeScorer creates a composite scorer with its three
// sub-calculators wired from the scoring section of the configuration.
func NewCompositeScorer(cfg *strategyconfig.Config, log *logger.Logger) *CompositeScorer {
	return &CompositeScorer{
		weights:     cfg.Scoring.Weights,
		fundamental: NewFundamentalCalculator(cfg.Scoring.Fundamental, log),
		technical:   NewTechnicalCalculator(cfg.Scoring.Technical, log),
		statistical: NewStatisticalCalculator(cfg.Scoring.Statistical, log),
		workers:     defaultScoreWorkers,
		log:         log,
	}
}

// Score computes the composite score for one stock from its pre-sliced
// price history and point-in-time fundamentals.
func (s *CompositeScorer) Score(ctx context.Context, symbol string, fundamentals contracts.Fundamentals, prices *contracts.PriceSeries, benchmark *contracts.PriceSeries) (contracts.StockScore, error) {
	if prices == nil || prices.Empty() {
		return contracts.StockScore{}, fmt.Errorf("%w for %s", contracts.ErrNoPriceData, symbol)
	}

	f := s.fundamental.Calculate(ctx, fundamentals)
	t := s.technical.Calculate(ctx, symbol, prices)
	st := s.statistical.Calculate(ctx, symbol, prices, benchmark)

	composite := s.weights.Fundamental*f +
		s.weights.Technical*t.Score +
		s.weights.Statistical*st.Score

	score := contracts.StockScore{
		Symbol:          symbol,
		Sector:          fundamentals.Sector,
		Composite:       composite,
		Fundamental:     f,
		Technical:       t.Score,
		Statistical:     st.Score,
		Sharpe:          st.Sharpe,
		TrendScore:      t.TrendScore,
		VolatilityRatio: st.VolatilityRatio,
		Beta:            st.Beta,
	}

	s.log.WithFields(map[string]interface{}{
		"symbol":      symbol,
		"composite":   composite,
		"fundamental": f,
		"technical":   t.Score,
		"statistical": st.Score,
	}).Debug("Calculated composite score")

	return score, nil
}

// ScoreUniverse scores every stock in the snapshot across a bounded
// worker pool. Scoring one symbol is a pure read of the pre-sliced data,
// so workers share nothing; all results are collected before the table
// is returned, and downstream selection sees only the complete table.
func (s *CompositeScorer) ScoreUniverse(ctx context.Context, snap *contracts.MarketSnapshot) contracts.ScoreTable {
	symbols := make([]string, 0, len(snap.Stocks))
	for sym := range snap.Stocks {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	type scored struct {
		symbol string
		score  contracts.StockScore
		err    error
	}

	workers := s.workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string, len(symbols))
	results := make(chan scored, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				sc, err := s.Score(ctx, sym, snap.Fundamentals[sym], snap.Stocks[sym], snap.Benchmark)
				results <- scored{symbol: sym, score: sc, err: err}
			}
		}()
	}

	for _, sym := range symbols {
		jobs <- sym
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	table := make(contracts.ScoreTable, len(symbols))
	failed := 0
	for r := range results {
		if r.err != nil {
			failed++
			s.log.WithFields(map[string]interface{}{
				"symbol": r.symbol,
				"error":  r.err.Error(),
			}).Warn("Failed to score stock")
			continue
		}
		table[r.symbol] = r.score
	}

	s.log.WithFields(map[string]interface{}{
		"as_of":  snap.AsOf.Format("2006-01-02"),
		"scored": len(table),
		"failed": failed,
	}).Info("Scored stock universe")

	return table
}
