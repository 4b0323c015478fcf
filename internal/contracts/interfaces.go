package contracts

import (
	"context"
	"time"
)

// DataProvider supplies the full price and fundamental history the backtest
// operates on. Implementations own the data; the engine only reads slices
// "up to date D" through Snapshot.
type DataProvider interface {
	// Snapshot returns the point-in-time view of all data with every series
	// sliced to bars dated on or before asOf.
	Snapshot(asOf time.Time) *MarketSnapshot

	// Sectors lists the sector indexes with price history.
	Sectors() []string

	// Symbols lists the stocks with price history.
	Symbols() []string

	// StockSeries returns the complete (unsliced) history for a stock.
	StockSeries(symbol string) (*PriceSeries, bool)

	// BenchmarkSeries returns the complete benchmark history, nil when
	// none is loaded.
	BenchmarkSeries() *PriceSeries
}

// SectorRanker ranks sector indexes by momentum as of a date. Input series
// are pre-sliced; the ranker is a pure function of them.
type SectorRanker interface {
	Rank(ctx context.Context, sectors map[string]*PriceSeries, asOf time.Time) ([]SectorScore, error)
}

// StockScorer produces the composite score for one stock as of a date.
// Pure function of the pre-sliced inputs.
type StockScorer interface {
	Score(ctx context.Context, symbol string, fundamentals Fundamentals, prices *PriceSeries, benchmark *PriceSeries) (StockScore, error)
}

// Composer produces target weights for one rebalance date. State carries
// the walk-forward dependency between consecutive calls.
type Composer interface {
	Compose(ctx context.Context, snap *MarketSnapshot, state ComposerState) (TargetWeights, *ComposerMeta, ComposerState, error)
}
