package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// PostgresRepository persists the price archive and fundamentals so a
// backtest can run against the database instead of raw CSV files.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresRepository creates a new repository
func NewPostgresRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresRepository {
	return &PostgresRepository{pool: pool, log: log}
}

// Migrate creates the schema when it does not exist yet
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_prices (
			symbol      TEXT NOT NULL,
			sector      TEXT NOT NULL,
			trade_date  DATE NOT NULL,
			open_price  DOUBLE PRECISION NOT NULL,
			high_price  DOUBLE PRECISION NOT NULL,
			low_price   DOUBLE PRECISION NOT NULL,
			close_price DOUBLE PRECISION NOT NULL,
			volume      BIGINT NOT NULL,
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_prices_sector ON stock_prices (sector)`,
		`CREATE TABLE IF NOT EXISTS benchmark_prices (
			symbol      TEXT NOT NULL,
			trade_date  DATE NOT NULL,
			open_price  DOUBLE PRECISION NOT NULL,
			high_price  DOUBLE PRECISION NOT NULL,
			low_price   DOUBLE PRECISION NOT NULL,
			close_price DOUBLE PRECISION NOT NULL,
			volume      BIGINT NOT NULL,
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS fundamentals (
			symbol         TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			sector         TEXT NOT NULL DEFAULT '',
			market_cap     DOUBLE PRECISION NOT NULL DEFAULT 0,
			pe_ratio       DOUBLE PRECISION NOT NULL DEFAULT 0,
			pb_ratio       DOUBLE PRECISION NOT NULL DEFAULT 0,
			roe            DOUBLE PRECISION NOT NULL DEFAULT 0,
			debt_to_equity DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_ratio  DOUBLE PRECISION NOT NULL DEFAULT 0,
			eps_growth     DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveSeries upserts all bars of one stock series
func (r *PostgresRepository) SaveSeries(ctx context.Context, sector string, series *contracts.PriceSeries) error {
	if series == nil || series.Empty() {
		return nil
	}

	query := `
		INSERT INTO stock_prices (symbol, sector, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			sector      = EXCLUDED.sector,
			open_price  = EXCLUDED.open_price,
			high_price  = EXCLUDED.high_price,
			low_price   = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume      = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, p := range series.Points {
		batch.Queue(query, series.Symbol, sector, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range series.Points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save series %s: %w", series.Symbol, err)
		}
	}
	return nil
}

// SaveBenchmark upserts all bars of the benchmark series
func (r *PostgresRepository) SaveBenchmark(ctx context.Context, series *contracts.PriceSeries) error {
	if series == nil || series.Empty() {
		return nil
	}

	query := `
		INSERT INTO benchmark_prices (symbol, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open_price  = EXCLUDED.open_price,
			high_price  = EXCLUDED.high_price,
			low_price   = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume      = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, p := range series.Points {
		batch.Queue(query, series.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range series.Points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save benchmark: %w", err)
		}
	}
	return nil
}

// SaveFundamentals upserts one fundamentals row
func (r *PostgresRepository) SaveFundamentals(ctx context.Context, f contracts.Fundamentals) error {
	query := `
		INSERT INTO fundamentals (symbol, name, sector, market_cap, pe_ratio, pb_ratio, roe, debt_to_equity, current_ratio, eps_growth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol) DO UPDATE SET
			name           = EXCLUDED.name,
			sector         = EXCLUDED.sector,
			market_cap     = EXCLUDED.market_cap,
			pe_ratio       = EXCLUDED.pe_ratio,
			pb_ratio       = EXCLUDED.pb_ratio,
			roe            = EXCLUDED.roe,
			debt_to_equity = EXCLUDED.debt_to_equity,
			current_ratio  = EXCLUDED.current_ratio,
			eps_growth     = EXCLUDED.eps_growth
	`

	_, err := r.pool.Exec(ctx, query,
		f.Symbol, f.Name, f.Sector, f.MarketCap, f.PERatio, f.PBRatio,
		f.ROE, f.DebtToEquity, f.CurrentRatio, f.EPSGrowth,
	)
	return err
}

// ImportStore writes a whole in-memory store into the database. Used by
// the data import command after a CSV load.
func (r *PostgresRepository) ImportStore(ctx context.Context, st *Store) error {
	for _, symbol := range st.Symbols() {
		series, ok := st.StockSeries(symbol)
		if !ok {
			continue
		}
		fund, _ := st.FundamentalsFor(symbol)
		if err := r.SaveSeries(ctx, fund.Sector, series); err != nil {
			return err
		}
		if err := r.SaveFundamentals(ctx, fund); err != nil {
			return err
		}
	}
	if bench := st.BenchmarkSeries(); bench != nil {
		if err := r.SaveBenchmark(ctx, bench); err != nil {
			return err
		}
	}
	return nil
}

// LoadSeries reads one stock series ordered by date
func (r *PostgresRepository) LoadSeries(ctx context.Context, symbol string) (*contracts.PriceSeries, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM stock_prices
		WHERE symbol = $1
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	series := &contracts.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		p.Date = normalizeDate(p.Date)
		series.Points = append(series.Points, p)
	}
	return series, rows.Err()
}

// LoadFundamentals reads all fundamentals rows
func (r *PostgresRepository) LoadFundamentals(ctx context.Context) (map[string]contracts.Fundamentals, error) {
	query := `
		SELECT symbol, name, sector, market_cap, pe_ratio, pb_ratio, roe, debt_to_equity, current_ratio, eps_growth
		FROM fundamentals
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]contracts.Fundamentals)
	for rows.Next() {
		var f contracts.Fundamentals
		if err := rows.Scan(
			&f.Symbol, &f.Name, &f.Sector, &f.MarketCap, &f.PERatio, &f.PBRatio,
			&f.ROE, &f.DebtToEquity, &f.CurrentRatio, &f.EPSGrowth,
		); err != nil {
			return nil, err
		}
		out[f.Symbol] = f
	}
	return out, rows.Err()
}

// LoadStore assembles a full in-memory store from the database,
// mirroring what the CSV loader builds from disk.
func (r *PostgresRepository) LoadStore(ctx context.Context, benchmark string) (*Store, error) {
	st := New(r.log)

	funds, err := r.LoadFundamentals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fundamentals: %w", err)
	}

	symbols, err := r.listSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: stock_prices table is empty", contracts.ErrNoUsableData)
	}

	for _, row := range symbols {
		series, err := r.LoadSeries(ctx, row.symbol)
		if err != nil {
			return nil, fmt.Errorf("load series %s: %w", row.symbol, err)
		}
		st.PutStockSeries(series)

		if f, ok := funds[row.symbol]; ok {
			st.PutFundamentals(f)
		} else {
			st.PutFundamentals(defaultFundamentals(row.symbol, row.sector))
		}
	}

	if benchmark != "" {
		bench, err := r.loadBenchmark(ctx, benchmark)
		if err != nil {
			return nil, fmt.Errorf("load benchmark: %w", err)
		}
		if bench != nil && !bench.Empty() {
			st.SetBenchmark(bench)
		}
	}

	st.BuildSectorIndices()
	return st, nil
}

type symbolRow struct {
	symbol string
	sector string
}

func (r *PostgresRepository) listSymbols(ctx context.Context) ([]symbolRow, error) {
	query := `
		SELECT DISTINCT symbol, sector
		FROM stock_prices
		ORDER BY symbol ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []symbolRow
	for rows.Next() {
		var row symbolRow
		if err := rows.Scan(&row.symbol, &row.sector); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) loadBenchmark(ctx context.Context, symbol string) (*contracts.PriceSeries, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM benchmark_prices
		WHERE symbol = $1
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	series := &contracts.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		p.Date = normalizeDate(p.Date)
		series.Points = append(series.Points, p)
	}
	return series, rows.Err()
}

// normalizeDate strips the time and zone a DATE column scan may carry,
// so map keys and comparisons line up with CSV-loaded dates.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
