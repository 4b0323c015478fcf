package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
)

// DefaultBook is the book name used by the scheduled paper-trading job.
const DefaultBook = "paper"

// ErrBookNotFound is returned when no stored book matches the lookup.
var ErrBookNotFound = errors.New("paper book not found")

// Repository persists the paper-trading book between scheduled rebalances:
// the current cash and positions, the append-only transaction log, and one
// summary row per rebalance pass.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an execution repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the paper-trading tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS paper_books (
			book           TEXT PRIMARY KEY,
			cash           DOUBLE PRECISION NOT NULL,
			positions      JSONB NOT NULL,
			composer_state JSONB NOT NULL DEFAULT '{}',
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS paper_transactions (
			id               BIGSERIAL PRIMARY KEY,
			book             TEXT NOT NULL,
			trade_date       DATE NOT NULL,
			symbol           TEXT NOT NULL,
			action           TEXT NOT NULL,
			quantity         DOUBLE PRECISION NOT NULL,
			price            DOUBLE PRECISION NOT NULL,
			gross_value      DOUBLE PRECISION NOT NULL,
			transaction_cost DOUBLE PRECISION NOT NULL,
			total_cost       DOUBLE PRECISION NOT NULL,
			recorded_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_transactions_book_date
			ON paper_transactions (book, trade_date)`,
		`CREATE TABLE IF NOT EXISTS paper_rebalances (
			id              BIGSERIAL PRIMARY KEY,
			book            TEXT NOT NULL,
			rebalance_date  DATE NOT NULL,
			portfolio_value DOUBLE PRECISION NOT NULL,
			cash            DOUBLE PRECISION NOT NULL,
			executed        INT NOT NULL,
			failed          INT NOT NULL,
			skipped         INT NOT NULL,
			recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate paper tables: %w", err)
		}
	}
	return nil
}

// SaveBook upserts the current book state.
func (r *Repository) SaveBook(ctx context.Context, book string, state *contracts.PortfolioState) error {
	positions, err := json.Marshal(state.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions for book %s: %w", book, err)
	}

	query := `
		INSERT INTO paper_books (book, cash, positions, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (book) DO UPDATE SET
			cash       = EXCLUDED.cash,
			positions  = EXCLUDED.positions,
			updated_at = now()
	`

	if _, err := r.pool.Exec(ctx, query, book, state.Cash, positions); err != nil {
		return fmt.Errorf("save book %s: %w", book, err)
	}
	return nil
}

// LoadBook restores the stored book state.
func (r *Repository) LoadBook(ctx context.Context, book string) (*contracts.PortfolioState, error) {
	query := `SELECT cash, positions FROM paper_books WHERE book = $1`

	var cash float64
	var doc []byte
	err := r.pool.QueryRow(ctx, query, book).Scan(&cash, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, book)
	}
	if err != nil {
		return nil, fmt.Errorf("load book %s: %w", book, err)
	}

	state := contracts.NewPortfolioState(cash)
	if err := json.Unmarshal(doc, &state.Positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions for book %s: %w", book, err)
	}
	return state, nil
}

// SaveComposerState stores the walk-forward state carried into the next
// scheduled rebalance, so hysteresis survives process restarts.
func (r *Repository) SaveComposerState(ctx context.Context, book string, state contracts.ComposerState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal composer state for book %s: %w", book, err)
	}

	query := `
		INSERT INTO paper_books (book, cash, positions, composer_state)
		VALUES ($1, 0, '{}', $2)
		ON CONFLICT (book) DO UPDATE SET
			composer_state = EXCLUDED.composer_state,
			updated_at     = now()
	`

	if _, err := r.pool.Exec(ctx, query, book, doc); err != nil {
		return fmt.Errorf("save composer state for book %s: %w", book, err)
	}
	return nil
}

// LoadComposerState restores the stored walk-forward state. A missing book
// yields the zero state, which is a valid fresh start.
func (r *Repository) LoadComposerState(ctx context.Context, book string) (contracts.ComposerState, error) {
	var state contracts.ComposerState

	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT composer_state FROM paper_books WHERE book = $1`, book).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("load composer state for book %s: %w", book, err)
	}

	if err := json.Unmarshal(doc, &state); err != nil {
		return state, fmt.Errorf("unmarshal composer state for book %s: %w", book, err)
	}
	return state, nil
}

// SaveTransactions appends executed trades to the transaction log.
func (r *Repository) SaveTransactions(ctx context.Context, book string, txs []contracts.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbtx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save transactions: %w", err)
	}
	defer dbtx.Rollback(ctx)

	query := `
		INSERT INTO paper_transactions
			(book, trade_date, symbol, action, quantity, price, gross_value, transaction_cost, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, tx := range txs {
		_, err := dbtx.Exec(ctx, query,
			book, tx.Date, tx.Symbol, string(tx.Action), tx.Quantity,
			tx.Price, tx.GrossValue, tx.Cost, tx.TotalCost,
		)
		if err != nil {
			return fmt.Errorf("save transaction %s %s: %w", tx.Symbol, tx.Date.Format("2006-01-02"), err)
		}
	}

	return dbtx.Commit(ctx)
}

// Transactions returns the logged trades for a book within [from, to],
// oldest first.
func (r *Repository) Transactions(ctx context.Context, book string, from, to time.Time) ([]contracts.Transaction, error) {
	query := `
		SELECT trade_date, symbol, action, quantity, price, gross_value, transaction_cost, total_cost
		FROM paper_transactions
		WHERE book = $1 AND trade_date >= $2 AND trade_date <= $3
		ORDER BY trade_date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, book, from, to)
	if err != nil {
		return nil, fmt.Errorf("query transactions for book %s: %w", book, err)
	}
	defer rows.Close()

	var out []contracts.Transaction
	for rows.Next() {
		var tx contracts.Transaction
		var action string
		if err := rows.Scan(
			&tx.Date, &tx.Symbol, &action, &tx.Quantity,
			&tx.Price, &tx.GrossValue, &tx.Cost, &tx.TotalCost,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Action = contracts.OrderSide(action)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// RecordRebalance stores one summary row for a completed rebalance pass.
func (r *Repository) RecordRebalance(ctx context.Context, book string, report *contracts.RebalanceReport, value, cash float64) error {
	query := `
		INSERT INTO paper_rebalances (book, rebalance_date, portfolio_value, cash, executed, failed, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		book, report.Date, value, cash,
		len(report.Executed), len(report.Failed), len(report.Skipped),
	)
	if err != nil {
		return fmt.Errorf("record rebalance %s: %w", report.Date.Format("2006-01-02"), err)
	}
	return nil
}

// RebalanceRecord is one row of the book's rebalance history.
type RebalanceRecord struct {
	Date           time.Time `json:"date"`
	PortfolioValue float64   `json:"portfolio_value"`
	Cash           float64   `json:"cash"`
	Executed       int       `json:"executed"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// RebalanceHistory returns recent rebalance summaries, newest first.
func (r *Repository) RebalanceHistory(ctx context.Context, book string, limit int) ([]RebalanceRecord, error) {
	if limit <= 0 {
		limit = 12
	}

	query := `
		SELECT rebalance_date, portfolio_value, cash, executed, failed, skipped, recorded_at
		FROM paper_rebalances
		WHERE book = $1
		ORDER BY rebalance_date DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, book, limit)
	if err != nil {
		return nil, fmt.Errorf("query rebalance history for book %s: %w", book, err)
	}
	defer rows.Close()

	var out []RebalanceRecord
	for rows.Next() {
		var rec RebalanceRecord
		if err := rows.Scan(
			&rec.Date, &rec.PortfolioValue, &rec.Cash,
			&rec.Executed, &rec.Failed, &rec.Skipped, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rebalance record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
