package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMetricsNotFound is returned when no stored analysis matches the run.
var ErrMetricsNotFound = errors.New("metrics not found")

// Repository persists performance analyses and sector attributions so
// dashboards can read them without replaying the run.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the audit tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_metrics (
			run_id     TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			metrics    JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_attributions (
			run_id       TEXT NOT NULL,
			sector       TEXT NOT NULL,
			pnl          DOUBLE PRECISION NOT NULL,
			contribution DOUBLE PRECISION NOT NULL,
			avg_weight   DOUBLE PRECISION NOT NULL,
			trade_count  INT NOT NULL,
			PRIMARY KEY (run_id, sector)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit tables: %w", err)
		}
	}
	return nil
}

// SaveMetrics upserts the analysis document for a run.
func (r *Repository) SaveMetrics(ctx context.Context, metrics *Metrics) error {
	doc, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics %s: %w", metrics.RunID, err)
	}

	query := `
		INSERT INTO audit_metrics (run_id, metrics)
		VALUES ($1, $2)
		ON CONFLICT (run_id) DO UPDATE SET
			metrics    = EXCLUDED.metrics,
			created_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, metrics.RunID, doc); err != nil {
		return fmt.Errorf("save metrics %s: %w", metrics.RunID, err)
	}
	return nil
}

// GetMetrics loads the analysis document for a run.
func (r *Repository) GetMetrics(ctx context.Context, runID string) (*Metrics, error) {
	query := `SELECT metrics FROM audit_metrics WHERE run_id = $1`

	var doc []byte
	err := r.pool.QueryRow(ctx, query, runID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMetricsNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load metrics %s: %w", runID, err)
	}

	var m Metrics
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metrics %s: %w", runID, err)
	}
	return &m, nil
}

// SaveAttributions replaces the stored attribution rows for a run.
func (r *Repository) SaveAttributions(ctx context.Context, runID string, attrs []SectorAttribution) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin attribution save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM audit_attributions WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear attributions %s: %w", runID, err)
	}

	query := `
		INSERT INTO audit_attributions (run_id, sector, pnl, contribution, avg_weight, trade_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, a := range attrs {
		if _, err := tx.Exec(ctx, query, runID, a.Sector, a.PnL, a.Contribution, a.AvgWeight, a.TradeCount); err != nil {
			return fmt.Errorf("insert attribution %s/%s: %w", runID, a.Sector, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit attribution save: %w", err)
	}
	return nil
}

// GetAttributions loads the attribution rows for a run, best first.
func (r *Repository) GetAttributions(ctx context.Context, runID string) ([]SectorAttribution, error) {
	query := `
		SELECT sector, pnl, contribution, avg_weight, trade_count
		FROM audit_attributions
		WHERE run_id = $1
		ORDER BY contribution DESC, sector ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query attributions %s: %w", runID, err)
	}
	defer rows.Close()

	var out []SectorAttribution
	for rows.Next() {
		var a SectorAttribution
		if err := rows.Scan(&a.Sector, &a.PnL, &a.Contribution, &a.AvgWeight, &a.TradeCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
