package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// ErrRunNotFound is returned when no stored run matches the lookup.
var ErrRunNotFound = errors.New("backtest run not found")

// Repository persists run results as JSONB documents keyed by run ID, so
// the API and report commands can serve past runs without recomputing.
type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewRepository creates a run repository.
func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Migrate creates the runs table when it does not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id          TEXT PRIMARY KEY,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			start_date      DATE NOT NULL,
			end_date        DATE NOT NULL,
			initial_capital DOUBLE PRECISION NOT NULL,
			final_value     DOUBLE PRECISION NOT NULL,
			num_rebalances  INT NOT NULL,
			success         BOOLEAN NOT NULL,
			config_hash     TEXT NOT NULL DEFAULT '',
			result          JSONB NOT NULL
		)`

	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("migrate backtest_runs: %w", err)
	}
	return nil
}

// SaveResult upserts one run document.
func (r *Repository) SaveResult(ctx context.Context, result *contracts.BacktestResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", result.RunID, err)
	}

	query := `
		INSERT INTO backtest_runs (run_id, start_date, end_date, initial_capital, final_value, num_rebalances, success, config_hash, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			start_date      = EXCLUDED.start_date,
			end_date        = EXCLUDED.end_date,
			initial_capital = EXCLUDED.initial_capital,
			final_value     = EXCLUDED.final_value,
			num_rebalances  = EXCLUDED.num_rebalances,
			success         = EXCLUDED.success,
			config_hash     = EXCLUDED.config_hash,
			result          = EXCLUDED.result
	`

	_, err = r.pool.Exec(ctx, query,
		result.RunID, result.StartDate, result.EndDate, result.InitialCapital,
		result.FinalValue, result.NumRebalances, result.Success, result.ConfigHash, doc,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.RunID, err)
	}

	r.log.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"final_value": result.FinalValue,
	}).Info("Backtest run saved")
	return nil
}

// GetResult loads one run by ID.
func (r *Repository) GetResult(ctx context.Context, runID string) (*contracts.BacktestResult, error) {
	query := `SELECT result FROM backtest_runs WHERE run_id = $1`

	var doc []byte
	err := r.pool.QueryRow(ctx, query, runID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	return unmarshalResult(doc)
}

// LatestResult loads the most recently saved run.
func (r *Repository) LatestResult(ctx context.Context) (*contracts.BacktestResult, error) {
	query := `SELECT result FROM backtest_runs ORDER BY created_at DESC LIMIT 1`

	var doc []byte
	err := r.pool.QueryRow(ctx, query).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs stored", ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}

	return unmarshalResult(doc)
}

// RunSummary is the list row served by the API and the report command.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	NumRebalances  int       `json:"num_rebalances"`
	Success        bool      `json:"success"`
	ConfigHash     string    `json:"config_hash,omitempty"`
}

// ListRuns returns recent run summaries, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, created_at, start_date, end_date, initial_capital, final_value, num_rebalances, success, config_hash
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(
			&s.RunID, &s.CreatedAt, &s.StartDate, &s.EndDate,
			&s.InitialCapital, &s.FinalValue, &s.NumRebalances, &s.Success, &s.ConfigHash,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneRuns deletes all but the newest keep runs and returns how many
// rows went away.
func (r *Repository) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		keep = 50
	}

	query := `
		DELETE FROM backtest_runs
		WHERE run_id NOT IN (
			SELECT run_id FROM backtest_runs ORDER BY created_at DESC LIMIT $1
		)
	`

	tag, err := r.pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteRun removes one stored run.
func (r *Repository) DeleteRun(ctx context.Context, runID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM backtest_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func unmarshalResult(doc []byte) (*contracts.BacktestResult, error) {
	var result contracts.BacktestResult
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &result, nil
}
