package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/report"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/config"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reports over stored backtest runs",
	Long: `Regenerates analysis from backtest runs stored in Postgres, or from
a result.json written by 'backtest run --output'.

Stored runs are self-contained: snapshots carry sector labels, so the
report needs neither the CSV archive nor a re-run.

Subcommands:
  generate  - render the report for one run (default: latest)
  list      - list stored runs

Example:
  go run ./cmd/quant report generate
  go run ./cmd/quant report generate --run 7f3a... --format json
  go run ./cmd/quant report generate --file reports/result.json
  go run ./cmd/quant report list`,
}

var (
	reportGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Render the report for a stored run",
		Long: `Analyzes one stored run and renders the report.

Flags:
  --run     run ID (default: most recent run)
  --file    result.json to analyze instead of a stored run (no database)
  --format  text or json (default: text)
  --output  directory for report files; empty prints only

Example:
  go run ./cmd/quant report generate
  go run ./cmd/quant report generate --output reports/latest
  go run ./cmd/quant report generate --file reports/result.json`,
		RunE: runReportGenerate,
	}

	reportListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		RunE:  runReportList,
	}

	// Flags
	reportRunID  string
	reportFile   string
	reportFormat string
	reportOutput string
	reportLimit  int
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportListCmd)

	// Flags
	reportGenerateCmd.Flags().StringVar(&reportRunID, "run", "", "run ID (default: latest)")
	reportGenerateCmd.Flags().StringVar(&reportFile, "file", "", "result.json to analyze instead of a stored run")
	reportGenerateCmd.Flags().StringVar(&reportFormat, "format", "text", "output format (text, json)")
	reportGenerateCmd.Flags().StringVar(&reportOutput, "output", "", "directory for report files")
	reportListCmd.Flags().IntVar(&reportLimit, "limit", 20, "maximum runs to list")
}

func runReportGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	// Load the requested run: a result file bypasses the database
	var result *contracts.BacktestResult
	var auditRepo *audit.Repository

	if reportFile != "" {
		result, err = loadResultFile(reportFile)
		if err != nil {
			return err
		}
	} else {
		if !cfg.HasDatabase() {
			return fmt.Errorf("DATABASE_URL is required for reports over stored runs (or use --file)")
		}
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo := backtest.NewRepository(db.Pool, log)
		if reportRunID != "" {
			result, err = repo.GetResult(ctx, reportRunID)
		} else {
			result, err = repo.LatestResult(ctx)
		}
		switch {
		case errors.Is(err, backtest.ErrRunNotFound):
			return fmt.Errorf("no stored run found (run a backtest first)")
		case err != nil:
			return fmt.Errorf("load run: %w", err)
		}
		auditRepo = audit.NewRepository(db.Pool)
	}

	strategy, _, err := strategyconfig.LoadOrDefault(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	// Analyze
	analyzer := audit.NewAnalyzer(strategy.Backtest.RiskFreeRate, log)
	metrics, err := analyzer.Analyze(result)
	if err != nil {
		return fmt.Errorf("analyze run: %w", err)
	}
	monthly := analyzer.MonthlyReturns(result.EquityCurve)
	attrs, attrErr := analyzer.AttributeSectors(result, audit.SectorIndex(result))

	// Store the analysis so dashboards read it without replaying the run.
	// A persistence failure downgrades to a warning; the report still renders.
	if auditRepo != nil {
		if err := auditRepo.Migrate(ctx); err != nil {
			log.WithError(err).Warn("Audit tables unavailable; analysis not stored")
		} else {
			if err := auditRepo.SaveMetrics(ctx, metrics); err != nil {
				log.WithError(err).Warn("Metrics not stored")
			}
			if attrErr == nil && len(attrs) > 0 {
				if err := auditRepo.SaveAttributions(ctx, result.RunID, attrs); err != nil {
					log.WithError(err).Warn("Attributions not stored")
				}
			}
		}
	}

	if reportFormat == "json" {
		data, err := json.MarshalIndent(metrics, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	// Render
	gen := report.NewGenerator(log)
	fmt.Print(gen.Text(metrics))
	if table := gen.MonthlyTable(monthly); table != "" {
		fmt.Println(table)
	}
	if attrErr == nil {
		if table := gen.SectorTable(attrs); table != "" {
			fmt.Println(table)
		}
	}

	if reportOutput != "" {
		files, err := gen.WriteFiles(reportOutput, result, metrics, monthly)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Println("📄 Report files:")
		for _, f := range files {
			fmt.Printf("   %s\n", f)
		}
	}

	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	_, log, db, err := initReportDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := backtest.NewRepository(db.Pool, log)
	runs, err := repo.ListRuns(cmd.Context(), reportLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No stored runs")
		return nil
	}

	fmt.Printf("%-38s %-12s %-12s %14s %8s %4s\n",
		"Run ID", "Start", "End", "Final Value", "Rebal", "OK")
	for _, r := range runs {
		ok := "✅"
		if !r.Success {
			ok = "❌"
		}
		fmt.Printf("%-38s %-12s %-12s %14s %8d %4s\n",
			r.RunID,
			r.StartDate.Format("2006-01-02"),
			r.EndDate.Format("2006-01-02"),
			formatINR(r.FinalValue),
			r.NumRebalances,
			ok)
	}

	return nil
}

func initReportDeps() (*config.Config, *logger.Logger, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	if !cfg.HasDatabase() {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL is required for reports over stored runs")
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, log, db, nil
}

// loadResultFile reads a result.json written by 'backtest run --output'.
func loadResultFile(path string) (*contracts.BacktestResult, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result file: %w", err)
	}
	var result contracts.BacktestResult
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("parse result file: %w", err)
	}
	if result.RunID == "" || len(result.EquityCurve) == 0 {
		return nil, fmt.Errorf("%s does not look like a backtest result", path)
	}
	return &result, nil
}
